// Package kafka publishes notifications to a Kafka topic.
package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"

	"github.com/xenking/catering-orders/internal/domain/notify"
)

// Config selects the brokers and topic.
type Config struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"catering.notifications" usage:"Notification topic"`
}

// Publisher implements notify.Sink on a synchronous producer. Messages are
// keyed by order number so one order's notifications stay ordered.
type Publisher struct {
	topic    string
	producer sarama.SyncProducer
}

var _ notify.Sink = (*Publisher)(nil)

// NewConfig returns the producer settings used by Dial.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	return cfg
}

// Dial creates a synchronous producer.
func Dial(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create producer")
	}
	return New(producer, cfg.Topic), nil
}

// New wraps an existing producer.
func New(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, producer: producer}
}

// Publish sends body and waits for all in-sync replicas.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return errors.Wrapf(err, "send to %s", p.topic)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
