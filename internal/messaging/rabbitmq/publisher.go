// Package rabbitmq publishes notifications to a RabbitMQ fanout exchange.
package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/catering-orders/internal/domain/notify"
)

const (
	dialTimeout = 5 * time.Second
	// Minimum spacing between reconnect attempts.
	defaultReconnectInterval = 2 * time.Second
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("rabbitmq publisher closed")

// Config selects the broker and exchange.
type Config struct {
	URL               string        `usage:"AMQP connection URL"`
	Exchange          string        `default:"catering.notifications" usage:"Fanout exchange for notifications"`
	ReconnectInterval time.Duration `default:"2s" usage:"Minimum delay between reconnect attempts"`
}

// confirmation is the broker acknowledgement of one publishing.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// session is one connection with its confirm-mode channel.
type session interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	closed() bool
	close() error
}

type dialFunc func(cfg Config) (session, error)

// Publisher implements notify.Sink with publisher confirms. A lost
// connection is re-established on the next Publish or IsAlive call.
type Publisher struct {
	cfg  Config
	dial dialFunc
	now  func() time.Time

	mu       sync.Mutex
	sess     session
	lastDial time.Time
	isClosed bool
}

var _ notify.Sink = (*Publisher)(nil)

// Dial connects, declares the durable exchange and enables confirms.
func Dial(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	return newPublisher(cfg, dialAMQP, time.Now)
}

func newPublisher(cfg Config, dial dialFunc, now func() time.Time) (*Publisher, error) {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	sess, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, dial: dial, now: now, sess: sess, lastDial: now()}, nil
}

// Publish sends body as a persistent message and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte) error {
	sess, err := p.session(ctx)
	if err != nil {
		return err
	}
	confirm, err := sess.publish(ctx, p.cfg.Exchange, key, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    key,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		p.drop(sess)
		return errors.Wrap(err, "publish")
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrap(err, "wait confirm")
	}
	if !acked {
		return errors.New("broker nacked message")
	}
	return nil
}

// IsAlive reports whether a connection is open, reconnecting if needed.
func (p *Publisher) IsAlive(ctx context.Context) error {
	_, err := p.session(ctx)
	return err
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isClosed = true
	if p.sess == nil {
		return nil
	}
	err := p.sess.close()
	p.sess = nil
	return err
}

// session returns the open session, dialing a new one when the previous was
// lost. Attempts are spaced by ReconnectInterval.
func (p *Publisher) session(ctx context.Context) (session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isClosed {
		return nil, ErrClosed
	}
	if p.sess != nil && !p.sess.closed() {
		return p.sess, nil
	}
	if p.sess != nil {
		_ = p.sess.close()
		p.sess = nil
	}

	now := p.now()
	if wait := p.cfg.ReconnectInterval - now.Sub(p.lastDial); wait > 0 {
		return nil, errors.Errorf("amqp connection lost, next reconnect in %s", wait)
	}
	p.lastDial = now

	lg := zctx.From(ctx)
	sess, err := p.dial(p.cfg)
	if err != nil {
		lg.Warn("RabbitMQ reconnect failed", zap.Error(err))
		return nil, errors.Wrap(err, "reconnect")
	}
	lg.Info("RabbitMQ reconnected", zap.String("exchange", p.cfg.Exchange))
	p.sess = sess
	return sess, nil
}

// drop discards sess if it is still current so the next call redials.
func (p *Publisher) drop(sess session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == sess {
		_ = sess.close()
		p.sess = nil
	}
}

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialAMQP(cfg Config) (session, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", cfg.Exchange)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "enable confirms")
	}
	return &amqpSession{conn: conn, ch: ch}, nil
}

func (s *amqpSession) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	c, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *amqpSession) closed() bool {
	return s.conn.IsClosed() || s.ch.IsClosed()
}

func (s *amqpSession) close() error {
	_ = s.ch.Close()
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}
