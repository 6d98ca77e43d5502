package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/catering-orders/internal/messaging/kafka"
	"github.com/xenking/catering-orders/internal/messaging/rabbitmq"
	"github.com/xenking/catering-orders/internal/storage/firestore"
	"github.com/xenking/catering-orders/internal/storage/mongo"
)

// Config holds the complete application configuration, loadable from
// environment variables (CATERING_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (CATERING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret     string `usage:"HS256 secret used to verify bearer tokens (CATERING_JWT_SECRET)" flag:"jwt-secret"`
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
	Mirror        MirrorConfig
	Notifications NotificationsConfig
	Dispatcher    DispatcherConfig
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Mirror and notification backends.
const (
	BackendNone      = "none"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendRabbitMQ  = "rabbitmq"
	BackendKafka     = "kafka"
)

// MirrorConfig selects the reporting mirror.
type MirrorConfig struct {
	Backend   string `default:"none" usage:"Stats mirror backend: none, mongo or firestore" flag:"mirror-backend"`
	Mongo     mongo.Config
	Firestore firestore.Config
}

// NotificationsConfig selects the notification broker.
type NotificationsConfig struct {
	Backend  string `default:"none" usage:"Notification backend: none, rabbitmq or kafka" flag:"notifications-backend"`
	RabbitMQ rabbitmq.Config
	Kafka    kafka.Config
}

// DispatcherConfig sizes the side-effect worker pool.
type DispatcherConfig struct {
	Workers   int           `default:"4"   usage:"Side-effect workers"`
	QueueSize int           `default:"256" usage:"Side-effect queue capacity"`
	Timeout   time.Duration `default:"10s" usage:"Per side-effect timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATERING",
		Files:     []string{"config.yaml", "/etc/catering/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CATERING_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set CATERING_JWT_SECRET")
	}
	switch c.Mirror.Backend {
	case BackendNone, BackendMongo, BackendFirestore:
	default:
		return errors.Errorf("unknown mirror backend %q", c.Mirror.Backend)
	}
	switch c.Notifications.Backend {
	case BackendNone, BackendRabbitMQ, BackendKafka:
	default:
		return errors.Errorf("unknown notifications backend %q", c.Notifications.Backend)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CATERING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
