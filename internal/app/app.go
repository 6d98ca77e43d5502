package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catering-orders/internal/domain/notify"
	"github.com/xenking/catering-orders/internal/domain/order"
	"github.com/xenking/catering-orders/internal/domain/review"
	"github.com/xenking/catering-orders/internal/domain/stats"
	"github.com/xenking/catering-orders/internal/handler"
	"github.com/xenking/catering-orders/internal/messaging/kafka"
	"github.com/xenking/catering-orders/internal/messaging/rabbitmq"
	"github.com/xenking/catering-orders/internal/sideeffect"
	"github.com/xenking/catering-orders/internal/storage/firestore"
	"github.com/xenking/catering-orders/internal/storage/mongo"
	"github.com/xenking/catering-orders/internal/storage/postgres"
	"github.com/xenking/catering-orders/pkg/health"
	"github.com/xenking/catering-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service. Only the store of record gates readiness.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Best-effort side effects.
	mirror, closeMirror := openMirror(ctx, lg, cfg.Mirror, healthSvc)
	defer closeMirror()

	notifier, closeNotifier, err := openNotifier(lg, cfg.Notifications, healthSvc)
	if err != nil {
		return errors.Wrap(err, "open notifier")
	}
	defer closeNotifier()

	effects := sideeffect.New(sideeffect.Config{
		Workers:   cfg.Dispatcher.Workers,
		QueueSize: cfg.Dispatcher.QueueSize,
		Timeout:   cfg.Dispatcher.Timeout,
	}, sideeffect.WithMeterProvider(m.MeterProvider()))

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	orderStore := postgres.NewOrderStore(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	statsSource := postgres.NewStatsSource(pool)

	// Domain services.
	orderService := order.NewService(orderStore, notifier, mirror, effects,
		order.WithMeterProvider(m.MeterProvider()),
	)
	reviewService := review.NewService(orderStore, reviewRepo)
	statsService := stats.NewService(mirror, statsSource)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(orderService, reviewService, statsService).
		Register(router, handler.NewAuthenticator([]byte(cfg.JWTSecret)).Middleware)

	routeFinder := httpmiddleware.MakeRouteFinder(router)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("catering-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, stop, then flush the
	// side-effect queue so accepted notifications still go out.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := effects.Close(shutdownCtx); err != nil {
			lg.Warn("Side effects not drained", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}

// openMirror connects the configured reporting mirror. A backend that cannot
// be reached is replaced by stats.Nop so reporting falls back to PostgreSQL.
func openMirror(ctx context.Context, lg *zap.Logger, cfg MirrorConfig, h *health.Health) (stats.Mirror, func()) {
	type mirror interface {
		stats.Mirror
		health.Pinger
		Close(ctx context.Context) error
	}

	var (
		m   mirror
		err error
	)
	switch cfg.Backend {
	case BackendMongo:
		m, err = mongo.Connect(ctx, cfg.Mongo)
	case BackendFirestore:
		m, err = firestore.New(ctx, cfg.Firestore)
	default:
		lg.Info("Stats mirror disabled")
		return stats.Nop{}, func() {}
	}
	if err != nil {
		lg.Warn("Stats mirror unavailable, reporting from PostgreSQL",
			zap.String("backend", cfg.Backend),
			zap.Error(err),
		)
		return stats.Nop{}, func() {}
	}

	lg.Info("Stats mirror connected", zap.String("backend", cfg.Backend))
	h.AddReadiness(health.Check{
		Name:     "mirror",
		Timeout:  5 * time.Second,
		Func:     health.PingCheck(m),
		Optional: true,
	})
	return m, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			lg.Warn("Close stats mirror", zap.Error(err))
		}
	}
}

// openNotifier connects the configured broker. Without one, notifications
// are only logged.
func openNotifier(lg *zap.Logger, cfg NotificationsConfig, h *health.Health) (notify.Notifier, func(), error) {
	switch cfg.Backend {
	case BackendRabbitMQ:
		p, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "rabbitmq")
		}
		h.AddReadiness(health.Check{
			Name:     "rabbitmq",
			Timeout:  6 * time.Second,
			Func:     p.IsAlive,
			Optional: true,
		})
		lg.Info("Publishing notifications to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
		return notify.NewPublisher(p), closeWith(lg, "rabbitmq", p.Close), nil
	case BackendKafka:
		p, err := kafka.Dial(cfg.Kafka)
		if err != nil {
			return nil, nil, errors.Wrap(err, "kafka")
		}
		lg.Info("Publishing notifications to Kafka", zap.String("topic", cfg.Kafka.Topic))
		return notify.NewPublisher(p), closeWith(lg, "kafka", p.Close), nil
	default:
		lg.Info("Notification broker disabled, logging notifications")
		return notify.Log{}, func() {}, nil
	}
}

func closeWith(lg *zap.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			lg.Warn("Close "+name, zap.Error(err))
		}
	}
}
