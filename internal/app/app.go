// Package app assembles the fern service from configuration.
package app

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/services/identify"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/redis"
	contactroutes "github.com/Ramsey-B/fern/pkg/routes/contacts"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	identifyroutes "github.com/Ramsey-B/fern/pkg/routes/identify"
	"github.com/Ramsey-B/fern/pkg/server"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Version is reported by the health endpoint.
var Version = "dev"

const (
	depTracing  = "tracing"
	depDatabase = "database"
	depCache    = "cache"
	depEvents   = "events"
	depService  = "service"
	depConsumer = "consumer"
	depServer   = "server"
)

type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup

	db       database.DB
	redis    *redis.Client
	cache    cache.Cache
	producer *kafka.Producer
	service  *identify.Service
	consumer *kafka.Consumer
	server   *server.Server
	health   *health.Checker
}

func New(cfg *config.Config, logger ectologger.Logger) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		cache:   cache.NoopCache{},
	}

	var shutdownTracing func(context.Context) error
	a.startup.AddDependency(startup.Func{
		Name: depTracing,
		OnStart: func(ctx context.Context) error {
			if !cfg.TracingEnabled {
				return nil
			}
			shutdown, err := tracing.Setup(ctx, tracing.Config{
				ServiceName: cfg.AppName,
				Endpoint:    cfg.OTLPEndpoint,
				Protocol:    cfg.OTLPProtocol,
				Insecure:    cfg.OTLPInsecure,
			})
			shutdownTracing = shutdown
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(ctx)
		},
	})

	a.startup.AddDependency(startup.Func{
		Name:     depDatabase,
		Requires: []string{depTracing},
		OnStart: func(ctx context.Context) error {
			db, err := OpenStore(ctx, cfg, logger)
			a.db = db
			return err
		},
		OnStop: func(context.Context) error {
			return a.db.Close()
		},
	})

	a.startup.AddDependency(startup.Func{
		Name: depCache,
		OnStart: func(ctx context.Context) error {
			if !cfg.RedisEnabled {
				return nil
			}
			client, err := redis.NewClient(ctx, redis.Config{
				Addr:     cfg.RedisAddr(),
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			a.redis = client
			a.cache = cache.NewRedisCache(client, cfg.CacheTTL, logger)
			return nil
		},
		OnStop: func(context.Context) error {
			if a.redis == nil {
				return nil
			}
			return a.redis.Close()
		},
	})

	a.startup.AddDependency(startup.Func{
		Name: depEvents,
		OnStart: func(context.Context) error {
			if cfg.KafkaProducerEnabled {
				a.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if a.producer == nil {
				return nil
			}
			return a.producer.Close()
		},
	})

	a.startup.AddDependency(startup.Func{
		Name:     depService,
		Requires: []string{depDatabase, depCache, depEvents},
		OnStart: func(context.Context) error {
			var publisher events.Publisher
			if a.producer != nil {
				publisher = a.producer
			}
			a.service = NewService(a.db, a.cache, events.NewEmitter(publisher, logger), logger)
			return nil
		},
	})

	a.startup.AddDependency(startup.Func{
		Name:     depConsumer,
		Requires: []string{depService},
		OnStart: func(ctx context.Context) error {
			if !cfg.KafkaConsumerEnabled {
				return nil
			}
			var opts []processor.Option
			if a.redis != nil {
				opts = append(opts, processor.WithDeadLetters(redis.NewDeadLetterQueue(a.redis, cfg.DLQStream, logger)))
			}
			p := processor.NewProcessor(a.service, logger, opts...)
			a.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:       cfg.KafkaBrokers,
				Topic:         cfg.KafkaInputTopic,
				ConsumerGroup: cfg.KafkaConsumerGroup,
			}, logger, p.Handle)
			// The consumer outlives the startup context.
			return a.consumer.Start(context.WithoutCancel(ctx))
		},
		OnStop: func(context.Context) error {
			if a.consumer == nil {
				return nil
			}
			return a.consumer.Stop()
		},
	})

	a.startup.AddDependency(startup.Func{
		Name:     depServer,
		Requires: []string{depService},
		OnStart: func(ctx context.Context) error {
			a.server = a.newServer()
			return a.server.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if a.server == nil {
				return nil
			}
			return a.server.Stop(ctx)
		},
	})

	return a
}

func (a *App) newServer() *server.Server {
	cfg := a.cfg
	srv := server.New(server.Config{
		ServiceName:       cfg.AppName,
		Port:              cfg.Port,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ShutdownTimeout:   time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		AllowOrigins:      cfg.AllowOrigins,
		AllowMethods:      cfg.AllowMethods,
		AllowHeaders:      cfg.AllowHeaders,
		TracingEnabled:    cfg.TracingEnabled,
		MetricsEnabled:    cfg.MetricsEnabled,
	}, a.logger)

	checks := []health.Check{{Name: "database", Ping: a.db.PingContext}}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: a.redis.Ping})
	}
	a.health = health.NewChecker(Version, checks...)

	e := srv.Echo()
	a.health.RegisterRoutes(e)
	identifyroutes.NewHandler(a.service).Register(e)
	contactroutes.NewHandler(a.service).Register(e.Group("/contacts"))

	return srv
}

// Run starts every dependency, serves until ctx is cancelled, then shuts
// everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		_ = a.startup.Stop(context.Background())
		return err
	}
	a.health.SetReady(true)
	a.logger.WithContext(ctx).Infof("%s is ready", a.cfg.AppName)

	<-ctx.Done()

	a.health.SetReady(false)
	a.logger.Info("Shutting down")
	return a.startup.Stop(context.WithoutCancel(ctx))
}
