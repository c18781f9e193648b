package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gotzkowsky2/kathario-saas-sub000/config"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/handlers"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/auxiliary"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/checklistitem"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/connection"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/employee"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/instance"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/progress"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/repositories/tenant"
	"github.com/gotzkowsky2/kathario-saas-sub000/internal/services/checklist"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/connected"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/events"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/health"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/kafka"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/logging"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/mailer"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/middleware"
	appredis "github.com/gotzkowsky2/kathario-saas-sub000/pkg/redis"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/startup"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, flush, err := logging.NewLogger(cfg.AppName, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("api exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	var exporter sdktrace.SpanExporter
	if cfg.TracingEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingEndpoint,
			Protocol: cfg.TracingProtocol,
			Insecure: cfg.TracingInsecure,
		})
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = otlp
	} else {
		exporter = &exporters.ConsoleExporter{}
	}
	tp := tracing.Init(cfg.AppName, exporter)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	var (
		db          database.DB
		redisClient *appredis.Client
		producer    *kafka.Producer
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.FuncDependency{
		Name: "postgres",
		StartFn: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, database.ConnectionConfig{
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			db = conn
			return nil
		},
		StopFn: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})
	boot.AddDependency(startup.FuncDependency{
		Name:     "migrations",
		Requires: []string{"postgres"},
		StartFn: func(ctx context.Context) error {
			inst, ok := db.(*database.DatabaseInstance)
			if !ok {
				return errors.New("database connection does not support migrations")
			}
			driver, err := postgres.WithInstance(inst.DB.DB, &postgres.Config{})
			if err != nil {
				return err
			}
			ms := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			})
			return ms.Migrate(cfg.DatabaseName, driver)
		},
	})
	boot.AddDependency(startup.FuncDependency{
		Name: "redis",
		StartFn: func(ctx context.Context) error {
			client, err := appredis.NewClient(appredis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		StopFn: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})
	if cfg.KafkaEnabled {
		boot.AddDependency(startup.FuncDependency{
			Name: "kafka",
			StartFn: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			StopFn: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = boot.Stop(stopCtx)
	}()

	itemRepo := checklistitem.NewRepository(db, logger)
	connectionRepo := connection.NewRepository(db, logger)
	instanceRepo := instance.NewRepository(db, logger)
	progressRepo := progress.NewRepository(db, logger)
	employeeRepo := employee.NewRepository(db, logger)
	tenantRepo := tenant.NewRepository(db, logger)
	auxiliaryRepo := auxiliary.NewRepository(db, logger)

	resolver := connected.NewResolver(auxiliaryRepo, logger)

	var mail checklist.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
	}

	var emitter checklist.EventEmitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	}

	svc := checklist.NewService(
		itemRepo,
		connectionRepo,
		instanceRepo,
		progressRepo,
		employeeRepo,
		tenantRepo,
		resolver,
		mail,
		emitter,
		logger,
	)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(db, redisClient, version)
	checker.RegisterRoutes(e)

	sessions := appredis.NewSessionStore(redisClient, cfg.SessionTTL)

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Session(sessions, logger))
	} else {
		logger.Warn("auth is disabled, trusting identity headers")
		api.Use(middleware.TestAuth())
	}

	checklistHandler := handlers.NewChecklistHandler(svc, redisClient, logger)
	checklistHandler.Register(api.Group("/checklists"))

	instanceHandler := handlers.NewInstanceHandler(instanceRepo, logger)
	instanceHandler.Register(api.Group("/checklists"))

	admin := api.Group("")
	if cfg.AuthEnabled && cfg.AuthIssuerURL != "" {
		admin.Use(middleware.AdminAuthentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	itemHandler := handlers.NewItemHandler(itemRepo, connectionRepo, logger)
	itemHandler.Register(admin.Group("/items"))

	tenantHandler := handlers.NewTenantHandler(tenantRepo, logger)
	tenantHandler.Register(admin.Group("/tenant"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
