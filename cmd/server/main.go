package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/patrolworks/inspection-service/config"
	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/cartstate"
	"github.com/patrolworks/inspection-service/internal/database"
	"github.com/patrolworks/inspection-service/internal/dispatch"
	"github.com/patrolworks/inspection-service/internal/handlers"
	"github.com/patrolworks/inspection-service/internal/ingest"
	"github.com/patrolworks/inspection-service/internal/lock"
	"github.com/patrolworks/inspection-service/internal/memstore"
	"github.com/patrolworks/inspection-service/internal/middleware"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/sweepers"
	"github.com/patrolworks/inspection-service/internal/telemetry"
)

// stores groups the persistence interfaces one backend provides.
type stores struct {
	queue   store.TaskQueue
	records store.RecordStore
	alerts  store.AlertStore
	cart    store.CartStatusStore

	status func(context.Context) error
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting inspection service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanup := telemetry.MustInit(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
	})
	defer cleanup(context.Background())

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open backing store")
	}
	defer database.Close()

	hub := broadcast.New(cfg.Broadcast.BufferSize, *logger)
	dispatcher := dispatch.New(st.queue, hub, *logger)
	ingestor := ingest.New(st.records, st.queue, hub, *logger)
	cart := cartstate.New(st.cart, hub, *logger)

	lockCtrl := lock.New(dispatcher, hub, cfg.Lock.Debounce, *logger)
	lockCtrl.Start(ctx)
	defer lockCtrl.Stop()

	sweeper := sweepers.NewRetentionSweeper(
		st.queue, st.records, *logger,
		cfg.Sweeper.Interval,
		cfg.Sweeper.CompletedTTL,
		cfg.Sweeper.AssignedTimeout,
		cfg.Sweeper.RecordRetention,
	)

	h := handlers.New(dispatcher, ingestor, st.records, st.alerts, cart, lockCtrl, hub, st.status)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: float64(cfg.RateLimit.RequestsPerSecond),
		BurstSize:         cfg.RateLimit.Burst,
	}))
	{
		tasks := api.Group("/tasks")
		{
			tasks.GET("", h.ListTasks)
			tasks.POST("", h.AddTask)
			tasks.POST("/clear", h.ClearTasks)
			tasks.POST("/:id/assign", h.AssignTask)
			tasks.DELETE("/:id", h.DeleteTask)
		}

		// Result ingestion is service-to-service only.
		results := api.Group("/results")
		results.Use(middleware.InternalAuthMiddleware(cfg.Server.APIKey))
		{
			results.POST("", h.IngestResult)
		}

		api.GET("/history", h.GetHistory)
		api.GET("/history/export", h.ExportHistory)
		api.GET("/stations/:id/latest", h.LatestByStation)
		api.GET("/statistics", h.GetStatistics)

		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts/:id/handled", h.MarkAlertHandled)

		cart := api.Group("/cart")
		{
			cart.GET("/status", h.GetCartStatus)
			cart.POST("/status", h.UpdateCartStatus)
		}

		api.GET("/events", h.Subscribe)

		lockGroup := api.Group("/lock")
		{
			lockGroup.GET("", h.GetLock)
			lockGroup.POST("/arm", h.ArmLock)
			lockGroup.POST("/disarm", h.DisarmLock)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}

	logger.Info().Msg("Server exited")
}

// openStores selects the backing store: Postgres in production, in-memory
// for local development and tests.
func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("Using in-memory store; state is lost on restart")
		mem := memstore.New()
		return &stores{queue: mem, records: mem, alerts: mem, cart: mem}, nil

	case "postgres":
		dbURL := config.GetDatabaseURL()
		if dbURL == "" {
			return nil, fmt.Errorf("DATABASE_URL not set")
		}
		if err := database.Connect(
			ctx,
			dbURL,
			cfg.Database.MaxConnections,
			cfg.Database.MinConnections,
			cfg.Database.MaxConnLifetime,
			cfg.Database.MaxConnIdleTime,
		); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info().Msg("Database connected")

		pg := database.NewStore()
		return &stores{queue: pg, records: pg, alerts: pg, cart: pg, status: database.Status}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "inspection-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
