package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"concurso-study-service/internal/app"
	"concurso-study-service/internal/config"
	"concurso-study-service/internal/infra/gemini"
	"concurso-study-service/internal/infra/memory"
	pgstore "concurso-study-service/internal/infra/postgres"
	"concurso-study-service/internal/infra/rabbit"
	redisstore "concurso-study-service/internal/infra/redis"
	"concurso-study-service/internal/infra/sqlite"
	transport "concurso-study-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the study server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config file not found, using in-memory defaults", "path", path)
		return config.Default(), nil
	}
	return cfg, err
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	slots, closeSlots, err := buildSlotStore(cfg, redisClient, pool)
	if err != nil {
		return err
	}
	defer closeSlots()
	performance := app.LoadPerformance(ctx, slots, cfg.Storage.Key, logger)

	var (
		source    app.QuestionSource = memory.NewQuestionBank(nil)
		generator app.StudyGenerator = gemini.Disabled{}
	)
	httpClient := &http.Client{Timeout: config.TTLDuration(cfg.Gemini.Timeout, 60*time.Second)}
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		Model:      cfg.Gemini.Model,
		ThemeModel: cfg.Gemini.ThemeModel,
		ImageModel: cfg.Gemini.ImageModel,
	}, httpClient, logger)
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		logger.Warn("gemini api key not set, study tools disabled")
	case err != nil:
		return err
	default:
		generator = client
		if !cfg.Quiz.OfflineBank {
			source = client
		}
	}
	if err != nil || cfg.Quiz.OfflineBank {
		logger.Info("serving questions from the offline bank")
	}

	var events app.AnswerSink
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		events = publisher
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	toolsTTL := config.TTLDuration(cfg.Tools.TTL, 6*time.Hour)
	var cache app.ToolCache
	if redisClient != nil {
		cache = redisstore.NewToolCache(redisClient, toolsTTL)
	} else {
		cache = memory.NewToolCache(toolsTTL)
	}

	quiz := app.NewQuizService(store, source, performance, events,
		app.WithTickInterval(config.TTLDuration(cfg.Quiz.TickInterval, time.Second)),
		app.WithPrefetchTimeout(config.TTLDuration(cfg.Quiz.PrefetchTimeout, 60*time.Second)),
		app.WithSessionLogger(logger),
	)
	tools := app.NewToolsService(generator, cache)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(quiz, tools, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: question generation and websockets are long-lived.
	}

	stopPrune := make(chan struct{})
	go pruneSessions(quiz, config.TTLDuration(cfg.Quiz.IdleTimeout, 30*time.Minute), time.Minute, logger, stopPrune)

	go func() {
		logger.Info("starting study service", "addr", server.Addr, "performance_store", cfg.Storage.Performance)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	close(stopPrune)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	quiz.Shutdown(shutdownCtx)
	return err
}

// pruneSessions drops idle, unwatched sessions every interval until stop closes.
func pruneSessions(quiz *app.QuizService, maxIdle, interval time.Duration, logger *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := quiz.PruneIdle(maxIdle); n > 0 {
				logger.Info("pruned idle sessions", "count", n)
			}
		case <-stop:
			return
		}
	}
}

// buildSlotStore picks the performance backend named in storage.performance.
func buildSlotStore(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (app.SlotStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Performance {
	case "", "memory":
		return memory.NewSlotStore(), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, fmt.Errorf("storage.performance=redis requires redis.addr")
		}
		return redisstore.NewSlotStore(redisClient), noop, nil
	case "postgres":
		if pool == nil {
			return nil, noop, fmt.Errorf("storage.performance=postgres requires postgres.url")
		}
		return pgstore.NewSlotStore(pool), noop, nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "data/study.db"
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown performance store %q", cfg.Storage.Performance)
	}
}
