package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/config"
	"reading-adventure-service/internal/infra/llm"
	"reading-adventure-service/internal/infra/memory"
	"reading-adventure-service/internal/infra/postgres"
	redisstore "reading-adventure-service/internal/infra/redis"
	"reading-adventure-service/internal/infra/sqlite"
	"reading-adventure-service/internal/random"
	transport "reading-adventure-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	defaultSQLitePath = "reading-adventure.db"
	devSessionSecret  = "reading-adventure-dev-secret-key"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the reading server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	progressStore, closeProgress, err := openProgressStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeProgress()

	var generator app.StoryGenerator
	if cfg.Generation.APIKey != "" {
		generator = llm.NewStoryGenerator(llm.Config{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: 0.7,
		})
	} else {
		log.Printf("no generation api key configured, serving the sample story")
		generator = memory.NewStaticStoryGenerator(memory.SampleStory(), nil)
	}

	// Stories are reused across submissions only when a cache TTL is configured.
	cacheTTL := config.TTLDuration(cfg.Generation.CacheTTL, 0)
	var stories app.StoryRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		stories = redisstore.NewStoryRepository(redisClient, generator, cacheTTL)
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		stories = memory.NewStoryRepository(generator, cacheTTL)
		sessions = memory.NewSessionStore(sessionTTL)
	}

	seed, err := random.NewSeed()
	if err != nil {
		return err
	}
	service := app.NewReadingService(
		stories,
		sessions,
		memory.NewProfileStore(progressStore),
		app.NewFeedbackPicker(rand.New(rand.NewSource(seed))),
	)
	defer service.Close()

	secret := cfg.Server.SessionSecret
	if secret == "" {
		log.Printf("session secret not configured, using the development key")
		secret = devSessionSecret
	}
	profiles := transport.NewProfileResolver([]byte(secret))
	generationTimeout := config.TTLDuration(cfg.Generation.Timeout, 60*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, profiles).ServeWS)
	transport.NewAPIHandler(service, profiles, generationTimeout).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Story generation can outlast the usual write deadline.
		WriteTimeout: generationTimeout + 15*time.Second,
	}

	go func() {
		log.Printf("starting reading service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openProgressStore builds the configured progress backend and returns its closer.
func openProgressStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (app.ProgressStore, func(), error) {
	noop := func() {}
	switch backend := cfg.ProgressBackend(); backend {
	case config.BackendMemory:
		return memory.NewProgressStore(), noop, nil
	case config.BackendSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = defaultSQLitePath
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("progress stored in sqlite at %s", path)
		return store, func() { _ = store.Close() }, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, noop, fmt.Errorf("progress backend %q requires redis.addr", backend)
		}
		return redisstore.NewProgressStore(redisClient), noop, nil
	case config.BackendPostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, noop, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewProgressStore(pool), pool.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown progress backend %q", backend)
	}
}
