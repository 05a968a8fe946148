package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizkeeper/internal/app"
	"quizkeeper/internal/config"
	"quizkeeper/internal/infra/memory"
	pgstore "quizkeeper/internal/infra/postgres"
	redisstore "quizkeeper/internal/infra/redis"
	transport "quizkeeper/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to run the sync backend.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync backend",
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
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var quizzes app.QuizRepository = memory.NewQuizStore()
	var results app.ResultRepository = memory.NewResultStore()
	var users app.UserRepository = memory.NewUserStore()
	if pool != nil {
		quizzes = pgstore.NewQuizStore(pool)
		results = pgstore.NewResultStore(pool)
		users = pgstore.NewUserStore(pool)
	}

	var tokens app.TokenStore = memory.NewTokenStore()
	if redisClient != nil {
		tokens = redisstore.NewTokenStore(redisClient)
	}

	secret := cfg.Server.TokenSecret
	if secret == "" {
		log.Printf("no token secret configured, using an ephemeral one; sessions will not survive restarts")
		secret = time.Now().Format(time.RFC3339Nano)
	}
	issuer := app.NewTokenIssuer(secret, config.Duration(cfg.Server.TokenTTL, 720*time.Hour))

	service := app.NewService(quizzes, results, users, tokens, issuer)
	hub := transport.NewHub()
	service.SetNotifier(hub)
	router := transport.NewRouter(service, hub)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizkeeper backend on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
