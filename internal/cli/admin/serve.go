package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/odysseia-chat/worldbook/internal/api/handlers"
	"github.com/odysseia-chat/worldbook/internal/coin"
	"github.com/odysseia-chat/worldbook/internal/config"
	"github.com/odysseia-chat/worldbook/internal/discord"
	"github.com/odysseia-chat/worldbook/internal/jobs"
	"github.com/odysseia-chat/worldbook/internal/openai"
	"github.com/odysseia-chat/worldbook/internal/repository"
	"github.com/odysseia-chat/worldbook/internal/server"
	"github.com/odysseia-chat/worldbook/internal/service"
	"github.com/odysseia-chat/worldbook/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the world-book daemon",
		Long:  "Start the review pipeline, index worker, and operator API server",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pendingRepo := repository.NewPendingRepository(pool)
	generalRepo := repository.NewGeneralKnowledgeRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	indexJobRepo := repository.NewIndexJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	knowledgeSvc := service.NewKnowledgeService(txRunner, memberRepo)

	embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)
	if !cfg.HasOpenAI() {
		log.Println("OPENAI_API_KEY not set; entries will index once a key is configured")
	}
	indexer := service.NewIndexer(generalRepo, memberRepo, chunkRepo, embeddingClient)

	indexProcessor := jobs.NewIndexWorker(indexJobRepo, indexer)
	indexWorker := jobs.NewWorker("index", indexProcessor, cfg.IndexPollInterval)
	go indexWorker.Start(ctx)
	log.Println("index worker started")

	var refunds service.RefundService
	if cfg.HasCoinService() {
		refunds = coin.NewClient(cfg.CoinServiceURL)
	} else {
		refunds = coin.NoopRefunder{}
		log.Println("COIN_SERVICE_URL not set; rejections will not refund")
	}

	// The review pipeline only runs with a Discord connection; without one
	// the operator API and index worker still serve.
	var bot *discord.Bot
	var sweepWorker *jobs.Worker
	if cfg.HasDiscord() {
		session, err := discord.NewSession(cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("failed to create discord session: %w", err)
		}

		messenger := discord.NewMessenger(session)
		coordinator := service.NewReviewCoordinator(reviewConfig(cfg), pendingRepo, knowledgeSvc, messenger, refunds)

		bot = discord.NewBot(session, coordinator)
		if err := bot.Open(); err != nil {
			return fmt.Errorf("failed to connect to discord: %w", err)
		}
		defer bot.Close()

		sweepProcessor := jobs.NewReviewSweeper(coordinator)
		sweepWorker = jobs.NewWorker("review-sweep", sweepProcessor, cfg.SweepInterval)
		go sweepWorker.Start(ctx)
		log.Println("review sweep worker started")
	} else {
		log.Println("DISCORD_TOKEN not set; review pipeline disabled")
	}

	reviewHandler := handlers.NewReviewHandler(pendingRepo, indexer)

	router := server.NewRouter(server.RouterConfig{
		ReviewHandler: reviewHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if sweepWorker != nil {
		sweepWorker.Stop()
	}
	indexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func reviewConfig(cfg *config.Config) service.ReviewConfig {
	return service.ReviewConfig{
		Window: cfg.ReviewWindow,
		General: service.ReviewThresholds{
			ApprovalThreshold:        cfg.ApprovalThreshold,
			InstantApprovalThreshold: cfg.InstantApprovalThreshold,
			RejectionThreshold:       cfg.RejectionThreshold,
		},
		Personal: service.ReviewThresholds{
			ApprovalThreshold:        cfg.PersonalApprovalThreshold,
			InstantApprovalThreshold: cfg.PersonalInstantThreshold,
			RejectionThreshold:       cfg.PersonalRejectThreshold,
		},
	}
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
