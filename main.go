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

	"github.com/isdelr/nukta-be/internal/api"
	"github.com/isdelr/nukta-be/internal/api/handlers"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/config"
	"github.com/isdelr/nukta-be/internal/database"
	"github.com/isdelr/nukta-be/internal/logger"
	"github.com/isdelr/nukta-be/internal/media"
	"github.com/isdelr/nukta-be/internal/monitoring"
	"github.com/isdelr/nukta-be/internal/services"
	"github.com/isdelr/nukta-be/internal/store"
	"github.com/isdelr/nukta-be/internal/summarizer"
	"github.com/isdelr/nukta-be/internal/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "nukta",
		Usage: "Nukta blog API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			// A missing .env is normal outside development.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
			}
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending SQLite schema migrations and exit",
				Action: migrateCmd,
			},
			{
				Name:   "sweep-media",
				Usage:  "delete uploaded files no post references",
				Action: sweepCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("nukta failed")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())
	return cfg, nil
}

// openStore connects the backend selected by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data will not survive a restart")
		return store.NewMemoryStore(), nil
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		s, err := store.NewMongoStore(ctx, client, cfg.Database.Name)
		if err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		return s, nil
	default:
		db, err := database.New(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return store.NewSQLStore(db), nil
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := openStore(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	files, err := media.NewDiskStore(cfg.Upload.Dir, cfg.Upload.URLPrefix, cfg.Upload.MaxSize)
	if err != nil {
		return err
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiry)
	userService := services.NewUserService(st, tokens)
	postService := services.NewPostService(st, st, files, hub)
	gateway := summarizer.New(st, cfg.Summarizer.URL, cfg.Summarizer.APIKey, cfg.Summarizer.Timeout)
	if cfg.Summarizer.APIKey == "" {
		log.Warn().Msg("HUGGINGFACE_API_KEY is not set, summaries will fail")
	}

	// Orphaned media is only swept when a schedule is configured.
	var scheduler *monitoring.Scheduler
	if cfg.MediaSweep.Schedule != "" {
		sweeper := monitoring.NewMediaSweeper(files, st, cfg.MediaSweep.Grace)
		scheduler, err = monitoring.NewScheduler(cfg.MediaSweep.Schedule, sweeper)
		if err != nil {
			return err
		}
		go scheduler.Run()
	}

	router := api.NewRouter(api.Dependencies{
		Users:           userService,
		Posts:           postService,
		Summarizer:      gateway,
		Hub:             hub,
		AllowedOrigin:   cfg.CORSOrigin,
		Production:      cfg.IsProduction(),
		TokenTTL:        cfg.JWT.Expiry,
		UploadDir:       cfg.Upload.Dir,
		UploadURLPrefix: cfg.Upload.URLPrefix,
		Uploads: handlers.UploadLimits{
			MaxSize:         cfg.Upload.MaxSize,
			TooLargeMessage: files.TooLargeMessage(),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Env).Str("driver", cfg.Database.Driver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		hub.Stop()
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

func migrateCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "sqlite" {
		log.Info().Str("driver", cfg.Database.Driver).Msg("Nothing to migrate for this driver")
		return nil
	}
	db, err := database.New(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	return database.Migrate(db)
}

func sweepCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("sweep-media needs a persistent store")
	}

	st, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	files, err := media.NewDiskStore(cfg.Upload.Dir, cfg.Upload.URLPrefix, cfg.Upload.MaxSize)
	if err != nil {
		return err
	}

	result, err := monitoring.NewMediaSweeper(files, st, cfg.MediaSweep.Grace).Sweep(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d files, removed %d\n", result.Scanned, len(result.Removed))
	return nil
}
