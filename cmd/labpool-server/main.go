package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labpool/labpool/internal/config"
	"github.com/labpool/labpool/internal/domain/pool"
	"github.com/labpool/labpool/internal/platform/auth"
	"github.com/labpool/labpool/internal/platform/db"
	"github.com/labpool/labpool/internal/platform/metrics"
	"github.com/labpool/labpool/internal/platform/middleware"
	"github.com/labpool/labpool/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labpool-server",
		Short: "Lab work pool API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the work pool API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pgPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			migrator := db.NewMigrator(pgPool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pgPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			migrator := db.NewMigrator(pgPool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert development fixture items into the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production database")
			}

			ctx := context.Background()
			pgPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			svc := pool.NewService(pool.NewItemRepoPG(pgPool))

			kinds := []pool.Kind{pool.KindLabTest, pool.KindLabRequest}
			urgencies := []pool.Urgency{pool.UrgencyRoutine, pool.UrgencyRoutine, pool.UrgencyUrgent, pool.UrgencyStat}
			for i := 0; i < count; i++ {
				payload := json.RawMessage(fmt.Sprintf(`{"accession":"SEED-%04d"}`, i+1))
				item, err := svc.CreateItem(ctx, kinds[i%len(kinds)], urgencies[i%len(urgencies)], payload)
				if err != nil {
					return fmt.Errorf("seed item %d: %w", i+1, err)
				}
				fmt.Printf("created %s %s (%s)\n", item.Kind, item.ID, item.Urgency)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 10, "Number of fixture items to create")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Item store
	ctx := context.Background()
	var items pool.ItemRepository
	var dbPool *pgxpool.Pool
	if cfg.Store == "memory" {
		items = pool.NewMemoryRepo()
		logger.Warn().Msg("using in-memory item store; data is lost on restart")
	} else {
		dbPool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer dbPool.Close()
		logger.Info().Msg("connected to database")
		items = pool.NewItemRepoPG(dbPool)
	}

	// Domain wiring
	svc := pool.NewService(items)
	queries := pool.NewQueryFacade(items)

	sinks := []pool.TransitionNotifier{notification.NewLogSink(logger)}
	if cfg.NotifyEmail != "" {
		sender := notification.NewLogEmailSender(logger)
		sinks = append(sinks, notification.NewEmailSink(sender, notification.NewTemplateEngine(), cfg.NotifyEmail, logger))
	}
	svc.SetNotifier(notification.NewFanout(sinks...))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Worker-ID"},
	}))

	// Health and metrics stay open; auth guards the API group only
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if dbPool != nil {
		e.GET("/health/db", db.HealthHandler(dbPool))
	}
	e.GET("/metrics", metrics.Handler())

	// API routes
	apiV1 := e.Group("/api/v1", authMW)
	handler := pool.NewHandler(svc, queries)
	handler.RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	return nil
}
