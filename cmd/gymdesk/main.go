package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/events"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/storage"
	catalogStore "gymdesk/internal/adapters/storage/catalog"
	"gymdesk/internal/adapters/storage/ledger"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/adapters/telemetry"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/config"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/outbox"
)

const (
	// Version is the current version of gymdesk.
	Version = "0.1.0"

	// BuildTime is set at build time.
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gymdesk",
		Short: "Gym front desk: members, receipts and dues",
		Long: `gymdesk records membership payments as versioned receipts,
reconciles what each member owes and renews memberships.

Running without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		RunE: runServe,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(seedCmd())
	cmd.AddCommand(processOutboxCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and outbox worker",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, ".env")
			if err != nil {
				return err
			}
			db, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("schema version %d\n", storage.LatestSchemaVersion())
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load master packages and tax settings from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, ".env")
			if err != nil {
				return err
			}
			db, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := orchestrators.ExecuteSeedCatalog(cmd.Context(), orchestrators.SeedCatalogInput{
				Packages: cfg.Catalog.Packages,
				Taxes:    cfg.Catalog.Taxes,
				Force:    force,
			}, orchestrators.SeedCatalogDeps{CatalogStore: catalogStore.NewSQLiteStore(db)})
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d packages, %d taxes\n", res.Packages, res.Taxes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Write entries even when the catalog is not empty")
	return cmd
}

func processOutboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-outbox",
		Short: "Run one outbox delivery pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, ".env")
			if err != nil {
				return err
			}
			db, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			notifier, closeNotifier, err := buildNotifier(cfg.NATS)
			if err != nil {
				return err
			}
			defer closeNotifier()

			processor := newOutboxProcessor(cfg, outboxStore.NewSQLiteStore(db), receiptStore.NewSQLiteStore(db), notifier)
			stats, err := processor.ProcessPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("processed %d: %d sent, %d failed, %d skipped\n",
				stats.Processed, stats.Succeeded, stats.Failed, stats.Skipped)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gymdesk version %s (build: %s, schema: %d)\n", Version, BuildTime, storage.LatestSchemaVersion())
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: "gymdesk",
		Version:     Version,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing_shutdown_failed", "error", err)
		}
	}()

	db, err := openDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Database.SlowQueryMs)

	stores := &web.Stores{
		MemberStore:  memberStore.NewSQLiteStore(timedDB),
		ReceiptStore: receiptStore.NewSQLiteStore(timedDB),
		CatalogStore: catalogStore.NewSQLiteStore(timedDB),
		OutboxStore:  outboxStore.NewSQLiteStore(timedDB),
		Ledger:       ledger.New(timedDB),
	}

	if _, err := orchestrators.ExecuteSeedCatalog(ctx, orchestrators.SeedCatalogInput{
		Packages: cfg.Catalog.Packages,
		Taxes:    cfg.Catalog.Taxes,
	}, orchestrators.SeedCatalogDeps{CatalogStore: stores.CatalogStore}); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	notifier, closeNotifier, err := buildNotifier(cfg.NATS)
	if err != nil {
		return err
	}
	defer closeNotifier()

	processor := newOutboxProcessor(cfg, stores.OutboxStore, stores.ReceiptStore, notifier)
	outboxStopCh := make(chan struct{})
	orchestrators.StartBackgroundWorker(processor, cfg.Outbox.Interval, outboxStopCh)
	defer close(outboxStopCh)

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	handler, err := web.NewServer(stores, web.Options{
		StaticDir:          cfg.Server.StaticDir,
		CSRFKey:            csrfKey,
		Production:         cfg.IsProduction(),
		RateLimitPerSecond: cfg.Server.RateLimitPerSecond,
		SlowRequestMs:      cfg.Server.SlowRequestMs,
		Notifier:           notifier,
		Outbox:             processor,
		Ping:               db.PingContext,
		SchemaVersion:      storage.LatestSchemaVersion(),
	}, collector)
	if err != nil {
		return err
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			"addr", cfg.Server.Addr,
			"version", Version,
			"env", cfg.Env,
			"schema", storage.LatestSchemaVersion(),
			"gym", cfg.Gym.Name,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDB opens the SQLite database and applies pending migrations.
// POST: The caller closes the returned handle
func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", storage.DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// buildNotifier fans events out to the in-process bus and, when configured, NATS.
func buildNotifier(cfg config.NATSConfig) (event.Notifier, func(), error) {
	bus := event.NewBus()
	bus.Subscribe(func(e event.Event) {
		slog.Debug("change_event", "kind", e.Kind, "member_id", e.MemberID, "receipt_id", e.ReceiptID)
	})
	if cfg.URL == "" {
		return bus, func() {}, nil
	}

	nc, err := events.Connect(cfg.URL, cfg.SubjectPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: %w", err)
	}
	slog.Info("nats_connected", "url", cfg.URL, "prefix", cfg.SubjectPrefix)
	return event.Multi{bus, nc}, func() {
		if err := nc.Close(); err != nil {
			slog.Warn("nats_close_failed", "error", err)
		}
	}, nil
}

func newOutboxProcessor(cfg config.Config, store outboxStore.Store, receipts orchestrators.ReceiptReader, notifier event.Notifier) *orchestrators.OutboxProcessor {
	var sender email.Sender
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_delivery_disabled", "reason", "GYMDESK_RESEND_KEY not set")
		}
	}

	executors := map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeReceiptEmail: &orchestrators.ReceiptEmailExecutor{
			Receipts: receipts,
			Sender:   sender,
			From:     cfg.Email.From,
			ReplyTo:  cfg.Email.ReplyTo,
			GymName:  cfg.Gym.Name,
		},
		outbox.ActionTypeEventNotify: &orchestrators.EventNotifyExecutor{Notifier: notifier},
	}
	return orchestrators.NewOutboxProcessor(store, executors,
		orchestrators.WithBackoff(cfg.Outbox.BaseDelay, cfg.Outbox.MaxDelay),
		orchestrators.WithBatchSize(cfg.Outbox.BatchSize),
	)
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
