package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanamilabs/pretender-bot/internal/app"
	"github.com/hanamilabs/pretender-bot/internal/config"
	"github.com/hanamilabs/pretender-bot/internal/logging"
	"github.com/hanamilabs/pretender-bot/internal/service"
	"github.com/hanamilabs/pretender-bot/internal/storage"
	"github.com/hanamilabs/pretender-bot/internal/telegram"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pretender: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return runServe()
	}

	switch args[0] {
	case "serve":
		return runServe()
	case "migrate", "--migrate":
		return runMigrate()
	case "import-json":
		return runImportJSON(args[1:])
	case "export-json":
		return runExportJSON(args[1:])
	case "bootstrap":
		return runBootstrap(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runServe() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(logger, cfg.OTLPEndpoint, "pretender-bot", version)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	directory, err := service.NewDirectory(ctx, store)
	if err != nil {
		return fmt.Errorf("load relays: %w", err)
	}
	logger.Info("relays loaded", "backend", cfg.StoreBackend, "location", store.Location(), "count", directory.Len())

	bot, err := telegram.NewBotAPI(logger, cfg.BotToken, cfg.RequestTimeout, cfg.PollTimeoutSeconds)
	if err != nil {
		return err
	}
	gateway := telegram.NewGateway(bot, bot.Self)
	relayService := service.NewRelayService(logger, gateway, directory, cfg.ProjectURL)
	controlService := service.NewControlService(directory, relayService)
	runtime := telegram.NewRuntime(logger, bot, relayService.Handle, telegram.RuntimeOptions{
		Workers:            cfg.Workers,
		PollTimeoutSeconds: cfg.PollTimeoutSeconds,
		DropPendingUpdates: cfg.DropPendingUpdates,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.BotTransport == "webhook" {
			err = runtime.ServeWebhook(gctx, cfg.WebhookURL, cfg.WebhookListenAddr)
		} else {
			err = runtime.Poll(gctx)
		}
		if err == nil && gctx.Err() == nil {
			return errors.New("update source stopped")
		}
		return err
	})

	if cfg.HealthPort > 0 {
		server := app.NewHealthServer(cfg, logger, gateway, controlService, store.Location())
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !app.IsServerClosed(err) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info("pretender serving",
		"bot", bot.Self.UserName,
		"transport", cfg.BotTransport,
		"health_port", cfg.HealthPort,
		"version", version,
	)

	err = g.Wait()
	logger.Info("shutting down pretender")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runMigrate() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	stats, err := store.ImportLegacyJSON(ctx, cfg.RelaysFilePath)
	if err != nil {
		return err
	}

	fmt.Printf("migration complete (%s, imported relays=%d)\n", cfg.DatabasePath, stats.Relays)
	return nil
}

func runImportJSON(args []string) error {
	fs := flag.NewFlagSet("import-json", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	fs.StringVar(&path, "file", "", "relay JSON file to import (default RELAYS_FILE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.RelaysFilePath
	}

	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	stats, err := store.ImportLegacyJSON(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("import complete: relays=%d\n", stats.Relays)
	return nil
}

func runExportJSON(args []string) error {
	fs := flag.NewFlagSet("export-json", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	fs.StringVar(&path, "file", "", "relay JSON file to write (default RELAYS_FILE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.RelaysFilePath
	}

	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	n, err := store.ExportJSON(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("export complete: relays=%d file=%s\n", n, path)
	return nil
}

func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var envPath string
	fs.StringVar(&envPath, "env-file", ".env", "path to output .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	content := strings.Join(envLines(cfg), "\n") + "\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", envPath)
	return nil
}

func envLines(cfg config.Config) []string {
	return []string{
		"BOT_TOKEN=" + cfg.BotToken,
		"BOT_TRANSPORT=" + cfg.BotTransport,
		"WEBHOOK_URL=" + cfg.WebhookURL,
		"WEBHOOK_LISTEN_ADDR=" + cfg.WebhookListenAddr,
		"DATA_DIR=" + cfg.DataDir,
		"STORE_BACKEND=" + cfg.StoreBackend,
		"RELAYS_FILE=" + cfg.RelaysFilePath,
		"DATABASE_PATH=" + cfg.DatabasePath,
		"PROJECT_URL=" + cfg.ProjectURL,
		"REQUEST_TIMEOUT_MS=" + strconv.FormatInt(cfg.RequestTimeout.Milliseconds(), 10),
		"POLL_TIMEOUT_SECONDS=" + strconv.Itoa(cfg.PollTimeoutSeconds),
		"WORKERS=" + strconv.Itoa(cfg.Workers),
		"DROP_PENDING_UPDATES=" + strconv.FormatBool(cfg.DropPendingUpdates),
		"HEALTH_PORT=" + strconv.Itoa(cfg.HealthPort),
		"LOG_LEVEL=" + cfg.LogLevel,
		"LOG_FILE_PATH=" + cfg.LogFilePath,
		"LOG_MAX_SIZE_MB=" + strconv.Itoa(cfg.LogMaxSizeMB),
		"LOG_MAX_BACKUPS=" + strconv.Itoa(cfg.LogMaxBackups),
		"LOG_MAX_AGE_DAYS=" + strconv.Itoa(cfg.LogMaxAgeDays),
		"OTEL_EXPORTER_OTLP_ENDPOINT=" + cfg.OTLPEndpoint,
	}
}
