package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"medslots/internal/api"
	"medslots/internal/app"
	"medslots/internal/config"
	"medslots/internal/database"
	"medslots/internal/google"
	"medslots/internal/metrics"
	"medslots/internal/notify"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MEDSLOTS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, &logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	defer application.Close()

	go application.WatchCatalog(ctx)

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.AlertChatIDs) > 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AlertChatIDs, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram alerts disabled")
		} else {
			notifier.Subscribe(application.Bus)
			go notifier.Run(ctx)
		}
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, application, &logger)

	if cfg.Monitoring.GRPCHealthPort > 0 {
		go startGRPCHealthServer(ctx, cfg.Monitoring.GRPCHealthPort, application, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled && application.DB != nil {
		backups := database.NewBackupService(application.DB, cfg.Backup, &logger)
		go backups.Start(ctx)
	}

	if cfg.Sheets.Enabled {
		sheets, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, application.Location, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("google sheets publishing disabled")
		} else {
			go sheets.Start(ctx, cfg.SheetsInterval(), application.Service.Snapshot)
		}
	}

	server := api.NewHTTPServer(api.Config{
		Port:         cfg.API.Port,
		APIKey:       cfg.API.APIKey,
		RateLimitRPS: cfg.API.RateLimitRPS,
		RateBurst:    cfg.API.RateBurst,
		Location:     application.Location,
	}, application.Service, application.Appointments, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("storage", cfg.Storage).Msg("slot engine started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}
