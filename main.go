package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"osrs-flipper/internal/api"
	"osrs-flipper/internal/config"
	"osrs-flipper/internal/db"
	"osrs-flipper/internal/logger"
	"osrs-flipper/internal/notify"
	"osrs-flipper/internal/refresh"
	"osrs-flipper/internal/wiki"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to settings file (optional)")
	port := flag.Int("port", 0, "HTTP server port (overrides settings)")
	flag.Parse()

	logger.Banner(version)

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	if *port > 0 {
		settings.Server.Port = *port
	}
	if err := settings.Validate(); err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	logger.SetQuiet(settings.Logging.Quiet)

	database, err := db.Open(settings.Storage.DBPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	client := wiki.NewClient(settings.Feed.BaseURL, settings.Feed.UserAgent, settings.Feed.Timeout, settings.Feed.Concurrency)

	var notifier refresh.Notifier
	if settings.Telegram.Enabled {
		tg, err := notify.NewTelegram(settings.Telegram.BotToken, settings.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Error("NOTIFY", fmt.Sprintf("Telegram disabled: %v", err))
		} else {
			notifier = notify.NewAlerter(tg, database, notify.DefaultCooldown)
			logger.Success("NOTIFY", "Telegram alerts enabled")
		}
	}

	orch := refresh.New(client, database, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Refresh(ctx); err != nil {
		logger.Warn("REFRESH", fmt.Sprintf("Initial refresh failed, retrying on schedule: %v", err))
	} else {
		res := orch.Result()
		logger.Section("First cycle")
		logger.Stats("Items", orch.Status().ItemCount)
		logger.Stats("Rows", len(res.Rows))
		logger.Stats("Diagnostic", res.Diagnostic)
	}

	sched := refresh.NewScheduler(ctx, orch)
	keep := time.Duration(settings.Storage.HistoryKeepDay) * 24 * time.Hour
	if err := sched.Register(settings.Refresh.Cron, database, keep); err != nil {
		logger.Error("SCHED", err.Error())
		os.Exit(1)
	}
	sched.Start()

	srv := api.NewServer(orch, database, client, settings.Refresh.SearchDebounce)
	addr := fmt.Sprintf("127.0.0.1:%d", settings.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Server(addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server", fmt.Sprintf("Failed: %v", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("MAIN", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server", fmt.Sprintf("Shutdown: %v", err))
	}
	srv.Close()
	sched.Stop()
}
