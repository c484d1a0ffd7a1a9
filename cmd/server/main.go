package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"spotscan/internal/api"
	"spotscan/internal/cache"
	"spotscan/internal/config"
	"spotscan/internal/coordinator"
	"spotscan/internal/exchange"
	"spotscan/internal/models"
	"spotscan/internal/notify"
	"spotscan/internal/repository"
	"spotscan/internal/risk"
	"spotscan/internal/scanner"
	"spotscan/internal/selector"
	"spotscan/internal/signalbus"
	"spotscan/internal/trading"
	"spotscan/internal/wsbus"
	"spotscan/pkg/ratelimit"
	"spotscan/pkg/utils"
)

// fanoutBroadcaster satisfies trading.Broadcaster, risk.Broadcaster, and
// scanner.StatusBroadcaster by forwarding every event to both the
// dashboard websocket hub and the Telegram notifier, so each observer
// stays independent (neither knows the other exists).
type fanoutBroadcaster struct {
	hub    *wsbus.Hub
	notify *notify.Notifier
}

func (f *fanoutBroadcaster) TradeOpened(trade models.Trade) {
	f.hub.TradeOpened(trade)
	f.notify.TradeOpened(trade)
}

func (f *fanoutBroadcaster) TradeCancelled(trade models.Trade) {
	f.hub.TradeCancelled(trade)
	f.notify.TradeCancelled(trade)
}

func (f *fanoutBroadcaster) TradeClosed(trade models.Trade) {
	f.hub.TradeClosed(trade)
	f.notify.TradeClosed(trade)
}

func (f *fanoutBroadcaster) StopAdjusted(trade models.Trade) {
	f.hub.StopAdjusted(trade)
	f.notify.StopAdjusted(trade)
}

func (f *fanoutBroadcaster) TakeProfitExecuted(trade models.Trade, level int) {
	f.hub.TakeProfitExecuted(trade, level)
	f.notify.TakeProfitExecuted(trade, level)
}

func (f *fanoutBroadcaster) Emergency(reason string) {
	f.hub.Emergency(reason)
	f.notify.Emergency(reason)
}

func (f *fanoutBroadcaster) ScannerStatus(mode string, symbolsScanned int) {
	f.hub.ScannerStatus(mode, symbolsScanned)
	f.notify.ScannerStatus(mode, symbolsScanned)
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := utils.InitLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()
	log.Infow("connected to database")

	repo := repository.New(db)

	limiter := ratelimit.New(ratelimit.DefaultLimits())
	coord := coordinator.New(limiter)
	coord.Register("trading", coordinator.ClassTrading)
	coord.Register("scanner", coordinator.ClassScanner)
	coord.Register("selector", coordinator.ClassAnalysis)

	tradingClient := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, coord, "trading")
	scannerClient := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, coord, "scanner")
	selectorClient := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, coord, "selector")

	sel := selector.New(selectorClient, cfg.Selector, cfg.Trading.MinVolume24hUSDT, cfg.Scanner.SelectorRefreshEvery, log)

	bus := signalbus.New(1000, log)
	candleCache := cache.New(cfg.Cache.MaxEntries, cache.DefaultPolicies())

	scan := scanner.New(
		scannerClient, candleCache, limiter, sel, bus, repo, repo,
		cfg.Indicators, cfg.Scanner, cfg.Trading.SignalThresholdBuy, cfg.Trading.SignalPersistThreshold, log,
	)

	engine := trading.New(tradingClient, repo, cfg.Trading, log)
	riskLoop := risk.New(tradingClient, repo, engine, repo, cfg.Trading, log)

	hub := wsbus.NewHub(log)

	notifier, err := notify.New(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID, log)
	if err != nil {
		log.Fatalw("failed to init telegram notifier", "error", err)
	}

	fanout := &fanoutBroadcaster{hub: hub, notify: notifier}
	engine.SetBroadcaster(fanout)
	riskLoop.SetBroadcaster(fanout)
	scan.SetBroadcaster(fanout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bus.Start()
	defer bus.Stop()

	tradingSignals := bus.Subscribe("trading")
	dashboardSignals := bus.Subscribe("dashboard")
	defer bus.Unsubscribe("trading")
	defer bus.Unsubscribe("dashboard")

	go hub.Run(ctx.Done())
	go hub.SubscribeSignals(ctx.Done(), dashboardSignals)
	go engine.Run(ctx, tradingSignals)

	sel.Start(ctx)
	defer sel.Stop()
	riskLoop.Start(ctx)
	defer riskLoop.Stop()
	go scan.Run(ctx)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				candleCache.Sweep()
			}
		}
	}()

	deps := &api.Dependencies{
		Repo:                 repo,
		Coordinator:          coord,
		Bus:                  bus,
		Hub:                  hub,
		Risk:                 riskLoop,
		Engine:               engine,
		Selector:             sel,
		DB:                   db,
		StartedAt:            time.Now(),
		Log:                  log,
		OperatorPasswordHash: cfg.Security.OperatorPasswordHash,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("starting dashboard server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Infow("server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
