// Command engine is the composition root: it wires the streaming
// pipeline (broker ingest -> orchestrator -> persistence/gateway/
// notification) and runs it until an interrupt or terminate signal
// triggers graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"indexpulse/config"
	"indexpulse/internal/api"
	"indexpulse/internal/broker"
	"indexpulse/internal/bus"
	"indexpulse/internal/candle"
	"indexpulse/internal/gateway"
	"indexpulse/internal/indicator"
	"indexpulse/internal/logger"
	"indexpulse/internal/metrics"
	"indexpulse/internal/model"
	"indexpulse/internal/notification"
	"indexpulse/internal/orchestrator"
	"indexpulse/internal/signal"
	"indexpulse/internal/simulate"
	"indexpulse/internal/sr"
	"indexpulse/internal/state"
	"indexpulse/internal/store/redis"
	"indexpulse/internal/store/sqlite"
	"indexpulse/internal/stats"
	"indexpulse/internal/tfagg"
)

func main() {
	cfg := config.Load()
	log := logger.Init("indexpulse", slog.LevelInfo)

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tfs := cfg.ParseTimeframes()
	symbols := cfg.ParseSymbols()

	eventBus := bus.New(cfg.EventBusMaxQueueSize)

	builder := candle.New(cfg.CandleIntervalSeconds)
	aggregator := tfagg.New(tfs)
	market := state.New(cfg.MaxCandlesBuffer)
	indicators := indicator.New(cfg.EMAFastPeriod, cfg.EMASlowPeriod, cfg.RSIPeriod)
	srEngine := sr.New(sr.Config{
		TolerancePct:   cfg.SignalSRTolerancePct,
		KBreak:         cfg.SignalBreakoutCandleMult,
		MaxLevels:      cfg.SignalSRMaxLevels,
		ConsolidationN: cfg.SignalConsolidationCandles,
		KConsolidation: cfg.SignalConsolidationATRMult,
	})
	signalEngine := signal.New(signal.Config{
		MinConfirmations: cfg.SignalMinConfirmations,
		RRRatio:          cfg.SignalRRRatio,
		MinRR:            cfg.SignalMinRR,
		RSIOversold:      cfg.SignalRSIOversold,
		RSIOverbought:    cfg.SignalRSIOverbought,
		MinSLPct:         cfg.SignalMinSLPct,
		CooldownCandles:  cfg.SignalCooldownCandles,
	}, srEngine)
	tradeState := simulate.NewTradeState(500)
	simulator := simulate.New(simulate.Config{MaxTradeDurationMinutes: cfg.MaxTradeDuration}, tradeState)
	statsEngine := stats.New(tradeState)

	orch := orchestrator.New(eventBus, builder, aggregator, market, indicators, srEngine, signalEngine, simulator,
		orchestrator.Config{AvailableTimeframes: tfs, DefaultTimeframe: cfg.DefaultTimeframe}, model.PassThroughFilter)

	brokerClient := broker.New(broker.Config{
		URL:            cfg.BrokerWSURL,
		Symbols:        symbols,
		BaseDelay:      time.Duration(cfg.WSReconnectBaseDelay * float64(time.Second)),
		MaxDelay:       time.Duration(cfg.WSReconnectMaxDelay * float64(time.Second)),
		HeartbeatEvery: time.Duration(cfg.WSHeartbeatInterval) * time.Second,
	}, eventBus)

	hub := gateway.NewHub(eventBus)

	met := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetEnabledTFs(tfs)
	health.SetActiveTimeframe(orch.ActiveTimeframe())

	var sink model.PersistenceSink
	var historyReader *sqlite.Reader

	switch cfg.PersistBackend {
	case "redis":
		w, err := redis.New(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, eventBus)
		if err != nil {
			log.Error("engine: redis persistence unavailable", "error", err)
			os.Exit(1)
		}
		sink = w
	case "sqlite":
		w, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath}, eventBus)
		if err != nil {
			log.Error("engine: sqlite persistence unavailable", "error", err)
			os.Exit(1)
		}
		sink = w
		reader, err := sqlite.NewReader(cfg.SQLitePath)
		if err != nil {
			log.Warn("engine: sqlite history reader unavailable", "error", err)
		} else {
			historyReader = reader
		}
	case "none":
		log.Info("engine: persistence disabled")
	default:
		log.Warn("engine: unknown PERSIST_BACKEND, persistence disabled", "value", cfg.PersistBackend)
	}
	health.SetPersistConnected(sink != nil)

	var notifier notification.Notifier
	switch cfg.NotifierBackend {
	case "webhook":
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	case "telegram":
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	default:
		notifier = notification.NewLogNotifier()
	}
	dispatcher := notification.NewDispatcher(eventBus, notifier)

	router := api.NewRouter(orch, statsEngine, hub, historyReader)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	apiSrv := &http.Server{Addr: ":8080", Handler: router}

	ticks := eventBus.Subscribe("tick", "orchestrator")

	metricsSrv.Start()
	go func() {
		log.Info("engine: api server listening", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("engine: api server error", "error", err)
		}
	}()
	go orch.Run(ctx, ticks)
	go hub.Run(ctx)
	go dispatcher.Run(ctx)
	if sink != nil {
		go sink.Run(ctx)
	}
	go brokerClient.Run(ctx)
	go pollBrokerHealth(ctx, brokerClient, health, met)
	go pollActiveTimeframe(ctx, orch, met)

	log.Info("engine: started", "symbols", symbols, "timeframes", tfs, "default_tf", cfg.DefaultTimeframe)

	<-ctx.Done()
	log.Info("engine: shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Warn("engine: persistence close error", "error", err)
		}
	}
	if historyReader != nil {
		historyReader.Close()
	}
	log.Info("engine: shutdown complete")
}

// pollBrokerHealth mirrors the broker's connection stats into the
// health endpoint and the ticks/reconnects counters. The client only
// exposes cumulative counters, so the poller tracks the last observed
// value and reports the delta each tick.
func pollBrokerHealth(ctx context.Context, c *broker.Client, health *metrics.HealthStatus, met *metrics.Metrics) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	var lastTicks, lastReconnects int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Stats()
			health.SetBrokerConnected(s.Connected.Load())
			if ms := s.LastTickEpochMs.Load(); ms > 0 {
				health.SetLastTickTime(time.UnixMilli(ms))
			}
			if ticks := s.TicksReceived.Load(); ticks > lastTicks {
				met.TicksTotal.Add(float64(ticks - lastTicks))
				lastTicks = ticks
			}
			if reconnects := s.ReconnectAttempts.Load(); reconnects > lastReconnects {
				met.WSReconnects.Add(float64(reconnects - lastReconnects))
				lastReconnects = reconnects
			}
		}
	}
}

// pollActiveTimeframe keeps the active-timeframe gauge in sync with the
// orchestrator's selector, which changes only via the control-surface
// API and has no event of its own to hook.
func pollActiveTimeframe(ctx context.Context, orch *orchestrator.Orchestrator, met *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	met.ActiveTimeframe.Set(float64(orch.ActiveTimeframe()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			met.ActiveTimeframe.Set(float64(orch.ActiveTimeframe()))
		}
	}
}
