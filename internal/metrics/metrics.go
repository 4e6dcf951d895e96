// Package metrics exposes Prometheus instrumentation and a /healthz
// liveness endpoint for the market-data engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	TicksTotal     prometheus.Counter
	WSReconnects   prometheus.Counter
	CandlesTotal   prometheus.Counter
	TFCandlesTotal *prometheus.CounterVec // labels: tf

	IndicatorComputeDur prometheus.Histogram
	SignalEvalDur       prometheus.Histogram

	SignalsTotal         *prometheus.CounterVec // labels: direction
	SignalsRejectedTotal *prometheus.CounterVec // labels: reason

	TradesOpenedTotal prometheus.Counter
	TradesClosedTotal *prometheus.CounterVec // labels: status

	BusDropOldestTotal *prometheus.CounterVec // labels: topic

	PersistWriteDur prometheus.Histogram

	ActiveTimeframe prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexpulse_ticks_total",
			Help: "Total ticks received from the broker feed",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexpulse_ws_reconnects_total",
			Help: "Total broker WebSocket reconnection attempts",
		}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexpulse_candles_total",
			Help: "Total base candles closed",
		}),
		TFCandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexpulse_tf_candles_total",
			Help: "Total timeframe candles closed, by timeframe",
		}, []string{"tf"}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexpulse_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per TF candle",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SignalEvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexpulse_signal_eval_duration_seconds",
			Help:    "Signal engine evaluation latency per active-timeframe candle",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexpulse_signals_total",
			Help: "Total signals generated, by direction",
		}, []string{"direction"}),
		SignalsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexpulse_signals_rejected_total",
			Help: "Candidate setups rejected before becoming a signal, by reason",
		}, []string{"reason"}),

		TradesOpenedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexpulse_trades_opened_total",
			Help: "Total simulated trades opened",
		}),
		TradesClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexpulse_trades_closed_total",
			Help: "Total simulated trades closed, by terminal status",
		}, []string{"status"}),

		BusDropOldestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexpulse_bus_drop_oldest_total",
			Help: "Messages dropped from a full subscriber queue, by topic",
		}, []string{"topic"}),

		PersistWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexpulse_persist_write_duration_seconds",
			Help:    "Persistence sink write latency",
			Buckets: prometheus.DefBuckets,
		}),

		ActiveTimeframe: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexpulse_active_timeframe_seconds",
			Help: "The timeframe currently selected for signal generation",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.WSReconnects,
		m.CandlesTotal,
		m.TFCandlesTotal,
		m.IndicatorComputeDur,
		m.SignalEvalDur,
		m.SignalsTotal,
		m.SignalsRejectedTotal,
		m.TradesOpenedTotal,
		m.TradesClosedTotal,
		m.BusDropOldestTotal,
		m.PersistWriteDur,
		m.ActiveTimeframe,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	BrokerConnected  bool      `json:"broker_connected"`
	LastTickTime     time.Time `json:"last_tick_time"`
	PersistConnected bool      `json:"persist_connected"`
	ActiveTimeframe  int       `json:"active_timeframe"`
	EnabledTFs       []int     `json:"enabled_tfs"`

	PersistLatencyMs float64   `json:"persist_latency_ms"`
	LastCheckAt      time.Time `json:"last_check_at"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetBrokerConnected(v bool) {
	h.mu.Lock()
	h.BrokerConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetPersistConnected(v bool) {
	h.mu.Lock()
	h.PersistConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetActiveTimeframe(tf int) {
	h.mu.Lock()
	h.ActiveTimeframe = tf
	h.mu.Unlock()
}

func (h *HealthStatus) SetEnabledTFs(tfs []int) {
	h.mu.Lock()
	h.EnabledTFs = tfs
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.PersistConnected = err == nil
	h.PersistLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.PersistConnected = err == nil
	h.PersistLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Pass nil for
// whichever persistence backend is not in use.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.BrokerConnected || !h.PersistConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.BrokerConnected && !h.PersistConnected {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		BrokerConnected  bool    `json:"broker_connected"`
		LastTickTime     string  `json:"last_tick_time"`
		TickAge          string  `json:"tick_age"`
		PersistConnected bool    `json:"persist_connected"`
		PersistLatencyMs float64 `json:"persist_latency_ms"`
		ActiveTimeframe  int     `json:"active_timeframe"`
		EnabledTFs       []int   `json:"enabled_tfs"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		BrokerConnected:  h.BrokerConnected,
		LastTickTime:     h.LastTickTime.Format(time.RFC3339),
		TickAge:          tickAge,
		PersistConnected: h.PersistConnected,
		PersistLatencyMs: h.PersistLatencyMs,
		ActiveTimeframe:  h.ActiveTimeframe,
		EnabledTFs:       h.EnabledTFs,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
