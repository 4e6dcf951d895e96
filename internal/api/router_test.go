package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"indexpulse/internal/bus"
	"indexpulse/internal/candle"
	"indexpulse/internal/gateway"
	"indexpulse/internal/indicator"
	"indexpulse/internal/orchestrator"
	"indexpulse/internal/signal"
	"indexpulse/internal/simulate"
	"indexpulse/internal/sr"
	"indexpulse/internal/state"
	"indexpulse/internal/stats"
	"indexpulse/internal/tfagg"
)

func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()
	b := bus.New(100)
	srEngine := sr.New(sr.Config{TolerancePct: 0.0015, KBreak: 1.2, MaxLevels: 10, ConsolidationN: 10, KConsolidation: 2.0})
	sigEngine := signal.New(signal.Config{MinConfirmations: 1, RRRatio: 2.0, MinRR: 0.1, RSIOversold: 35, RSIOverbought: 65, MinSLPct: 0.00001, CooldownCandles: 1}, srEngine)
	tradeState := simulate.NewTradeState(100)
	sim := simulate.New(simulate.Config{MaxTradeDurationMinutes: 30}, tradeState)
	statsEngine := stats.New(tradeState)
	orch := orchestrator.New(b, candle.New(5), tfagg.New([]int{300, 900}), state.New(200), indicator.New(2, 3, 4), srEngine, sigEngine, sim,
		orchestrator.Config{AvailableTimeframes: []int{300, 900}, DefaultTimeframe: 300}, nil)
	hub := gateway.NewHub(b)

	return NewRouter(orch, statsEngine, hub, nil)
}

func TestRouter_Health(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_TimeframeGetReturnsDefault(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/timeframe", nil))

	var body struct {
		ActiveTimeframe int `json:"active_timeframe"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ActiveTimeframe != 300 {
		t.Errorf("expected default active timeframe 300, got %d", body.ActiveTimeframe)
	}
}

func TestRouter_TimeframePostSwitchesActive(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/timeframe", bytes.NewBufferString(`{"seconds":900}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/v1/timeframe", nil))
	var body struct {
		ActiveTimeframe int `json:"active_timeframe"`
	}
	json.NewDecoder(rec2.Body).Decode(&body)
	if body.ActiveTimeframe != 900 {
		t.Errorf("expected active timeframe 900 after switch, got %d", body.ActiveTimeframe)
	}
}

func TestRouter_TimeframePostRejectsUnconfiguredTF(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/timeframe", bytes.NewBufferString(`{"seconds":60}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unconfigured timeframe, got %d", rec.Code)
	}
}

func TestRouter_MetricsGlobalReturnsOK(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_CandlesNotRegisteredWithoutHistoryReader(t *testing.T) {
	mux := newTestRouter(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/candles/R_100/300", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no history reader is configured, got %d", rec.Code)
	}
}
