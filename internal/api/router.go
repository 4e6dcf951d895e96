// Package api exposes the engine's control-surface HTTP API: switching
// the active timeframe and reading performance metrics.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"indexpulse/internal/gateway"
	"indexpulse/internal/orchestrator"
	"indexpulse/internal/stats"
	"indexpulse/internal/store/sqlite"
)

// NewRouter builds the control-surface mux: timeframe selection,
// per-symbol performance metrics, and the live event WebSocket. history
// may be nil when the configured persistence backend is not SQLite, in
// which case /v1/candles is not registered.
func NewRouter(orch *orchestrator.Orchestrator, statsEngine *stats.Engine, hub *gateway.Hub, history *sqlite.Reader) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/v1/timeframe", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]int{"active_timeframe": orch.ActiveTimeframe()})
		case http.MethodPost:
			var body struct {
				Seconds int `json:"seconds"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if err := orch.SetActiveTimeframe(body.Seconds); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"active_timeframe": orch.ActiveTimeframe()})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/metrics/", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/v1/metrics/")
		writeJSON(w, http.StatusOK, statsEngine.GetMetrics(symbol))
	})
	mux.HandleFunc("/v1/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsEngine.GetMetrics(""))
	})

	mux.HandleFunc("/v1/stream", hub.ServeWS)

	if history != nil {
		mux.HandleFunc("/v1/candles/", func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/candles/"), "/")
			if len(parts) != 2 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected /v1/candles/{symbol}/{tf}"})
				return
			}
			tf, err := strconv.Atoi(parts[1])
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tf must be an integer number of seconds"})
				return
			}
			limit := 500
			if q := r.URL.Query().Get("limit"); q != "" {
				if n, err := strconv.Atoi(q); err == nil && n > 0 {
					limit = n
				}
			}
			candles, err := history.ReadTFCandles(parts[0], tf, limit)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, candles)
		})
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
