package live

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/livequote/internal/model"
)

// QuoteView is a quote with its current flash state.
type QuoteView struct {
	model.Quote
	Flash model.FlashDirection `json:"flash"`
}

// NewHandler serves the session over HTTP: /health, /quotes, /quotes/{symbol}
// and Prometheus metrics at metricsPath. An empty metricsPath disables
// the metrics endpoint.
func NewHandler(s *Session, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status    string                `json:"status"`
			Connected bool                  `json:"connected"`
			State     model.ConnectionState `json:"state"`
			Session   Stats                 `json:"session"`
		}{
			Status:    "healthy",
			Connected: s.Connected(),
			State:     s.State(),
			Session:   s.Stats(),
		}

		if !health.Connected {
			health.Status = "degraded"
		}

		writeJSON(w, http.StatusOK, health)
	})

	mux.HandleFunc("GET /quotes", func(w http.ResponseWriter, r *http.Request) {
		qs := s.Quotes()
		views := make([]QuoteView, 0, len(qs))
		for _, q := range qs {
			views = append(views, QuoteView{Quote: q, Flash: s.Flash(q.Symbol)})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"channel":   s.cfg.Channel,
			"connected": s.Connected(),
			"count":     len(views),
			"quotes":    views,
		})
	})

	mux.HandleFunc("GET /quotes/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimSpace(r.PathValue("symbol"))
		q, ok := s.Quote(symbol)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown symbol"})
			return
		}
		writeJSON(w, http.StatusOK, QuoteView{Quote: q, Flash: s.Flash(symbol)})
	})

	if metricsPath != "" {
		mux.Handle(metricsPath, promhttp.Handler())
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
