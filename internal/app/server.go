package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sha1n/mcp-lineage-server/internal/config"
)

// StartSSEServer starts the SSE server
func StartSSEServer(s *mcp.Server, settings *config.Settings, gatherer prometheus.Gatherer) error {
	srv := NewSSEServer(s, settings, gatherer)

	slog.Info("Server listening (HTTP)", "addr", srv.Addr, "metrics", settings.Metrics.Enabled)
	return srv.ListenAndServe()
}

// NewSSEServer creates a new SSE server. When metrics are enabled and a
// gatherer is given, its metrics are served on /metrics.
func NewSSEServer(s *mcp.Server, settings *config.Settings, gatherer prometheus.Gatherer) *http.Server {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/sse", sseHandler)

	if settings.Metrics.Enabled && gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler: mux,
	}
}
