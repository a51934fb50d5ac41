package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/beakerflow/beaker/pkg/metrics"
	"github.com/beakerflow/beaker/pkg/mid"
)

// serveDebug starts the optional debug/metrics server on port, exposing the
// registry's /metrics endpoint behind the teacher's logging/recovery/CORS
// middleware chain instead of metrics.Registry's own bare ServeAsync.
func serveDebug(log *slog.Logger, reg *metrics.Registry, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})

	handler := mid.Chain(mux, mid.Recover(log), mid.Logger(log), mid.CORS("*"))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("debug server listening", "addr", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Warn("debug server stopped", "err", err)
		}
	}()
}
