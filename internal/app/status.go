package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/seedgrid/internal/ctxlog"
)

// startStatusServer serves /health and a JSON snapshot of the run at
// /status until closeStatusServer is called.
func (a *App) startStatusServer(ctx context.Context, port int, snapshot func() Report) *http.Server {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring status server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot()); err != nil {
			logger.Warn("Failed to write status.", "error", err)
		}
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost%s/status", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return srv
}

func (a *App) closeStatusServer(ctx context.Context, srv *http.Server) {
	logger := ctxlog.FromContext(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
