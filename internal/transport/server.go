package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-wsi-cohort/internal/config"
	"go-wsi-cohort/internal/logger"

	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds the graceful shutdown
const shutdownTimeout = 30 * time.Second

// Serve runs the HTTP server until ctx is done, then shuts it down gracefully
func Serve(ctx context.Context, handler http.Handler, cfg *config.Config) error {
	// Extraction responses can take the whole request timeout to compute
	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.Server.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return err
	}

	logger.Info("Server exited")
	return nil
}
