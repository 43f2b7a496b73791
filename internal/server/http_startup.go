package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/observability"
)

// InitializeObservability sets up the observability manager for serve mode.
// It is created before the services so they can report to it.
func InitializeObservability(appCfg *config.Config, version string) (*observability.ObservabilityManager, error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(appCfg, version), appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// Start serves until SIGINT or SIGTERM, then shuts down om with the server
func (s *Server) Start(om *observability.ObservabilityManager) error {
	if om == nil {
		var err error
		if om, err = InitializeObservability(s.AppConfig, s.Version); err != nil {
			return err
		}
	}
	defer s.shutdownObservability(om)

	httpServer := s.setupHTTPServer(om)

	stopPrompts, err := s.startPromptWatcher()
	if err != nil {
		return err
	}
	defer stopPrompts()

	if err := s.startKeyWatcher(); err != nil {
		return err
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(httpServer)
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	handler := om.HTTPMiddleware()(s.setupRoutes(om))

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startPromptWatcher reloads prompt files on change when server.watchPrompts is set
func (s *Server) startPromptWatcher() (func(), error) {
	noop := func() {}
	if s.AppConfig == nil || !s.AppConfig.Server.WatchPrompts || len(s.AppConfig.PromptFiles()) == 0 {
		return noop, nil
	}

	watcher, err := config.NewPromptWatcher(s.AppConfig, 0, func(f config.PromptFile, err error) {
		if err != nil {
			s.Logger.LogError(err, "Prompt reload failed, keeping previous prompt",
				"operation", f.Operation, "type", f.Type)
			return
		}
		s.Logger.Info("Prompt reloaded", "operation", f.Operation, "type", f.Type, "path", f.Path)
	}, s.Logger)
	if err != nil {
		return noop, err
	}
	if err := watcher.Start(); err != nil {
		return noop, fmt.Errorf("failed to start prompt watcher: %w", err)
	}

	return func() {
		if err := watcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop prompt watcher")
		}
	}, nil
}

// startKeyWatcher polls Vault for rotated API keys when vault.watchInterval is set
func (s *Server) startKeyWatcher() error {
	if s.AppConfig == nil {
		return nil
	}
	vaultCfg := s.AppConfig.Vault
	if !vaultCfg.Enabled || vaultCfg.WatchInterval <= 0 || vaultCfg.Secrets.APIKeys == "" {
		return nil
	}

	client, err := config.NewVaultClient(vaultCfg, s.Logger)
	if err != nil {
		return fmt.Errorf("failed to create vault client for key watcher: %w", err)
	}

	s.keyWatcher = NewKeyWatcher(client, vaultCfg.Secrets.APIKeys, vaultCfg.WatchInterval, s.SetAPIKeys, s.Logger)
	return s.keyWatcher.Start()
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.cleanup()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanup stops the background workers owned by the server
func (s *Server) cleanup() {
	if s.keyWatcher != nil {
		s.keyWatcher.Stop()
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
