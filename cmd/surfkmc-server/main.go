package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/daniacca/surfkmc/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "surfkmc-server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadServerConfig(args)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, false)

	srv, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	if cfg.ConfigFile != "" {
		simCfg, err := kmc.LoadSimulationConfig(cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading %s: %w", cfg.ConfigFile, err)
		}
		sim, err := srv.manager.CreateSimulation(simCfg, kmc.SimulationOptions{
			Notifications: srv.notifications,
			NotifierIDs:   []string{streamNotifierID},
		})
		if err != nil {
			return fmt.Errorf("creating simulation from %s: %w", cfg.ConfigFile, err)
		}
		logger.Info("initial simulation loaded", "id", sim.ID(), "file", cfg.ConfigFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("surfkmc-server listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
