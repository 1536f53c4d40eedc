// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

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

	"github.com/spf13/pflag"

	"github.com/tomtom215/tvshim/internal/api"
	"github.com/tomtom215/tvshim/internal/audit"
	"github.com/tomtom215/tvshim/internal/bridge"
	"github.com/tomtom215/tvshim/internal/config"
	"github.com/tomtom215/tvshim/internal/device"
	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/monitor"
	"github.com/tomtom215/tvshim/internal/store"
	"github.com/tomtom215/tvshim/internal/supervisor"
	"github.com/tomtom215/tvshim/internal/supervisor/services"
	ws "github.com/tomtom215/tvshim/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	if err := parseFlags(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("adb_path", cfg.Bridge.Path).
		Strs("configured_tvs", cfg.Devices.ConfiguredAddresses()).
		Bool("journal_enabled", cfg.Monitor.JournalEnabled).
		Bool("audit_enabled", cfg.Audit.Enabled).
		Msg("Starting TVShim")

	br := bridge.New(bridge.NewExecRunner(cfg.Bridge.Path), bridgeOptions(cfg.Bridge))
	ctrl := device.NewController(br, device.NewProfiles(cfg.Devices), device.OptionsFromConfig(cfg))

	// A missing tool is not fatal; /test-adb reports it.
	checkCtx, checkCancel := context.WithTimeout(context.Background(), cfg.Bridge.DefaultTimeout)
	if info, err := ctrl.ToolInfo(checkCtx); err != nil {
		logging.Warn().Err(err).Msg("Device bridge tool check failed")
	} else {
		logging.Info().Str("version", info.Version).Msg("Device bridge tool available")
	}
	checkCancel()

	var (
		journal    *store.Journal
		monJournal monitor.Journal
	)
	if cfg.Monitor.JournalEnabled {
		journal, err = store.Open(store.Config{Path: cfg.Monitor.JournalPath, SyncWrites: true})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open monitor journal")
		}
		monJournal = journal
	}

	wsHub := ws.NewHub()

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog = audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), audit.ConfigFrom(cfg.Audit))
	}

	observer := wsHub.Observer()
	if auditLog != nil {
		observer = monitor.Observers(wsHub.Observer(), auditLog.Observer())
	}

	mon := monitor.New(ctrl.TimeoutAction(), monitor.Options{
		HeartbeatInterval: cfg.Monitor.HeartbeatInterval,
		ActionTimeout:     cfg.Monitor.ActionTimeout,
		EventBuffer:       cfg.Monitor.EventBuffer,
		Journal:           monJournal,
		Observer:          observer,
	})

	handler := api.NewHandler(ctrl, mon, wsHub, cfg)
	if auditLog != nil {
		handler.SetAuditLog(auditLog)
	}
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)))

	// No WriteTimeout: event streams stay open for the rental's lifetime.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if journal != nil {
		tree.AddDataService(services.NewJournalGCService(journal, cfg.Monitor.JournalGCInterval))
	}
	if auditLog != nil {
		tree.AddDataService(auditLog)
	}
	tree.AddMessagingService(mon)
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	// The monitor has stopped, so no timer writes to the journal any more.
	if journal != nil {
		if err := journal.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing monitor journal")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// parseFlags handles --config, which overrides CONFIG_PATH.
func parseFlags(args []string) error {
	var configPath string

	flagSet := pflag.NewFlagSet("tvshim", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tvshim [--config FILE]\n\nEnvironment variables override the config file; see README.\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}
	return nil
}

func bridgeOptions(cfg config.BridgeConfig) bridge.Options {
	return bridge.Options{
		DefaultTimeout:    cfg.DefaultTimeout,
		LongTimeout:       cfg.LongTimeout,
		CommandsPerSecond: cfg.CommandsPerSecond,
		CommandBurst:      cfg.CommandBurst,
		Breaker: bridge.BreakerOptions{
			Enabled:          cfg.Breaker.Enabled,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		},
	}
}
