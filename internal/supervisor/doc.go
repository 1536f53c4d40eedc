// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Package supervisor runs the shim's long-lived services under a suture v4 tree.

# Overview

	RootSupervisor ("tvshim")
	├── DataSupervisor ("data-layer")
	│   ├── JournalGCService (if MONITOR_JOURNAL_ENABLED)
	│   └── audit.Logger ("audit-logger", if AUDIT_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── monitor.Monitor ("rental-monitor")
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently, so a crashing hub is restarted
without dropping the HTTP listener. Supervisor events are logged through
sutureslog into the zerolog-backed slog handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(mon)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

# Configuration

TreeConfig zero values take suture's defaults: 5 failures, 30s decay, 15s
backoff and a 10s per-service shutdown timeout.

# Shutdown

Canceling the Serve context stops every layer. The monitor's Serve cancels
live timers and waits for in-flight timeout actions, so the journal must be
closed only after the tree has returned. UnstoppedServiceReport lists any
service that ignored cancellation.
*/
package supervisor
