// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Package services adapts shim components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown to Serve
  - WebSocketHubService: the dashboard hub's RunWithContext
  - JournalGCService: periodic BadgerDB value-log GC for the monitor journal

The rental monitor implements Serve and String itself and is added to the
tree without a wrapper.
*/
package services
