package app

import (
	"context"
	"errors"

	"bbw200-gateway/internal/ble"
	"bbw200-gateway/internal/firehose"
)

// startScan starts the watcher unless it is already running.
func (a *App) startScan(ctx context.Context) {
	a.mu.Lock()
	if a.scanCancel != nil && !isClosed(a.scanDone) {
		a.mu.Unlock()
		return
	}
	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.scanCancel, a.scanDone = cancel, done
	a.mu.Unlock()

	a.showStatus("Status: Started.")

	go func() {
		defer close(done)
		err := a.watcher.Run(scanCtx, a.events)
		if scanCtx.Err() != nil {
			// Stopped by suspend or shutdown.
			return
		}
		// Clear before touching the board so a Resume queued behind the
		// status update can start a fresh watcher.
		a.mu.Lock()
		if a.scanDone == done {
			a.scanCancel, a.scanDone = nil, nil
		}
		a.mu.Unlock()
		cancel()

		if err == nil {
			err = ble.ErrWatcherStopped
		}
		a.logger.Warn("ble watcher stopped; not restarting", "error", err)
		a.showStatus("Status: " + err.Error())
	}()
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// stopScan cancels the watcher and waits for its callback to be released.
func (a *App) stopScan() {
	a.mu.Lock()
	cancel, done := a.scanCancel, a.scanDone
	a.scanCancel, a.scanDone = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Suspend stops scanning and releases the ingestion client.
func (a *App) Suspend() {
	a.logger.Info("suspending")
	a.stopScan()
	if a.sink != nil {
		a.sink.Close()
	}
	a.showStatus("Status: Suspended.")
}

// Resume restarts scanning and re-creates the ingestion client. A sink
// whose first Init failed stays disabled.
func (a *App) Resume(ctx context.Context) {
	a.logger.Info("resuming")
	a.startScan(ctx)
	if a.sink == nil {
		return
	}
	if err := a.sink.Reinit(ctx); err != nil {
		if errors.Is(err, firehose.ErrDisabled) {
			a.logger.Debug("remote ingestion stays disabled after resume")
			return
		}
		a.logger.Error("remote ingestion re-init failed", "error", err)
		a.showStatus("Status: cloud upload unavailable: " + err.Error())
	}
}
