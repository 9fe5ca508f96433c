package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bbw200-gateway/internal/utils"

	"tinygo.org/x/bluetooth"
)

// ErrWatcherStopped is returned by Run when scanning ends without the
// caller asking for it (radio off, adapter gone).
var ErrWatcherStopped = errors.New("advertisement watcher stopped")

type Options struct {
	Adapter   string // "hci0" by default
	CompanyID uint16
	Logger    *slog.Logger
}

// Listener wraps BlueZ scanning with context cancellation and hands
// matching advertisements to a bounded channel.
type Listener struct {
	adapter *bluetooth.Adapter
	opts    Options
	logger  *slog.Logger

	enableOnce sync.Once
	enableErr  error

	dropped atomic.Uint64
}

func NewListener(opts Options) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	if opts.CompanyID == 0 {
		opts.CompanyID = DefaultCompanyID
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
		logger:  logger,
	}
}

// Dropped returns how many advertisements were discarded because the
// channel was full.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// Run scans until ctx is canceled or the adapter stops. Run may be called
// again after it returns; the adapter is enabled only once.
func (l *Listener) Run(ctx context.Context, out chan<- Advertisement) error {
	l.enableOnce.Do(func() {
		l.logger.Info("ble: enabling adapter", "adapter", l.opts.Adapter)
		l.enableErr = l.adapter.Enable()
	})
	if l.enableErr != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, l.enableErr)
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.adapter.StopScan()
		case <-stopped:
		}
	}()

	l.logger.Info("ble: scanning started",
		"adapter", l.opts.Adapter,
		"filter_company", "0x"+utils.Hex4(l.opts.CompanyID),
	)

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		// A canceled scan may still flush a result; it must not reach
		// a pipeline that is being torn down.
		if ctx.Err() != nil {
			return
		}

		adv := Advertisement{
			Address:   r.Address.String(),
			RSSI:      r.RSSI,
			LocalName: r.LocalName(),
			SeenAt:    time.Now(),
		}
		for _, md := range r.ManufacturerData() {
			adv.Sections = append(adv.Sections, ManufacturerSection{
				CompanyID: md.CompanyID,
				Data:      append([]byte(nil), md.Data...),
			})
		}

		if !adv.HasCompany(l.opts.CompanyID) {
			return
		}
		l.deliver(ctx, out, adv)
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		l.logger.Info("ble: scanning stopped (context canceled)")
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: ble scan: %v", ErrWatcherStopped, err)
	}
	return ErrWatcherStopped
}

// deliver never blocks the radio callback. It reports whether adv was queued.
func (l *Listener) deliver(ctx context.Context, out chan<- Advertisement, adv Advertisement) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- adv:
		return true
	default:
		n := l.dropped.Add(1)
		l.logger.Debug("ble: event buffer full, advertisement dropped",
			"addr", adv.Address,
			"dropped_total", n,
		)
		return false
	}
}
