// Package pipeline turns raw advertisements into readings and fans them out
// to the display and, when enabled, to remote ingestion.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bbw200-gateway/internal/ble"
	"bbw200-gateway/internal/firehose"
	"bbw200-gateway/internal/utils"
)

const defaultSubmitTimeout = 10 * time.Second

// Display receives every decoded reading and free-form status text.
type Display interface {
	ShowReading(ble.SensorReading) error
	ShowStatus(text string) error
}

// Remote submits a reading once. Implementations must not retry.
type Remote interface {
	Submit(ctx context.Context, r ble.SensorReading) error
}

// Toggle is the live "send to cloud" switch.
type Toggle interface {
	CloudEnabled() bool
}

type Options struct {
	Filter        ble.Filter
	Display       Display
	Remote        Remote // optional
	Toggle        Toggle // optional; nil means never upload
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

type Stats struct {
	Received       uint64 `json:"received"`
	Ignored        uint64 `json:"ignored"`
	DecodeFailures uint64 `json:"decode_failures"`
	Readings       uint64 `json:"readings"`
	Submitted      uint64 `json:"submitted"`
	SubmitFailures uint64 `json:"submit_failures"`
}

type Pipeline struct {
	filter        ble.Filter
	display       Display
	remote        Remote
	toggle        Toggle
	submitTimeout time.Duration
	logger        *slog.Logger

	// waitMu keeps inflight.Add from overlapping a running Wait.
	waitMu   sync.Mutex
	inflight sync.WaitGroup

	received       atomic.Uint64
	ignored        atomic.Uint64
	decodeFailures atomic.Uint64
	readings       atomic.Uint64
	submitted      atomic.Uint64
	submitFailures atomic.Uint64
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Pipeline{
		filter:        opts.Filter,
		display:       opts.Display,
		remote:        opts.Remote,
		toggle:        opts.Toggle,
		submitTimeout: timeout,
		logger:        logger,
	}
}

// Run consumes events until ctx is done or events is closed, then waits for
// in-flight submissions.
func (p *Pipeline) Run(ctx context.Context, events <-chan ble.Advertisement) error {
	defer p.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case adv, ok := <-events:
			if !ok {
				return nil
			}
			p.HandleAdvertisement(ctx, adv)
		}
	}
}

// HandleAdvertisement processes one advertisement. It is safe for
// concurrent use, including alongside Wait.
func (p *Pipeline) HandleAdvertisement(ctx context.Context, adv ble.Advertisement) {
	p.received.Add(1)

	payload, ok := p.filter.FirstMatchingPayload(adv)
	if !ok {
		p.ignored.Add(1)
		return
	}

	reading, err := ble.Decode(payload)
	if err != nil {
		p.decodeFailures.Add(1)
		p.logger.Debug("ble: ignore undecodable payload",
			"addr", adv.Address,
			"data", utils.BytesToHex(payload),
			"error", err,
		)
		p.showStatus("Status: " + err.Error())
		return
	}

	reading.Timestamp = adv.SeenAt.UTC()
	if adv.SeenAt.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	p.readings.Add(1)

	// The display always sees the reading before any upload is attempted.
	if p.display != nil {
		if err := p.display.ShowReading(reading); err != nil {
			p.logger.Warn("display: failed to show reading", "error", err)
		}
	}

	p.logger.Info("ble: sensor reading",
		"addr", adv.Address,
		"rssi", adv.RSSI,
		"T", reading.TemperatureCelsius,
		"H", reading.HumidityPercent,
		"battery", reading.BatteryPercent,
	)

	if p.remote == nil || p.toggle == nil || !p.toggle.CloudEnabled() {
		return
	}
	p.submit(ctx, reading)
}

// submit runs on its own goroutine so a slow endpoint never holds up the
// next advertisement. Shutdown does not cancel it; the timeout bounds it.
func (p *Pipeline) submit(ctx context.Context, r ble.SensorReading) {
	p.waitMu.Lock()
	p.inflight.Add(1)
	p.waitMu.Unlock()
	go func() {
		defer p.inflight.Done()

		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.submitTimeout)
		defer cancel()

		err := p.remote.Submit(subCtx, r)
		switch {
		case err == nil:
			p.submitted.Add(1)
		case errors.Is(err, firehose.ErrDisabled):
			p.logger.Debug("remote ingestion disabled; reading not uploaded")
		default:
			p.submitFailures.Add(1)
			p.logger.Warn("remote ingestion: submit failed", "error", err)
			p.showStatus("Status: upload failed: " + err.Error())
		}
	}()
}

func (p *Pipeline) showStatus(text string) {
	if p.display == nil {
		return
	}
	if err := p.display.ShowStatus(text); err != nil {
		p.logger.Warn("display: failed to show status", "error", err)
	}
}

// Wait blocks until every in-flight submission has finished. Submissions
// started by HandleAdvertisement calls that race with Wait are held back
// until it returns.
func (p *Pipeline) Wait() {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	p.inflight.Wait()
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:       p.received.Load(),
		Ignored:        p.ignored.Load(),
		DecodeFailures: p.decodeFailures.Load(),
		Readings:       p.readings.Load(),
		Submitted:      p.submitted.Load(),
		SubmitFailures: p.submitFailures.Load(),
	}
}
