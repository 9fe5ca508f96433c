// Package display holds the gateway's user-visible state: three text
// channels (temperature, humidity, battery/status) and the "send to cloud"
// toggle. Every mutation runs on the board's own goroutine.
package display

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"bbw200-gateway/internal/ble"
)

// ErrClosed is returned once the board goroutine has exited.
var ErrClosed = errors.New("display board closed")

const opQueueSize = 64

// State is a snapshot of what the display shows.
type State struct {
	Temperature  string    `json:"temperature"`
	Humidity     string    `json:"humidity"`
	Status       string    `json:"status"`
	CloudEnabled bool      `json:"cloud_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Renderer pushes a state somewhere visible (MQTT, logs).
type Renderer interface {
	Render(State) error
}

type RendererFunc func(State) error

func (f RendererFunc) Render(s State) error { return f(s) }

type Board struct {
	logger    *slog.Logger
	renderers []Renderer

	ops  chan func()
	done chan struct{}

	// state is owned by the Run goroutine.
	state State
	cloud atomic.Bool
}

func NewBoard(logger *slog.Logger, cloudEnabled bool, renderers ...Renderer) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		logger:    logger,
		renderers: renderers,
		ops:       make(chan func(), opQueueSize),
		done:      make(chan struct{}),
	}
	b.state.CloudEnabled = cloudEnabled
	b.cloud.Store(cloudEnabled)
	return b
}

// AddRenderer registers r. It must be called before Run.
func (b *Board) AddRenderer(r Renderer) {
	b.renderers = append(b.renderers, r)
}

// Run executes queued mutations until ctx is done.
func (b *Board) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-b.ops:
			op()
		}
	}
}

// do marshals fn onto the board goroutine without waiting for it to run.
func (b *Board) do(fn func()) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.ops <- fn:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

func (b *Board) update(mutate func(*State)) error {
	return b.do(func() {
		mutate(&b.state)
		b.state.UpdatedAt = time.Now().UTC()
		b.render()
	})
}

func (b *Board) render() {
	for _, r := range b.renderers {
		if err := r.Render(b.state); err != nil {
			b.logger.Warn("display: render failed", "error", err)
		}
	}
}

// ShowReading replaces all three channels with r's values.
func (b *Board) ShowReading(r ble.SensorReading) error {
	return b.update(func(s *State) {
		s.Temperature = r.TemperatureText()
		s.Humidity = r.HumidityText()
		s.Status = r.BatteryText()
	})
}

// ShowStatus replaces the battery/status channel.
func (b *Board) ShowStatus(text string) error {
	return b.update(func(s *State) {
		s.Status = text
	})
}

// SetCloudEnabled changes the toggle from the board goroutine. The new
// value is visible to CloudEnabled once the board has applied it.
func (b *Board) SetCloudEnabled(v bool) error {
	return b.update(func(s *State) {
		s.CloudEnabled = v
		b.cloud.Store(v)
	})
}

// CloudEnabled is safe to call from any goroutine.
func (b *Board) CloudEnabled() bool {
	return b.cloud.Load()
}

// Snapshot returns the state as seen by the board goroutine, so it reflects
// every mutation queued before the call.
func (b *Board) Snapshot(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := b.do(func() { reply <- b.state }); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-b.done:
		return State{}, ErrClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// LogRenderer logs every state change at debug level.
func LogRenderer(logger *slog.Logger) Renderer {
	return RendererFunc(func(s State) error {
		logger.Debug("display updated",
			"temperature", s.Temperature,
			"humidity", s.Humidity,
			"status", s.Status,
			"cloud_enabled", s.CloudEnabled,
		)
		return nil
	})
}
