package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bbw200-gateway/internal/ble"
	"bbw200-gateway/internal/config"
	"bbw200-gateway/internal/display"
	"bbw200-gateway/internal/firehose"
	"bbw200-gateway/internal/httpapi"
	"bbw200-gateway/internal/mqtt"
	"bbw200-gateway/internal/pipeline"
)

// Watcher produces advertisements until ctx is canceled or it stops on its
// own.
type Watcher interface {
	Run(ctx context.Context, out chan<- ble.Advertisement) error
}

// RemoteSink is the remote ingestion sink with its lifecycle.
type RemoteSink interface {
	pipeline.Remote
	Init(ctx context.Context) error
	Reinit(ctx context.Context) error
	Close()
}

type App struct {
	cfg      config.Config
	logger   *slog.Logger
	board    *display.Board
	pipeline *pipeline.Pipeline
	watcher  Watcher
	sink     RemoteSink
	events   chan ble.Advertisement

	mqttClient *mqtt.Client
	httpServer *http.Server

	mu         sync.Mutex
	scanCancel context.CancelFunc
	scanDone   chan struct{}
}

// New wires the board, pipeline, watcher and sink. MQTT and HTTP are added
// by Run from cfg.
func New(cfg config.Config, logger *slog.Logger, watcher Watcher, sink RemoteSink) *App {
	if logger == nil {
		logger = slog.Default()
	}
	board := display.NewBoard(logger, cfg.CloudUpload, display.LogRenderer(logger))

	var remote pipeline.Remote
	if sink != nil {
		remote = sink
	}
	p := pipeline.New(pipeline.Options{
		Filter:        ble.NewFilter(cfg.BLECompanyID),
		Display:       board,
		Remote:        remote,
		Toggle:        board,
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        logger,
	})

	bufSize := cfg.EventBuffer
	if bufSize <= 0 {
		bufSize = 64
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		board:    board,
		pipeline: p,
		watcher:  watcher,
		sink:     sink,
		events:   make(chan ble.Advertisement, bufSize),
	}
}

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing gateway",
		"ble_adapter", cfg.BLEAdapter,
		"company_id", cfg.BLECompanyID,
		"cloud_upload", cfg.CloudUpload,
		"firehose_stream", cfg.FirehoseStream,
		"mqtt_enabled", cfg.MQTTEnabled,
		"http_addr", cfg.HTTPAddr,
	)

	listener := ble.NewListener(ble.Options{
		Adapter:   cfg.BLEAdapter,
		CompanyID: cfg.BLECompanyID,
		Logger:    logger,
	})
	sink := firehose.NewSink(firehose.Options{
		Stream:      cfg.FirehoseStream,
		Region:      cfg.AWSRegion,
		Endpoint:    cfg.FirehoseEndpoint,
		Credentials: firehose.FileCredentials{Path: cfg.CredentialsFile},
		Logger:      logger,
	})

	a := New(cfg, logger, listener, sink)

	if cfg.MQTTEnabled {
		a.mqttClient = mqtt.NewClient(cfg, logger, a.board.SetCloudEnabled)
		a.board.AddRenderer(a.mqttClient)
	}
	if cfg.HTTPAddr != "" {
		a.httpServer = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(a.board, a.stats), a.logger)
	}

	lifecycle := make(chan os.Signal, 1)
	signal.Notify(lifecycle, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(lifecycle)

	return a.Serve(ctx, lifecycle)
}

// Serve runs the gateway until ctx is done. SIGUSR1 on lifecycle suspends,
// SIGUSR2 resumes.
func (a *App) Serve(ctx context.Context, lifecycle <-chan os.Signal) error {
	boardCtx, stopBoard := context.WithCancel(context.Background())
	boardDone := make(chan struct{})
	go func() {
		defer close(boardDone)
		a.board.Run(boardCtx)
	}()
	defer func() {
		stopBoard()
		<-boardDone
	}()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(ctx); err != nil {
				a.logger.Warn("mqtt connect failed; display channels not published", "error", err)
			}
		}()
	}

	httpErr := make(chan error, 1)
	if a.httpServer != nil {
		go func() {
			a.logger.Info("http listening", "addr", a.httpServer.Addr)
			httpErr <- a.httpServer.ListenAndServe()
		}()
	}

	pipeCtx, stopPipeline := context.WithCancel(context.Background())
	pipeDone := make(chan struct{})
	go func() {
		defer close(pipeDone)
		_ = a.pipeline.Run(pipeCtx, a.events)
	}()

	a.startScan(ctx)
	// After startScan so an init failure stays the visible status.
	a.initSink(ctx)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-httpErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				runErr = err
			}
			break loop
		case sig := <-lifecycle:
			switch sig {
			case syscall.SIGUSR1:
				a.Suspend()
			case syscall.SIGUSR2:
				a.Resume(ctx)
			}
		}
	}

	a.logger.Info("gateway shutting down")
	a.stopScan()

	// Queued advertisements are dropped; in-flight uploads finish on their own.
	stopPipeline()
	<-pipeDone

	if a.sink != nil {
		a.sink.Close()
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown", "error", err)
		}
	}
	return runErr
}

func (a *App) initSink(ctx context.Context) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Init(ctx); err != nil {
		a.logger.Error("remote ingestion disabled", "error", err)
		a.showStatus("Status: cloud upload unavailable: " + err.Error())
	}
}

func (a *App) showStatus(text string) {
	if err := a.board.ShowStatus(text); err != nil {
		a.logger.Warn("display: failed to show status", "error", err)
	}
}

// Board exposes the display board, e.g. for tests and the HTTP API.
func (a *App) Board() *display.Board { return a.board }

func (a *App) stats() any {
	out := map[string]any{
		"pipeline": a.pipeline.Stats(),
	}
	if d, ok := a.watcher.(interface{ Dropped() uint64 }); ok {
		out["dropped"] = d.Dropped()
	}
	if s, ok := a.sink.(interface{ State() firehose.State }); ok {
		out["remote"] = s.State().String()
	}
	return out
}
