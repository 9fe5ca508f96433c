// Package firehose delivers readings to an Amazon Data Firehose delivery
// stream. Delivery is best-effort and at-most-once: a failed PutRecord is
// reported and dropped.
package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"

	"bbw200-gateway/internal/ble"
)

// ErrDisabled is returned by Submit when the sink has no usable client.
var ErrDisabled = errors.New("remote ingestion disabled")

type State int

const (
	StateNew State = iota
	StateReady
	StateDisabled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InitError means credentials or the client could not be set up. The sink
// stays disabled for the rest of the process.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "remote ingestion init: " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

// SubmitError wraps a failed PutRecord.
type SubmitError struct {
	Stream string
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit to %s: %v", e.Stream, e.Err)
}
func (e *SubmitError) Unwrap() error { return e.Err }

// PutRecordAPI is the part of *firehose.Client the sink uses.
type PutRecordAPI interface {
	PutRecord(ctx context.Context, in *firehose.PutRecordInput, optFns ...func(*firehose.Options)) (*firehose.PutRecordOutput, error)
}

// ClientFactory builds a client from loaded credentials.
type ClientFactory func(ctx context.Context, creds Credentials) (PutRecordAPI, error)

type Options struct {
	Stream      string
	Region      string
	Endpoint    string
	Credentials CredentialSource
	// NewClient defaults to an SDK client built by NewSDKClientFactory.
	NewClient ClientFactory
	Logger    *slog.Logger
}

// Sink owns the ingestion client. Init, Close and Reinit make its lifecycle
// explicit; Submit may be called concurrently.
type Sink struct {
	stream    string
	source    CredentialSource
	newClient ClientFactory
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	client PutRecordAPI
	creds  Credentials
}

func NewSink(opts Options) *Sink {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newClient := opts.NewClient
	if newClient == nil {
		newClient = NewSDKClientFactory(opts.Region, opts.Endpoint)
	}
	return &Sink{
		stream:    opts.Stream,
		source:    opts.Credentials,
		newClient: newClient,
		logger:    logger,
	}
}

// NewSDKClientFactory returns a factory that builds a Firehose client with
// static credentials. endpoint is optional.
func NewSDKClientFactory(region, endpoint string) ClientFactory {
	return func(ctx context.Context, creds Credentials) (PutRecordAPI, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretKey, ""),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		return firehose.NewFromConfig(cfg, func(o *firehose.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	}
}

func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sink) Stream() string { return s.stream }

// Init loads credentials and creates the client. It only runs once; later
// calls return the outcome of the first. Any failure disables the sink.
func (s *Sink) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateDisabled, StateClosed:
		return &InitError{Err: ErrDisabled}
	}

	if s.source == nil {
		s.state = StateDisabled
		return &InitError{Err: errors.New("no credential source configured")}
	}
	if s.stream == "" {
		s.state = StateDisabled
		return &InitError{Err: errors.New("no delivery stream configured")}
	}

	creds, err := s.source.Load(ctx)
	if err != nil {
		s.state = StateDisabled
		return &InitError{Err: err}
	}
	if err := s.connectLocked(ctx, creds); err != nil {
		s.state = StateDisabled
		return &InitError{Err: err}
	}

	s.creds = creds
	s.logger.Info("remote ingestion ready", "stream", s.stream)
	return nil
}

func (s *Sink) connectLocked(ctx context.Context, creds Credentials) error {
	client, err := s.newClient(ctx, creds)
	if err != nil {
		return err
	}
	s.client = client
	s.state = StateReady
	return nil
}

// Close releases the client. It is idempotent. A disabled sink stays
// disabled.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = nil
	if s.state == StateReady {
		s.state = StateClosed
		s.logger.Info("remote ingestion closed", "stream", s.stream)
	}
}

// Reinit re-creates the client after Close, reusing the credentials loaded
// by Init. A sink whose Init failed is not retried.
func (s *Sink) Reinit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateNew, StateDisabled:
		return &InitError{Err: ErrDisabled}
	}

	if err := s.connectLocked(ctx, s.creds); err != nil {
		s.state = StateDisabled
		return &InitError{Err: err}
	}
	s.logger.Info("remote ingestion re-established", "stream", s.stream)
	return nil
}

// Submit sends one record. It does not retry.
func (s *Sink) Submit(ctx context.Context, r ble.SensorReading) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return ErrDisabled
	}

	_, err := client.PutRecord(ctx, &firehose.PutRecordInput{
		DeliveryStreamName: aws.String(s.stream),
		Record:             &types.Record{Data: FormatRecord(r)},
	})
	if err != nil {
		return &SubmitError{Stream: s.stream, Err: err}
	}

	s.logger.Debug("remote ingestion record submitted",
		"stream", s.stream,
		"timestamp", r.Timestamp,
	)
	return nil
}
