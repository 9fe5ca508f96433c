package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	BLEAdapter   string
	BLECompanyID uint16
	EventBuffer  int

	CloudUpload      bool
	CredentialsFile  string
	FirehoseStream   string
	AWSRegion        string
	FirehoseEndpoint string
	SubmitTimeout    time.Duration

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	// HTTPAddr is the status API address; empty disables it.
	HTTPAddr string
}

func LoadFromEnv() (Config, error) {
	appEnv := envOr("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	companyIDStr := envOr("BLE_COMPANY_ID", "0x000D")
	companyID, err := strconv.ParseUint(companyIDStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLE_COMPANY_ID %q: %w", companyIDStr, err)
	}

	eventBufferStr := envOr("EVENT_BUFFER", "64")
	eventBuffer, err := strconv.Atoi(eventBufferStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_BUFFER %q: %w", eventBufferStr, err)
	}
	if eventBuffer <= 0 {
		return Config{}, fmt.Errorf("EVENT_BUFFER must be positive, got %d", eventBuffer)
	}

	cloudUpload, err := parseBool("CLOUD_UPLOAD", envOr("CLOUD_UPLOAD", "false"))
	if err != nil {
		return Config{}, err
	}

	submitTimeoutStr := envOr("SUBMIT_TIMEOUT", "10s")
	submitTimeout, err := time.ParseDuration(submitTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SUBMIT_TIMEOUT %q: %w", submitTimeoutStr, err)
	}
	if submitTimeout <= 0 {
		return Config{}, fmt.Errorf("SUBMIT_TIMEOUT must be positive, got %v", submitTimeout)
	}

	mqttEnabled, err := parseBool("MQTT_ENABLED", envOr("MQTT_ENABLED", "true"))
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := envOr("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttTopicPrefix := strings.Trim(envOr("MQTT_TOPIC_PREFIX", "bbw200"), "/")
	if mqttTopicPrefix == "" {
		return Config{}, fmt.Errorf("MQTT_TOPIC_PREFIX must not be empty")
	}

	// HTTP_ADDR may be set to "-" to disable the status API.
	httpAddr := envOr("HTTP_ADDR", ":8080")
	if httpAddr == "-" {
		httpAddr = ""
	}

	return Config{
		AppEnv:           appEnv,
		LogLevel:         level,
		BLEAdapter:       envOr("BLE_ADAPTER", "hci0"),
		BLECompanyID:     uint16(companyID),
		EventBuffer:      eventBuffer,
		CloudUpload:      cloudUpload,
		CredentialsFile:  envOr("CREDENTIALS_FILE", "credentials.txt"),
		FirehoseStream:   envOr("FIREHOSE_STREAM", "bbw200-readings"),
		AWSRegion:        envOr("AWS_REGION", "eu-west-1"),
		FirehoseEndpoint: strings.TrimSpace(os.Getenv("FIREHOSE_ENDPOINT")),
		SubmitTimeout:    submitTimeout,
		MQTTEnabled:      mqttEnabled,
		MQTTBroker:       envOr("MQTT_BROKER", "localhost"),
		MQTTPort:         mqttPort,
		MQTTClientID:     envOr("MQTT_CLIENT_ID", "bbw200-gateway"),
		MQTTTopicPrefix:  mqttTopicPrefix,
		HTTPAddr:         httpAddr,
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseBool(key, s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
