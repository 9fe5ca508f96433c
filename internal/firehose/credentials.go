package firehose

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrMalformedCredentials = errors.New("malformed credentials")

// Credentials is the access key pair used by the ingestion client.
type Credentials struct {
	AccessKeyID string
	SecretKey   string
}

// CredentialSource loads credentials once at startup.
type CredentialSource interface {
	Load(ctx context.Context) (Credentials, error)
}

// FileCredentials reads a two-line file: access key id, then secret key.
type FileCredentials struct {
	Path string
}

func (f FileCredentials) Load(_ context.Context) (Credentials, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials %s: %w", f.Path, err)
	}
	return ParseCredentials(data)
}

// ParseCredentials takes the first two lines of data. Trailing lines are
// ignored.
func ParseCredentials(data []byte) (Credentials, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for len(lines) < 2 && sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
	}
	if len(lines) < 2 {
		return Credentials{}, fmt.Errorf("%w: got %d lines, want 2", ErrMalformedCredentials, len(lines))
	}
	if lines[0] == "" || lines[1] == "" {
		return Credentials{}, fmt.Errorf("%w: empty access key or secret", ErrMalformedCredentials)
	}
	return Credentials{AccessKeyID: lines[0], SecretKey: lines[1]}, nil
}
