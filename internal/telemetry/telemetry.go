package telemetry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// Tracker sends anonymous run events to PostHog. A Tracker without a key is
// a no-op, which is the default.
type Tracker struct {
	client     posthog.Client
	distinctID string
}

// New creates a tracker. idPath stores the per-install distinct ID.
func New(key, host, idPath string) (*Tracker, error) {
	if strings.TrimSpace(key) == "" {
		return &Tracker{}, nil
	}

	id, err := InstallID(idPath)
	if err != nil {
		return &Tracker{}, err
	}

	cfg := posthog.Config{}
	if host != "" {
		cfg.Endpoint = host
	}
	client, err := posthog.NewWithConfig(key, cfg)
	if err != nil {
		return &Tracker{}, fmt.Errorf("failed to initialize PostHog: %w", err)
	}
	return &Tracker{client: client, distinctID: id}, nil
}

// Enabled reports whether events are sent anywhere
func (t *Tracker) Enabled() bool {
	return t != nil && t.client != nil
}

// Track sends an event
func (t *Tracker) Track(event string, props map[string]interface{}) {
	if !t.Enabled() {
		return
	}
	if err := t.client.Enqueue(posthog.Capture{
		DistinctId: t.distinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		log.Printf("[Telemetry] Failed to enqueue %s: %v", event, err)
	}
}

// Close flushes pending events
func (t *Tracker) Close() {
	if !t.Enabled() {
		return
	}
	if err := t.client.Close(); err != nil {
		log.Printf("[Telemetry] Failed to flush events: %v", err)
	}
}

// InstallID returns the random ID stored at path, creating it on first use
func InstallID(path string) (string, error) {
	if path == "" {
		return "", errors.New("install id path is empty")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if id, perr := uuid.ParseBytes([]byte(strings.TrimSpace(string(data)))); perr == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read install id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create install id directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write install id: %w", err)
	}
	return id, nil
}
