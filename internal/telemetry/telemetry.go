/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in usage events and crash reports. Nothing leaves the machine
// unless FTO_TELEMETRY_OPT_IN is set and an endpoint is configured. Events carry command
// names, exit codes and timings only, never dialog text, names or paths.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "ftodialog/internal/log"
	"ftodialog/internal/version"
)

const (
	EnvOptIn     = "FTO_TELEMETRY_OPT_IN"
	EnvEventsURL = "FTO_TELEMETRY_URL"
	EnvCrashURL  = "FTO_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "FTO_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "FTO_TELEMETRY_DEBUG"

	defaultTimeout = 1500 * time.Millisecond
	queueSize      = 64
)

// Config holds the endpoints and switches. The zero value sends nothing.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads the FTO_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is the JSON body posted to the events URL.
type Event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them from one background goroutine. A nil *Client is a
// valid, disabled client.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan Event
	pending atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

// New starts a client. Close stops its goroutine.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, queueSize),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent at all.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. It never blocks; when the queue is full the event is dropped.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- ev:
	default:
		c.pending.Add(-1)
	}
}

// Command records one CLI command run.
func (c *Client) Command(name string, exit int, took time.Duration) {
	c.Event("command", map[string]any{"command": name, "exit": exit, "ms": took.Milliseconds()})
}

// Flush waits until queued events are sent or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-tick.C:
		}
	}
}

// Close stops the background goroutine. Events still queued are dropped.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			if err := c.post(c.cfg.EventsURL, "application/json", ev); err != nil && c.cfg.DebugLogging {
				c.log.Debug("event send failed", slog.String("event", ev.Name), slog.Any("err", err))
			}
			c.pending.Add(-1)
		}
	}
}

// UploadCrash posts a crash report and waits for the answer, bounded by the client timeout.
// It runs right before the process exits, so it cannot be queued.
func (c *Client) UploadCrash(report []byte) error {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return nil
	}
	err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report)
	if c.cfg.DebugLogging {
		if err != nil {
			c.log.Debug("crash upload failed", slog.Any("err", err))
		} else {
			c.log.Debug("crash report uploaded", slog.Int("bytes", len(report)))
		}
	}
	return err
}

func (c *Client) post(url, contentType string, body any) error {
	var buf []byte
	switch b := body.(type) {
	case []byte:
		buf = b
	default:
		var err error
		if buf, err = json.Marshal(b); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "ftodialog/"+version.String())
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: %s answered %s", url, resp.Status)
	}
	return nil
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// SetDefault installs c as the client used by the package level functions.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

// Default returns the installed client, creating one from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// UploadCrash sends report with the default client.
func UploadCrash(report []byte) error { return Default().UploadCrash(report) }
