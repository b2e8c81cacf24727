/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics in the CLI into a report file plus a manifest autosave.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "ftodialog/internal/log"
	"ftodialog/internal/session"
	"ftodialog/internal/storage"
	"ftodialog/internal/telemetry"
	"ftodialog/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Option adds context to a crash report.
type Option func(*report)

type report struct {
	project func() *storage.ProjectHandle
	command string
	state   func() (session.State, bool)
}

// WithProject reports on the project returned by ph at the time of the panic.
func WithProject(ph func() *storage.ProjectHandle) Option {
	return func(r *report) { r.project = ph }
}

// WithCommand names the CLI command that was running.
func WithCommand(name string) Option { return func(r *report) { r.command = name } }

// WithSession records the position of a running play session. state reports false when
// no session is active.
func WithSession(state func() (session.State, bool)) Option {
	return func(r *report) { r.state = state }
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the project manifest (if one is known).
//
// It must be deferred directly: defer crash.Recover(crash.WithCommand("play"))
func Recover(opts ...Option) {
	r := recover()
	if r == nil {
		return
	}
	var rep report
	for _, o := range opts {
		o(&rep)
	}
	var ph *storage.ProjectHandle
	if rep.project != nil {
		ph = rep.project()
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("command", rep.command), slog.String("stack", string(stack)))

	reportPath, err := writeReport(ph, &rep, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if ph != nil && ph.Root != "" {
		if path, err := storage.AutosaveCrashSnapshot(ph); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func writeReport(ph *storage.ProjectHandle, rep *report, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ph != nil && ph.Root != "" {
		dir = filepath.Join(ph.Root, storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "ftodialog Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if rep != nil && rep.command != "" {
		_, _ = fmt.Fprintf(&buf, "Command: %s\n", rep.command)
	}
	if ph != nil {
		_, _ = fmt.Fprintf(&buf, "ProjectRoot: %s\n", ph.Root)
		_, _ = fmt.Fprintf(&buf, "Manifest: %s\n", ph.ManifestPath)
	}
	if rep != nil && rep.state != nil {
		writeSession(&buf, rep.state)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	// opt-in via FTO_TELEMETRY_OPT_IN and FTO_CRASH_UPLOAD_URL
	if err := telemetry.UploadCrash(anonymize(buf.Bytes())); err != nil {
		applog.WithComponent("crash").Warn("crash upload failed", slog.Any("err", err))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}

// writeSession must not take the report down with it if the session is the thing that broke.
func writeSession(buf *bytes.Buffer, state func() (session.State, bool)) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(buf, "Session: unavailable (%v)\n", r)
		}
	}()
	st, ok := state()
	if !ok {
		return
	}
	karma := "-"
	if st.Karma != nil {
		karma = fmt.Sprint(*st.Karma)
	}
	_, _ = fmt.Fprintf(buf, "Session: %s dialog=%q current=%q karma=%s events=[%s]\n",
		st.ID, st.Name, st.Current, karma, strings.Join(st.Events, ","))
}

// anonymize drops the report lines that name local paths or dialog content.
func anonymize(report []byte) []byte {
	var out bytes.Buffer
	for _, line := range strings.SplitAfter(string(report), "\n") {
		if strings.HasPrefix(line, "ProjectRoot: ") || strings.HasPrefix(line, "Manifest: ") || strings.HasPrefix(line, "Session: ") {
			continue
		}
		out.WriteString(line)
	}
	return out.Bytes()
}
