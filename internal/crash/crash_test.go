/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ftodialog/internal/session"
	"ftodialog/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "ftodialog Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInProjectBackups(t *testing.T) {
	root := t.TempDir()
	ph := &storage.ProjectHandle{Root: root, ManifestPath: filepath.Join(root, storage.ManifestFileName)}

	path, err := writeReport(ph, &report{command: "play"}, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if !strings.Contains(path, filepath.Join(root, storage.BackupsDirName)) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Command: play") {
		t.Fatalf("command missing from report: %s", b)
	}
}

func TestWriteReportIncludesSession(t *testing.T) {
	karma := 7
	rep := &report{state: func() (session.State, bool) {
		return session.State{ID: "s1", Name: "frog", Current: "1.2", Karma: &karma, Events: []string{"A", "B"}}, true
	}}
	path, err := writeReport(&storage.ProjectHandle{Root: t.TempDir()}, rep, "x", nil)
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	b, _ := os.ReadFile(path)
	want := `Session: s1 dialog="frog" current="1.2" karma=7 events=[A,B]`
	if !strings.Contains(string(b), want) {
		t.Fatalf("report missing %q:\n%s", want, b)
	}
}

func TestWriteReportSurvivesPanickingSession(t *testing.T) {
	rep := &report{state: func() (session.State, bool) { panic("nil tree") }}
	path, err := writeReport(&storage.ProjectHandle{Root: t.TempDir()}, rep, "x", nil)
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Session: unavailable (nil tree)") {
		t.Fatalf("unexpected report:\n%s", b)
	}
}

func TestWriteReportSkipsInactiveSession(t *testing.T) {
	rep := &report{state: func() (session.State, bool) { return session.State{}, false }}
	path, err := writeReport(nil, rep, "x", nil)
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "Session:") {
		t.Fatalf("inactive session should not be reported:\n%s", b)
	}
}
