/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ftodialog/internal/domain"
	"ftodialog/internal/storage"
)

// TestRecoverWritesReportAndSnapshot checks the report and manifest autosave land in backups
// and that exitFn is called instead of terminating the test process.
func TestRecoverWritesReportAndSnapshot(t *testing.T) {
	// Capture stderr temporarily to avoid noisy test logs
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(os.Stderr, r) // drain pipe
	}()

	// Override exitFn to avoid os.Exit during test and to assert it was called
	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	ph := &storage.ProjectHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, storage.ManifestFileName),
		Project:      domain.Project{Name: "Frogs"},
	}

	func() {
		defer Recover(WithProject(func() *storage.ProjectHandle { return ph }), WithCommand("play"))
		panic("boom")
	}()

	var found, snapshot string
	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			found = filepath.Join(bdir, f.Name())
		case strings.Contains(f.Name(), ".crash-") && strings.HasSuffix(f.Name(), ".json"):
			snapshot = filepath.Join(bdir, f.Name())
		}
	}
	if found == "" {
		t.Fatalf("expected crash report file under backups dir")
	}
	b, err := os.ReadFile(found)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}

	if snapshot == "" {
		t.Fatalf("expected manifest crash snapshot under backups dir")
	}

	// Ensure exit was attempted with code 2 (but intercepted)
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}
