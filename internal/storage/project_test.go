/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ftodialog/internal/domain"
)

func TestInitProjectCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	proj := frogProject("Test Project")

	ph, err := InitProject(root, proj)
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if ph.ManifestPath != filepath.Join(root, ManifestFileName) {
		t.Fatalf("unexpected manifest path %q", ph.ManifestPath)
	}
	b, err := os.ReadFile(ph.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Name != proj.Name {
		t.Fatalf("manifest name mismatch: got %q want %q", got.Name, proj.Name)
	}
	if got.Dialogs == nil {
		t.Fatalf("dialogs should be written as an empty list")
	}

	for _, d := range []string{DialogsDirName, ExportsDirName, BackupsDirName, IndexDirName} {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index not created: %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, frogProject("Backup Test"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}

	ph.Project.Metadata.Notes = "changed"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var bakCount int
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			bakCount++
		}
	}
	if bakCount == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, frogProject("Open From Backup"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Project.Metadata.Notes = "touch"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if err := os.WriteFile(ph.ManifestPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Project.Name != "Open From Backup" {
		t.Fatalf("opened project name mismatch: got %q", opened.Project.Name)
	}
}

func TestOpenRejectsSchemaViolationWithoutBackup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ManifestFileName), []byte(`{"name":"x","dialogs":[]}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	_, err := Open(root)
	if err == nil || !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("expected invalid manifest error, got %v", err)
	}
}

func TestSaveAsCopiesDialogs(t *testing.T) {
	ph, d := newFrogProject(t)
	dst := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, dst); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if ph.Root != dst {
		t.Fatalf("handle not moved: %s", ph.Root)
	}
	src, err := ReadDialog(ph, d)
	if err != nil {
		t.Fatalf("ReadDialog after SaveAs: %v", err)
	}
	if src != frogSource {
		t.Fatalf("dialog content changed")
	}
	if _, err := Open(dst); err != nil {
		t.Fatalf("Open copy: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	ph, err := InitProject(t.TempDir(), frogProject("Crash Snapshot"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Project.Metadata.Notes = "unsaved"

	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Metadata.Notes != "unsaved" {
		t.Fatalf("snapshot content mismatch: %+v", got.Metadata)
	}
	// the live manifest is untouched
	opened, err := Open(ph.Root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Project.Metadata.Notes != "" {
		t.Fatalf("crash snapshot leaked into manifest")
	}
}
