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
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ftodialog/internal/domain"
)

const (
	ManifestFileName = "ftodialog.json"
	DialogsDirName   = "dialogs"
	ExportsDirName   = "exports"
	BackupsDirName   = "backups"
)

var standardSubDirs = []string{
	DialogsDirName,
	ExportsDirName,
	BackupsDirName,
}

// ProjectHandle keeps track of the project state loaded/saved from disk.
// Root is the project directory containing ftodialog.json and subfolders.
type ProjectHandle struct {
	Root         string
	ManifestPath string
	Project      domain.Project
}

// InitProject creates a new project directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, writes the manifest and prepares the index.
func InitProject(root string, proj domain.Project) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ph := &ProjectHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Project:      proj,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	_ = db.Close()
	return ph, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing project from the given root directory.
// A manifest that cannot be read, parsed or validated is replaced by the latest backup.
func Open(root string) (*ProjectHandle, error) {
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err != nil {
		proj, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
		return &ProjectHandle{Root: root, ManifestPath: mpath, Project: *proj}, nil
	}
	p, perr := decodeManifest(b)
	if perr != nil {
		proj, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse manifest: %w; backup attempt: %v", perr, berr)
		}
		return &ProjectHandle{Root: root, ManifestPath: mpath, Project: *proj}, nil
	}
	return &ProjectHandle{Root: root, ManifestPath: mpath, Project: *p}, nil
}

func decodeManifest(b []byte) (*domain.Project, error) {
	if err := ValidateManifest(b); err != nil {
		return nil, err
	}
	var p domain.Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the current ProjectHandle.Project to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.ManifestPath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	if ph.Project.Dialogs == nil {
		ph.Project.Dialogs = []domain.Dialog{}
	}
	data, err := json.MarshalIndent(ph.Project, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if err := backupFile(ph.ManifestPath, bdir); err != nil {
		return fmt.Errorf("backup current manifest: %w", err)
	}
	if err := replaceFile(ph.ManifestPath, data); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// SaveAs writes the manifest and all dialog sources to a new root folder and updates the handle.
func SaveAs(ph *ProjectHandle, newRoot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	for _, d := range ph.Project.Dialogs {
		src := filepath.Join(ph.Root, DialogsDirName, d.File)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(newRoot, DialogsDirName, d.File)); err != nil {
			return fmt.Errorf("copy dialog %s: %w", d.File, err)
		}
	}
	ph.Root = newRoot
	ph.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(ph)
}

// AutosaveCrashSnapshot writes the in-memory manifest next to the regular backups
// without touching the live manifest. It returns the written path.
func AutosaveCrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	data, err := json.MarshalIndent(ph.Project, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", strings.TrimSuffix(ManifestFileName, ".json"), stamp))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// backupFile copies path into dir as <name>.<stamp>.bak when path exists.
func backupFile(path, dir string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	stamp := time.Now().Format("20060102-150405")
	bname := fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp)
	return copyFile(path, filepath.Join(dir, bname))
}

// replaceFile writes data to a temp file in the target directory, then renames it over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return err
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup tries the timestamped manifest backups newest first and
// returns the first one that validates.
func openFromLatestBackup(root string) (*domain.Project, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Sort(sort.Reverse(sort.StringSlice(candidates))) // timestamp in name yields lexicographic order
	var lastErr error
	for _, c := range candidates {
		b, err := os.ReadFile(c)
		if err != nil {
			lastErr = err
			continue
		}
		p, err := decodeManifest(b)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", filepath.Base(c), err)
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("no usable backup: %w", lastErr)
}
