/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	applog "ftodialog/internal/log"
)

// DialogExt is the file extension used for dialog sources.
const DialogExt = ".fto"

var (
	ErrDialogExists   = errors.New("dialog already exists")
	ErrDialogNotFound = errors.New("dialog not found")
)

// DialogPath returns the absolute path of a catalogued dialog source.
func DialogPath(ph *ProjectHandle, d domain.Dialog) string {
	return filepath.Join(ph.Root, DialogsDirName, d.File)
}

// ReadDialog returns the source text of d.
func ReadDialog(ph *ProjectHandle, d domain.Dialog) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	b, err := os.ReadFile(DialogPath(ph, d))
	if err != nil {
		return "", fmt.Errorf("read dialog %s: %w", d.Name, err)
	}
	return string(b), nil
}

// WriteDialog replaces the source of d transactionally and keeps the previous
// version in backups/dialogs.
func WriteDialog(ph *ProjectHandle, d domain.Dialog, source string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	path := DialogPath(ph, d)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dialogs dir: %w", err)
	}
	bdir := filepath.Join(ph.Root, BackupsDirName, DialogsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure dialog backups dir: %w", err)
	}
	if err := backupFile(path, bdir); err != nil {
		return fmt.Errorf("backup dialog %s: %w", d.Name, err)
	}
	if err := replaceFile(path, []byte(source)); err != nil {
		return fmt.Errorf("write dialog %s: %w", d.Name, err)
	}
	return nil
}

// LoadDialog reads and parses d with the project's event configuration.
// Parser warnings are returned alongside the tree.
func LoadDialog(ph *ProjectHandle, d domain.Dialog) (*dialog.Tree, []*dialog.Error, error) {
	src, err := ReadDialog(ph, d)
	if err != nil {
		return nil, nil, err
	}
	return dialog.ParseDetailed(src, ph.Project.Events.CustomInfos())
}

// AddDialog parses source, stores it under dialogs/ and registers it in the manifest.
// The manifest is saved afterwards. Sources that fail to parse are rejected.
func AddDialog(ph *ProjectHandle, name, source string) (domain.Dialog, error) {
	if ph == nil {
		return domain.Dialog{}, errors.New("nil ProjectHandle")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Dialog{}, errors.New("dialog name is required")
	}
	if _, ok := ph.Project.FindDialog(name); ok {
		return domain.Dialog{}, fmt.Errorf("%w: %s", ErrDialogExists, name)
	}
	_, warns, err := dialog.ParseDetailed(source, ph.Project.Events.CustomInfos())
	if err != nil {
		return domain.Dialog{}, err
	}
	d := domain.Dialog{
		ID:   uuid.NewString(),
		Name: name,
		File: uniqueFileName(ph, slug(name)),
	}
	if err := WriteDialog(ph, d, source); err != nil {
		return domain.Dialog{}, err
	}
	ph.Project.Dialogs = append(ph.Project.Dialogs, d)
	if err := Save(ph); err != nil {
		return domain.Dialog{}, err
	}
	applog.WithOperation(applog.WithComponent("storage"), "add_dialog").Info("dialog added",
		slog.String("name", name), slog.String("file", d.File), slog.Int("warnings", len(warns)))
	return d, nil
}

// RemoveDialog unregisters the dialog and moves its source into backups.
func RemoveDialog(ph *ProjectHandle, key string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	d, ok := ph.Project.FindDialog(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDialogNotFound, key)
	}
	gone := *d
	bdir := filepath.Join(ph.Root, BackupsDirName, DialogsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure dialog backups dir: %w", err)
	}
	if err := backupFile(DialogPath(ph, gone), bdir); err != nil {
		return fmt.Errorf("backup dialog %s: %w", gone.Name, err)
	}
	if err := os.Remove(DialogPath(ph, gone)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove dialog %s: %w", gone.Name, err)
	}
	ph.Project.RemoveDialog(gone.ID)
	return Save(ph)
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		s = "dialog"
	}
	return s
}

func uniqueFileName(ph *ProjectHandle, base string) string {
	taken := make(map[string]bool, len(ph.Project.Dialogs))
	for _, d := range ph.Project.Dialogs {
		taken[d.File] = true
	}
	free := func(name string) bool {
		if taken[name] {
			return false
		}
		_, err := os.Stat(filepath.Join(ph.Root, DialogsDirName, name))
		return err != nil
	}
	name := base + DialogExt
	for i := 2; !free(name); i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, DialogExt)
	}
	return name
}
