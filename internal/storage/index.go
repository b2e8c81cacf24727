/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	applog "ftodialog/internal/log"
	"ftodialog/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project ephemeral/index data under the project root.
	IndexDirName  = ".fto"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .fto/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// Callers close the returned *sql.DB.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(projectRoot)
	// SQLite URIs want forward slashes.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can upgrade it
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// v2 added lookup indexes for saves and snapshots
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_saves_dialog ON saves(dialog);`,
				`CREATE INDEX IF NOT EXISTS idx_dialog_snapshots_dialog_ts ON dialog_snapshots(dialog_id, ts);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// best effort, outside the tx
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_lines(fts_lines) VALUES('optimize')`)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per content line of every catalogued dialog.
		`CREATE TABLE IF NOT EXISTS lines (
			line_id     INTEGER PRIMARY KEY,
			dialog_id   TEXT    NOT NULL,
			dialog_name TEXT    NOT NULL,
			node_id     INTEGER NOT NULL,
			line_no     INTEGER NOT NULL,
			author      TEXT    NOT NULL,
			kind        TEXT    NOT NULL,
			text        TEXT    NOT NULL,
			condition   TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_dialog ON lines(dialog_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_author ON lines(author);`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_lines USING fts5(
			text,
			content='lines',
			content_rowid='line_id',
			tokenize = 'unicode61'
		);`,

		// Named save slots of play sessions.
		`CREATE TABLE IF NOT EXISTS saves (
			slot       TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			dialog     TEXT NOT NULL,
			root       TEXT NOT NULL,
			current    TEXT NOT NULL,
			karma      INTEGER,
			events     TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,

		// History of dialog sources for change tracking.
		`CREATE TABLE IF NOT EXISTS dialog_snapshots (
			id        INTEGER PRIMARY KEY,
			dialog_id TEXT NOT NULL,
			ts        TEXT NOT NULL,
			source    TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_dialog ON saves(dialog);`,
		`CREATE INDEX IF NOT EXISTS idx_dialog_snapshots_dialog_ts ON dialog_snapshots(dialog_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
			INSERT INTO fts_lines(rowid, text) VALUES (new.line_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.line_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_au AFTER UPDATE OF text ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.line_id, old.text);
			INSERT INTO fts_lines(rowid, text) VALUES (new.line_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) (bool, error) {
	path := IndexPath(projectRoot)
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, projectRoot, proj); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM lines LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, projectRoot, proj); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .fto/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty populates the line index from the project's dialogs when it has no rows yet.
func BuildIndexIfEmpty(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines;").Scan(&cnt); err != nil {
		return fmt.Errorf("check lines count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	_, err = rebuildLinesFromProject(ctx, db, projectRoot, proj)
	return err
}

// UpdateIndex replaces the indexed lines with the current content of every dialog.
// Dialogs that fail to parse are skipped and reported in the returned map.
func UpdateIndex(ctx context.Context, projectRoot string, proj domain.Project) (map[string]error, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return rebuildLinesFromProject(ctx, db, projectRoot, proj)
}

// RebuildIndex drops and recreates the derived line tables and repopulates them.
// Save slots and dialog snapshots are kept.
func RebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS lines_ai;",
		"DROP TRIGGER IF EXISTS lines_ad;",
		"DROP TRIGGER IF EXISTS lines_au;",
		"DROP TABLE IF EXISTS fts_lines;",
		"DROP TABLE IF EXISTS lines;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	_, err = rebuildLinesFromProject(ctx, db, projectRoot, proj)
	return err
}

// Line is one indexed content line. Condition is empty for text lines.
type Line struct {
	DialogID   string
	DialogName string
	NodeID     int
	LineNo     int
	Author     string
	Kind       string
	Text       string
	Condition  string
}

// FlattenLines lists the content lines of a parsed dialog in pre-order.
func FlattenLines(d domain.Dialog, tree *dialog.Tree) []Line {
	var rows []Line
	tree.Walk(dialog.RootID, func(id dialog.NodeID, _ int) bool {
		n := tree.Node(id)
		author := n.Author
		if author == "" {
			author = dialog.NarratorName
		}
		for i, c := range n.Content {
			r := Line{
				DialogID:   d.ID,
				DialogName: d.Name,
				NodeID:     int(id),
				LineNo:     i,
				Author:     author,
				Kind:       c.Kind.String(),
				Text:       c.Text,
			}
			if c.IsChoice() {
				r.Condition = c.Condition.String()
			}
			rows = append(rows, r)
		}
		return true
	})
	return rows
}

// rebuildLinesFromProject replaces the lines table content from every dialog of proj.
func rebuildLinesFromProject(ctx context.Context, db *sql.DB, projectRoot string, proj domain.Project) (map[string]error, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_lines")
	ph := &ProjectHandle{Root: projectRoot, Project: proj}
	failed := map[string]error{}
	rows := make([]Line, 0, 256)
	for _, d := range proj.Dialogs {
		tree, _, err := LoadDialog(ph, d)
		if err != nil {
			l.Warn("skipping dialog", slog.String("dialog", d.Name), slog.Any("err", err))
			failed[d.Name] = err
			continue
		}
		rows = append(rows, FlattenLines(d, tree)...)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return failed, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM lines;"); err != nil {
		_ = tx.Rollback()
		return failed, fmt.Errorf("clear lines: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO lines(dialog_id, dialog_name, node_id, line_no, author, kind, text, condition) VALUES(?,?,?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return failed, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		cond := sql.NullString{String: r.Condition, Valid: r.Condition != ""}
		if _, err := ins.ExecContext(ctx, r.DialogID, r.DialogName, r.NodeID, r.LineNo, r.Author, r.Kind, r.Text, cond); err != nil {
			_ = tx.Rollback()
			return failed, fmt.Errorf("insert line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return failed, fmt.Errorf("commit: %w", err)
	}
	l.Info("lines indexed", slog.Int("lines", len(rows)), slog.Int("dialogs", len(proj.Dialogs)-len(failed)))
	return failed, nil
}
