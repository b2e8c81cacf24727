/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend shares dialog sources through Postgres and a small HTTP API.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	applog "ftodialog/internal/log"
	"ftodialog/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a dialog name is unknown to the store.
var ErrNotFound = errors.New("dialog not found")

// DialogRecord is a shared dialog together with the event names it was written against.
type DialogRecord struct {
	Name          string    `json:"name"`
	Project       string    `json:"project,omitempty"`
	Source        string    `json:"source"`
	WorldEvents   []string  `json:"world_events"`
	TriggerEvents []string  `json:"trigger_events"`
	Version       int64     `json:"version"`
	UpdatedBy     string    `json:"updated_by,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CustomInfos returns the parser configuration of the record.
func (r DialogRecord) CustomInfos() dialog.CustomInfos {
	return dialog.CustomInfos{WorldEvents: r.WorldEvents, TriggerEvents: r.TriggerEvents}
}

// Validate parses the source and returns the tree plus warnings.
func (r DialogRecord) Validate() (*dialog.Tree, []*dialog.Error, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, nil, errors.New("dialog name is required")
	}
	return dialog.ParseDetailed(r.Source, r.CustomInfos())
}

// DialogSummary is the listing projection of a record.
type DialogSummary struct {
	Name      string    `json:"name"`
	Project   string    `json:"project,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists dialogs in Postgres through the pgx stdlib driver.
type Store struct {
	db *sql.DB
}

// OpenStore connects to dsn, checks the connection and applies the embedded migrations.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// PutDialog creates or replaces a dialog. The source must parse; its lines are re-indexed
// and the version is bumped on every write.
func (s *Store) PutDialog(ctx context.Context, rec DialogRecord) (DialogRecord, error) {
	tree, _, err := rec.Validate()
	if err != nil {
		return DialogRecord{}, err
	}
	world, _ := json.Marshal(nonNil(rec.WorldEvents))
	triggers, _ := json.Marshal(nonNil(rec.TriggerEvents))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DialogRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	// dialect=PostgreSQL
	err = tx.QueryRowContext(ctx, `INSERT INTO dialogs(name, project, source, world_events, trigger_events, updated_by)
		VALUES($1, $2, $3, $4::jsonb, $5::jsonb, $6)
		ON CONFLICT (name) DO UPDATE SET
			project = EXCLUDED.project, source = EXCLUDED.source,
			world_events = EXCLUDED.world_events, trigger_events = EXCLUDED.trigger_events,
			updated_by = EXCLUDED.updated_by, version = dialogs.version + 1, updated_at = now()
		RETURNING id, version, updated_at`,
		rec.Name, rec.Project, rec.Source, string(world), string(triggers), rec.UpdatedBy,
	).Scan(&id, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		return DialogRecord{}, fmt.Errorf("upsert dialog: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dialog_lines WHERE dialog_id = $1`, id); err != nil {
		return DialogRecord{}, fmt.Errorf("clear lines: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO dialog_lines(dialog_id, node_id, line_no, author, kind, text, condition) VALUES($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return DialogRecord{}, fmt.Errorf("prepare lines: %w", err)
	}
	defer func() { _ = ins.Close() }()
	for _, ln := range storage.FlattenLines(domain.Dialog{Name: rec.Name}, tree) {
		cond := sql.NullString{String: ln.Condition, Valid: ln.Condition != ""}
		if _, err := ins.ExecContext(ctx, id, ln.NodeID, ln.LineNo, ln.Author, ln.Kind, ln.Text, cond); err != nil {
			return DialogRecord{}, fmt.Errorf("insert line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return DialogRecord{}, err
	}
	return rec, nil
}

// GetDialog loads a dialog by name.
func (s *Store) GetDialog(ctx context.Context, name string) (DialogRecord, error) {
	var rec DialogRecord
	var world, triggers string
	err := s.db.QueryRowContext(ctx, `SELECT name, project, source, world_events::text, trigger_events::text, version, updated_by, updated_at
		FROM dialogs WHERE name = $1`, name).
		Scan(&rec.Name, &rec.Project, &rec.Source, &world, &triggers, &rec.Version, &rec.UpdatedBy, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DialogRecord{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return DialogRecord{}, err
	}
	if err := json.Unmarshal([]byte(world), &rec.WorldEvents); err != nil {
		return DialogRecord{}, fmt.Errorf("decode world events: %w", err)
	}
	if err := json.Unmarshal([]byte(triggers), &rec.TriggerEvents); err != nil {
		return DialogRecord{}, fmt.Errorf("decode trigger events: %w", err)
	}
	return rec, nil
}

// ListDialogs returns all dialogs, most recently updated first.
func (s *Store) ListDialogs(ctx context.Context) ([]DialogSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, project, version, updated_at FROM dialogs ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	list := []DialogSummary{}
	for rows.Next() {
		var d DialogSummary
		if err := rows.Scan(&d.Name, &d.Project, &d.Version, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// DeleteDialog removes a dialog and its indexed lines.
func (s *Store) DeleteDialog(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dialogs WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order and records them.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
