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
	"time"
)

// language=SQL
// dialect=SQLite
const insertDialogSnapshotSQL = `INSERT INTO dialog_snapshots(dialog_id, ts, source) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestDialogSnapshotSQL = `SELECT ts, source FROM dialog_snapshots WHERE dialog_id = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listDialogSnapshotsSQL = `SELECT ts, source FROM dialog_snapshots WHERE dialog_id = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldDialogSnapshotsSQL = `DELETE FROM dialog_snapshots WHERE dialog_id = ? AND id NOT IN (
	SELECT id FROM dialog_snapshots WHERE dialog_id = ? ORDER BY ts DESC LIMIT ?
)`

// DialogSnapshot is one stored version of a dialog source.
type DialogSnapshot struct {
	TS     time.Time
	Source string
}

// SaveDialogSnapshot persists the full source of a dialog with a timestamp.
// The history lives in the disposable index; it is meant for change tracking, not canonical storage.
func SaveDialogSnapshot(ctx context.Context, ph *ProjectHandle, dialogID, source string, ts time.Time) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertDialogSnapshotSQL, dialogID, ts.UTC().Format(time.RFC3339Nano), source)
	return err
}

// GetLatestDialogSnapshot returns the newest snapshot of a dialog, or a zero value if none exists.
func GetLatestDialogSnapshot(ctx context.Context, ph *ProjectHandle, dialogID string) (DialogSnapshot, error) {
	if ph == nil {
		return DialogSnapshot{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return DialogSnapshot{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr, src string
	err = db.QueryRowContext(ctx, selectLatestDialogSnapshotSQL, dialogID).Scan(&tsStr, &src)
	if errors.Is(err, sql.ErrNoRows) {
		return DialogSnapshot{}, nil
	}
	if err != nil {
		return DialogSnapshot{}, err
	}
	ts, _ := time.Parse(time.RFC3339Nano, tsStr)
	return DialogSnapshot{TS: ts, Source: src}, nil
}

// ListDialogSnapshots returns up to limit most recent snapshots of a dialog.
func ListDialogSnapshots(ctx context.Context, ph *ProjectHandle, dialogID string, limit int) ([]DialogSnapshot, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listDialogSnapshotsSQL, dialogID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []DialogSnapshot
	for rows.Next() {
		var tsStr, src string
		if err := rows.Scan(&tsStr, &src); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, DialogSnapshot{TS: ts, Source: src})
	}
	return out, rows.Err()
}

// PruneDialogSnapshots keeps at most keepLast snapshots of a dialog and deletes older ones.
func PruneDialogSnapshots(ctx context.Context, ph *ProjectHandle, dialogID string, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldDialogSnapshotsSQL, dialogID, dialogID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
