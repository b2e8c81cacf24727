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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ftodialog/internal/session"
)

// ErrNoSave is returned when a save slot does not exist.
var ErrNoSave = errors.New("no such save slot")

// language=SQL
// dialect=SQLite
const upsertSaveSQL = `INSERT INTO saves(slot, session_id, dialog, root, current, karma, events, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
	session_id=excluded.session_id, dialog=excluded.dialog, root=excluded.root,
	current=excluded.current, karma=excluded.karma, events=excluded.events, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectSaveSQL = `SELECT session_id, dialog, root, current, karma, events FROM saves WHERE slot = ?`

// language=SQL
// dialect=SQLite
const listSavesSQL = `SELECT slot, dialog, updated_at, current = '' FROM saves ORDER BY updated_at DESC`

// language=SQL
// dialect=SQLite
const deleteSaveSQL = `DELETE FROM saves WHERE slot = ?`

// SaveInfo summarizes a save slot.
type SaveInfo struct {
	Slot     string
	Dialog   string
	Updated  time.Time
	Finished bool
}

// SaveSession stores the session state under slot, replacing an older save of the same name.
func SaveSession(ctx context.Context, ph *ProjectHandle, slot string, st session.State) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if strings.TrimSpace(slot) == "" {
		return errors.New("save slot is required")
	}
	events, err := json.Marshal(nonNil(st.Events))
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	var karma sql.NullInt64
	if st.Karma != nil {
		karma = sql.NullInt64{Int64: int64(*st.Karma), Valid: true}
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, upsertSaveSQL, slot, st.ID, st.Name, st.Root, st.Current, karma, string(events),
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// LoadSession returns the state stored under slot.
func LoadSession(ctx context.Context, ph *ProjectHandle, slot string) (session.State, error) {
	if ph == nil {
		return session.State{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return session.State{}, err
	}
	defer func() { _ = db.Close() }()
	var st session.State
	var karma sql.NullInt64
	var events string
	err = db.QueryRowContext(ctx, selectSaveSQL, slot).Scan(&st.ID, &st.Name, &st.Root, &st.Current, &karma, &events)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, fmt.Errorf("%w: %s", ErrNoSave, slot)
	}
	if err != nil {
		return session.State{}, err
	}
	if karma.Valid {
		k := int(karma.Int64)
		st.Karma = &k
	}
	if err := json.Unmarshal([]byte(events), &st.Events); err != nil {
		return session.State{}, fmt.Errorf("decode events of %s: %w", slot, err)
	}
	return st, nil
}

// ListSaves returns all save slots, most recently written first.
func ListSaves(ctx context.Context, ph *ProjectHandle) ([]SaveInfo, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSavesSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SaveInfo
	for rows.Next() {
		var si SaveInfo
		var ts string
		if err := rows.Scan(&si.Slot, &si.Dialog, &ts, &si.Finished); err != nil {
			return nil, err
		}
		si.Updated, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, si)
	}
	return out, rows.Err()
}

// DeleteSave removes a save slot. Deleting a missing slot returns ErrNoSave.
func DeleteSave(ctx context.Context, ph *ProjectHandle, slot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, deleteSaveSQL, slot)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSave, slot)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
