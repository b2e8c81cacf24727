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
	"strings"
)

// SearchQuery describes a line search over the embedded index.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Dialog matches a dialog id or name, Author an author name (case-insensitive).
// Kinds restricts to "text" and/or "choice". Limit/Offset paginate; Limit defaults to 100.
type SearchQuery struct {
	Text   string
	Dialog string
	Author string
	Kinds  []string
	Limit  int
	Offset int
}

// SearchResult is one matching content line.
// Snippet is a highlighted excerpt using [ ] markers when Text was given.
type SearchResult struct {
	LineID     int64
	DialogID   string
	DialogName string
	NodeID     int
	LineNo     int
	Author     string
	Kind       string
	Text       string
	Condition  string
	Snippet    string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty it falls back to a plain scan over lines with filters applied.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

const resultColumns = "l.line_id, l.dialog_id, l.dialog_name, l.node_id, l.line_no, l.author, l.kind, l.text, COALESCE(l.condition,'')"

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT " + resultColumns + ", snippet(fts_lines, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_lines JOIN lines l ON fts_lines.rowid = l.line_id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT " + resultColumns + ", ''\n")
		sb.WriteString("FROM lines l\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND l.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, strings.ToLower(k))
		}
	}
	if s := strings.TrimSpace(q.Dialog); s != "" {
		sb.WriteString(" AND (l.dialog_id = ? OR lower(l.dialog_name) = ?)\n")
		args = append(args, s, strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.Author); s != "" {
		sb.WriteString(" AND lower(l.author) = ?\n")
		args = append(args, strings.ToLower(s))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY l.dialog_name, l.node_id, l.line_no\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// EventUsage lists the choice lines whose condition requires the given world event.
func EventUsage(ctx context.Context, projectRoot string, event string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(event) == "" {
		return nil, errors.New("event is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	// Conditions are stored in printed form, "karma: a,b; event: X,Y;".
	q := `SELECT ` + resultColumns + `, ''
		FROM lines l
		WHERE l.kind = 'choice' AND (' ' || replace(replace(l.condition, ',', ' '), ';', ' ') || ' ') LIKE ?
		ORDER BY l.dialog_name, l.node_id, l.line_no
		LIMIT ?`
	rows, err := db.QueryContext(ctx, q, likeContains(" "+event+" "), limit)
	if err != nil {
		return nil, fmt.Errorf("event usage query: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.LineID, &r.DialogID, &r.DialogName, &r.NodeID, &r.LineNo, &r.Author, &r.Kind, &r.Text, &r.Condition, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeContains(s string) string { return "%" + s + "%" }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
