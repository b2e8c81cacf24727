/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"strings"

	"ftodialog/internal/storage"
)

// SearchLines runs a storage.SearchQuery against the shared dialogs so local and server
// search return the same shape. Text is matched with plainto_tsquery.
func (s *Store) SearchLines(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString("SELECT l.id, d.name, l.node_id, l.line_no, l.author, l.kind, l.text, COALESCE(l.condition,''), ")
	if strings.TrimSpace(q.Text) != "" {
		tq := place(q.Text)
		b.WriteString("COALESCE(ts_headline('simple', l.text, plainto_tsquery('simple', " + tq + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM dialog_lines l JOIN dialogs d ON d.id = l.dialog_id WHERE l.search_vector @@ plainto_tsquery('simple', " + tq + ") ")
	} else {
		b.WriteString("'' FROM dialog_lines l JOIN dialogs d ON d.id = l.dialog_id WHERE TRUE ")
	}
	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = strings.ToLower(k)
		}
		b.WriteString(" AND l.kind = ANY (" + place(kinds) + ") ")
	}
	if v := strings.TrimSpace(q.Dialog); v != "" {
		b.WriteString(" AND lower(d.name) = " + place(strings.ToLower(v)) + " ")
	}
	if v := strings.TrimSpace(q.Author); v != "" {
		b.WriteString(" AND lower(l.author) = " + place(strings.ToLower(v)) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.name, l.node_id, l.line_no ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.LineID, &r.DialogName, &r.NodeID, &r.LineNo, &r.Author, &r.Kind, &r.Text, &r.Condition, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.DialogID = r.DialogName
		out = append(out, r)
	}
	return out, rows.Err()
}
