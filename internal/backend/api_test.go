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
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"ftodialog/internal/domain"
	"ftodialog/internal/storage"
)

// memStore is an in-memory DialogStore for handler tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]DialogRecord
}

func newMemStore() *memStore { return &memStore{recs: map[string]DialogRecord{}} }

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) PutDialog(_ context.Context, rec DialogRecord) (DialogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Version = m.recs[rec.Name].Version + 1
	rec.UpdatedAt = time.Now()
	m.recs[rec.Name] = rec
	return rec, nil
}

func (m *memStore) GetDialog(_ context.Context, name string) (DialogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[name]
	if !ok {
		return DialogRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) ListDialogs(context.Context) ([]DialogSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []DialogSummary{}
	for _, r := range m.recs {
		out = append(out, DialogSummary{Name: r.Name, Version: r.Version, UpdatedAt: r.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) DeleteDialog(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[name]; !ok {
		return ErrNotFound
	}
	delete(m.recs, name)
	return nil
}

func (m *memStore) SearchLines(_ context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.SearchResult
	for _, r := range m.recs {
		tree, _, err := r.Validate()
		if err != nil {
			continue
		}
		for _, ln := range storage.FlattenLines(domain.Dialog{Name: r.Name}, tree) {
			if strings.Contains(strings.ToLower(ln.Text), strings.ToLower(q.Text)) {
				out = append(out, storage.SearchResult{DialogName: ln.DialogName, Author: ln.Author, Kind: ln.Kind, Text: ln.Text})
			}
		}
	}
	return out, nil
}

const guardSource = "# Guard\n\n- Halt!\n\n## Player\n\n- A friend | e: HasFriend;\n- Nobody | None\n"

func newTestClient(t *testing.T) (*Client, *memStore) {
	t.Helper()
	store := newMemStore()
	srv := httptest.NewServer(NewHandler(store, "test-secret"))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "")
	if _, err := c.RequestToken(context.Background(), "tester", time.Minute); err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	return c, store
}

func TestClientCRUD(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	rec, warns, err := c.PutDialog(ctx, DialogRecord{Name: "gate guard", Source: guardSource, WorldEvents: []string{"HasFriend"}})
	if err != nil {
		t.Fatalf("PutDialog: %v", err)
	}
	if rec.Version != 1 || rec.UpdatedBy != "tester" || len(warns) != 0 {
		t.Fatalf("unexpected put result: %+v %v", rec, warns)
	}
	if _, ok := store.recs["gate guard"]; !ok {
		t.Fatalf("name with space not stored verbatim: %v", store.recs)
	}

	got, err := c.GetDialog(ctx, "gate guard")
	if err != nil || got.Source != guardSource {
		t.Fatalf("GetDialog: %+v %v", got, err)
	}
	list, err := c.ListDialogs(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListDialogs: %+v %v", list, err)
	}
	res, err := c.Search(ctx, storage.SearchQuery{Text: "friend"})
	if err != nil || len(res) != 1 || res[0].Author != "Player" {
		t.Fatalf("Search: %+v %v", res, err)
	}
	if err := c.DeleteDialog(ctx, "gate guard"); err != nil {
		t.Fatalf("DeleteDialog: %v", err)
	}
	var apiErr *APIError
	if _, err := c.GetDialog(ctx, "gate guard"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestPutDialogReportsWarningsAndRejectsBrokenSources(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, warns, err := c.PutDialog(ctx, DialogRecord{Name: "guard", Source: guardSource})
	if err != nil {
		t.Fatalf("PutDialog: %v", err)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "HasFriend") {
		t.Fatalf("expected unknown event warning, got %v", warns)
	}

	_, _, err = c.PutDialog(ctx, DialogRecord{Name: "broken", Source: "# A\n\n- x | k: 1,zz;\n"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	srv := httptest.NewServer(NewHandler(newMemStore(), "s"))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	var apiErr *APIError
	if _, err := c.ListDialogs(context.Background()); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	forged, _ := signToken("other-secret", "mallory", time.Now().Add(time.Hour))
	c.Token = forged
	if _, err := c.ListDialogs(context.Background()); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %v", err)
	}

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	_ = resp.Body.Close()
}

func TestVerifyToken(t *testing.T) {
	now := time.Now()
	tok, err := signToken("k", "alice", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if sub, err := verifyToken("k", tok, now); err != nil || sub != "alice" {
		t.Fatalf("verify: %q %v", sub, err)
	}
	if _, err := verifyToken("k", tok, now.Add(2*time.Minute)); !errors.Is(err, errTokenExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := verifyToken("x", tok, now); !errors.Is(err, errBadSignature) {
		t.Fatalf("expected bad signature, got %v", err)
	}
	if _, err := verifyToken("k", "nodot", now); !errors.Is(err, errTokenFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_dialog_lines.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion: %d %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error for unnumbered file")
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) < 2 {
		t.Fatalf("embedded migrations missing: %v", err)
	}
}
