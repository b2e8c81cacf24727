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
	"errors"
	"reflect"
	"testing"

	"ftodialog/internal/session"
)

func TestSaveAndLoadSession(t *testing.T) {
	ph, _ := newFrogProject(t)
	ctx := context.Background()
	karma := -3
	st := session.State{ID: "abc", Name: "Frog", Root: frogSource, Current: "# Player\n", Karma: &karma, Events: []string{"FrogTalk"}}

	if err := SaveSession(ctx, ph, "slot1", st); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := LoadSession(ctx, ph, "slot1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if !reflect.DeepEqual(got, st) {
		t.Fatalf("state mismatch:\n got %+v\nwant %+v", got, st)
	}

	// overwrite, this time without karma and finished
	st.Karma = nil
	st.Current = ""
	st.Events = nil
	if err := SaveSession(ctx, ph, "slot1", st); err != nil {
		t.Fatalf("SaveSession overwrite: %v", err)
	}
	got, err = LoadSession(ctx, ph, "slot1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Karma != nil || len(got.Events) != 0 || got.Current != "" {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	saves, err := ListSaves(ctx, ph)
	if err != nil || len(saves) != 1 || !saves[0].Finished || saves[0].Dialog != "Frog" {
		t.Fatalf("ListSaves: %+v %v", saves, err)
	}
}

func TestSaveRoundTripWithSession(t *testing.T) {
	ph, d := newFrogProject(t)
	ctx := context.Background()
	src, _ := ReadDialog(ph, d)
	s, err := session.New(d.Name, src, ph.Project.Events.CustomInfos(), session.NewWorld(0))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if _, err := s.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if err := SaveSession(ctx, ph, "auto", s.State()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	st, err := LoadSession(ctx, ph, "auto")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	resumed, err := session.Resume(st, ph.Project.Events.CustomInfos())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Line() != s.Line() || resumed.ID != s.ID {
		t.Fatalf("resumed at %q, want %q", resumed.Line(), s.Line())
	}
}

func TestDeleteSave(t *testing.T) {
	ph, _ := newFrogProject(t)
	ctx := context.Background()
	if err := SaveSession(ctx, ph, "x", session.State{Name: "Frog"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := DeleteSave(ctx, ph, "x"); err != nil {
		t.Fatalf("DeleteSave: %v", err)
	}
	if err := DeleteSave(ctx, ph, "x"); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave, got %v", err)
	}
	if _, err := LoadSession(ctx, ph, "x"); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave on load, got %v", err)
	}
}
