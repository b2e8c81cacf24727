/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"errors"
	"math/rand"
	"testing"

	"ftodialog/internal/dialog"
	"ftodialog/internal/undo"
)

const frogDialog = "# Frog\n\n- Hello\n- I am a frog\n\n## Player\n\n- Nice frog | None\n- Ugly frog | k: MIN,0;\n- I love you | e: FrogLove;\n\n### Frog\n\n- Thanks\n\n-> FrogTalk\n\n### Frog\n\n- Rude\n\n-> FrogHate, FightEvent\n\n### Frog\n\n- Me too\n"

var frogInfos = dialog.CustomInfos{
	WorldEvents:   []string{"FrogLove", "FrogHate", "FrogTalk"},
	TriggerEvents: []string{"FrogTalk", "FrogHate", "FightEvent"},
}

func newFrog(t *testing.T, karma int, opts ...Option) *Session {
	t.Helper()
	s, err := New("frog", frogDialog, frogInfos, NewWorld(karma), opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestWalkThroughDialog(t *testing.T) {
	s := newFrog(t, 10, WithPlayer("Player"))
	if s.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if s.Author() != "Frog" || s.Line() != "Hello" || s.PlayerTurn() {
		t.Fatalf("unexpected start: %q %q", s.Author(), s.Line())
	}
	if _, err := s.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if s.Line() != "I am a frog" {
		t.Fatalf("monologue should advance, got %q", s.Line())
	}
	if _, err := s.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if !s.PlayerTurn() {
		t.Fatalf("expected player turn at %q", s.Author())
	}

	choices := s.Choices()
	if len(choices) != 3 {
		t.Fatalf("expected 3 choices, got %v", choices)
	}
	if !choices[0].Enabled || choices[1].Enabled || choices[2].Enabled {
		t.Fatalf("unexpected availability: %+v", choices)
	}
	if _, err := s.Dive(1); !errors.Is(err, ErrChoiceLocked) {
		t.Fatalf("expected ErrChoiceLocked, got %v", err)
	}
	if _, err := s.Dive(5); !errors.Is(err, ErrNoSuchChoice) {
		t.Fatalf("expected ErrNoSuchChoice, got %v", err)
	}

	if _, err := s.Dive(0); err != nil {
		t.Fatalf("dive: %v", err)
	}
	if s.Line() != "Thanks" {
		t.Fatalf("expected first answer, got %q", s.Line())
	}
	st, err := s.Continue()
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if !st.Finished || !s.Finished() {
		t.Fatalf("expected the dialog to end")
	}
	if len(st.Fired) != 1 || st.Fired[0] != "FrogTalk" || len(st.Activated) != 1 {
		t.Fatalf("unexpected step: %+v", st)
	}
	if !s.World.Events.Has("FrogTalk") {
		t.Fatalf("trigger should activate world event")
	}
	if _, err := s.Continue(); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
}

func TestTriggersOnlyActivateWorldEvents(t *testing.T) {
	s := newFrog(t, -50)
	s.Continue()
	s.Continue()
	if _, err := s.Dive(1); err != nil {
		t.Fatalf("dive: %v", err)
	}
	st, err := s.Continue()
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if len(st.Fired) != 2 || len(st.Activated) != 1 || st.Activated[0] != "FrogHate" {
		t.Fatalf("unexpected step: %+v", st)
	}
	if s.World.Events.Has("FightEvent") {
		t.Fatalf("FightEvent is not a world event")
	}
}

func TestResetClearsEvents(t *testing.T) {
	s := newFrog(t, 0)
	s.World.Activate("FrogLove")
	s.Continue()
	s.Continue()
	s.Reset()
	if s.Current() != s.Root || s.Line() != "Hello" {
		t.Fatalf("reset should return to the root")
	}
	if len(s.World.Events) != 0 {
		t.Fatalf("reset should clear events, got %v", s.World.Events.Sorted())
	}
}

func TestBackAndForward(t *testing.T) {
	s := newFrog(t, 10, WithHistory(undo.NewManager(undo.Config{})))
	if err := s.Back(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	s.Continue()
	s.Continue()
	s.Dive(0)
	s.Continue()
	if !s.Finished() || !s.World.Events.Has("FrogTalk") {
		t.Fatalf("expected finished dialog with FrogTalk")
	}
	if err := s.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if s.Line() != "Thanks" || s.World.Events.Has("FrogTalk") {
		t.Fatalf("back should restore node and events, got %q %v", s.Line(), s.World.Events.Sorted())
	}
	if err := s.Forward(); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if !s.Finished() || !s.World.Events.Has("FrogTalk") {
		t.Fatalf("forward should re-apply the last move")
	}
}

func TestAutoChoose(t *testing.T) {
	s := newFrog(t, 10)
	rng := rand.New(rand.NewSource(1))
	if i, _, err := s.AutoChoose(rng); err != nil || i != 0 {
		t.Fatalf("text node should continue: %d %v", i, err)
	}
	s.Continue()
	i, _, err := s.AutoChoose(rng)
	if err != nil || i != 0 {
		t.Fatalf("only the first choice is enabled, got %d %v", i, err)
	}

	s = newFrog(t, 10)
	s.World.Karma = nil
	s.Continue()
	s.Continue()
	s.Dive(0)
	if s.Line() != "Thanks" {
		t.Fatalf("dive failed")
	}

	locked, err := New("locked", "# A\n\n- a | e: FrogLove;\n", frogInfos, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := locked.AutoChoose(rng); !errors.Is(err, ErrNoChoice) {
		t.Fatalf("expected ErrNoChoice, got %v", err)
	}
}

func TestStateResume(t *testing.T) {
	s := newFrog(t, 7)
	s.Continue()
	s.World.Activate("FrogLove")
	st := s.State()

	r, err := Resume(st, frogInfos)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if r.ID != s.ID || r.Current() != s.Current() || r.Line() != "I am a frog" {
		t.Fatalf("resume mismatch")
	}
	if r.World.Karma == nil || *r.World.Karma != 7 || !r.World.Events.Has("FrogLove") {
		t.Fatalf("world not restored: %+v", r.World)
	}
}

func TestAddKarmaClamps(t *testing.T) {
	w := NewWorld(90)
	if got := w.AddKarma(50, dialog.DefaultKarmaLimits); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := w.AddKarma(-300, dialog.DefaultKarmaLimits); got != -100 {
		t.Fatalf("expected clamp to -100, got %d", got)
	}
}

func TestStuckWhenEveryFollowingChoiceIsLocked(t *testing.T) {
	src := "# Frog\n\n- Well?\n\n## Player\n\n- Kiss | e: FrogLove;\n- Hug | k: 50,MAX;\n\n### Frog\n\n- Yes\n\n### Frog\n\n- No\n"
	s, err := New("locked", src, frogInfos, NewWorld(0))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if !s.Stuck() {
		t.Fatalf("expected no way forward with FrogLove inactive and karma 0")
	}
	s.World.Activate("FrogLove")
	if s.Stuck() {
		t.Fatalf("kiss should unlock once FrogLove is active")
	}

	s = newFrog(t, 0)
	if s.Stuck() {
		t.Fatalf("a monologue with lines left is never stuck")
	}
}
