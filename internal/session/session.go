/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session walks a dialog tree the way a game does: one node at a time, with the
// current node kept as dialog text that is parsed again on every step.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"ftodialog/internal/dialog"
	applog "ftodialog/internal/log"
	"ftodialog/internal/undo"
)

var (
	ErrFinished     = errors.New("session: dialog finished")
	ErrNoSuchChoice = errors.New("session: no such choice")
	ErrChoiceLocked = errors.New("session: choice condition not met")
	ErrNoChoice     = errors.New("session: no selectable choice")
	ErrNoHistory    = errors.New("session: nothing to go back to")
)

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id instead of generating one.
func WithID(id string) Option { return func(s *Session) { s.ID = id } }

// WithHistory records every step so Back and Forward can revisit it.
func WithHistory(m *undo.Manager) Option { return func(s *Session) { s.history = m } }

// WithPlayer names the author whose choices are made by the player; other authors choose
// on their own (see AutoChoose).
func WithPlayer(name string) Option { return func(s *Session) { s.player = name } }

// WithCurrent resumes at a previously saved node text. Empty means finished.
func WithCurrent(text string) Option {
	return func(s *Session) {
		s.current = text
		s.resumed = true
	}
}

// Session is not safe for concurrent use.
type Session struct {
	ID    string
	Name  string
	Root  string
	World *World

	current string
	resumed bool
	infos   dialog.CustomInfos
	player  string
	history *undo.Manager
	log     *slog.Logger

	cacheText string
	cacheTree *dialog.Tree
}

// Choice is one entry of a choice node as displayed to the player.
type Choice struct {
	Index   int
	Text    string
	Enabled bool
}

// Step reports what a move did.
type Step struct {
	// Fired lists the trigger events of the node that was left.
	Fired []string
	// Activated lists fired events that became active world events.
	Activated []string
	Finished  bool
}

// New starts a session at the root of source.
func New(name, source string, infos dialog.CustomInfos, world *World, opts ...Option) (*Session, error) {
	tree, err := dialog.Parse(source, infos)
	if err != nil {
		return nil, err
	}
	if world == nil {
		world = &World{Events: dialog.NewEventSet()}
	}
	s := &Session{Name: name, Root: tree.String(), World: world, infos: infos}
	for _, o := range opts {
		o(s)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if !s.resumed {
		s.current = s.Root
	}
	s.log = applog.WithComponent("session").With(slog.String("session", s.ID), slog.String("dialog", name))
	return s, nil
}

// Current returns the text of the current node subtree, "" when finished.
func (s *Session) Current() string { return s.current }

// Finished reports whether the dialog reached its end.
func (s *Session) Finished() bool { return s.current == "" }

// Node parses the current node. The returned tree must not be modified.
func (s *Session) Node() (*dialog.Tree, error) {
	if s.current == "" {
		return nil, ErrFinished
	}
	if s.cacheTree != nil && s.cacheText == s.current {
		return s.cacheTree, nil
	}
	tree, err := dialog.Parse(s.current, s.infos)
	if err != nil {
		return nil, fmt.Errorf("session: current node: %w", err)
	}
	s.cacheText, s.cacheTree = s.current, tree
	return tree, nil
}

// Author returns who speaks at the current node.
func (s *Session) Author() string {
	tree, err := s.Node()
	if err != nil {
		return ""
	}
	return tree.Root().Author
}

// Line returns the text line being said, or "" on a choice node.
func (s *Session) Line() string {
	tree, err := s.Node()
	if err != nil || !tree.Root().IsText() {
		return ""
	}
	return tree.Root().Content[0].Text
}

// Choices lists the choices of the current node with their availability.
func (s *Session) Choices() []Choice {
	tree, err := s.Node()
	if err != nil || !tree.Root().IsChoice() {
		return nil
	}
	out := make([]Choice, 0, len(tree.Root().Content))
	for i, c := range tree.Root().Content {
		out = append(out, Choice{Index: i, Text: c.Text, Enabled: c.IsSelectable(s.World.Karma, s.World.Events)})
	}
	return out
}

// Stuck reports whether the dialog cannot go on: the current text line is the last one and
// every child is a choice node whose choices are all locked by the world state.
func (s *Session) Stuck() bool {
	tree, err := s.Node()
	if err != nil {
		return false
	}
	root := tree.Root()
	if !root.IsText() || len(root.Content) > 1 || tree.IsEndNode(dialog.RootID) {
		return false
	}
	return !tree.AtLeastOneChildIsVerified(dialog.RootID, s.World.Karma, s.World.Events)
}

// PlayerTurn reports whether the current choices belong to the player.
func (s *Session) PlayerTurn() bool {
	return s.player != "" && s.Author() == s.player
}

// Dive moves one step. On a text node with several lines the first line is dropped; on the
// last line the dialog moves to child i (or ends at a leaf). On a choice node i selects the
// choice and the matching child.
func (s *Session) Dive(i int) (Step, error) {
	tree, err := s.Node()
	if err != nil {
		return Step{}, err
	}
	root := tree.Root()

	if root.IsText() && len(root.Content) > 1 {
		s.record()
		next := tree.Subtree(dialog.RootID)
		next.Root().Content = next.Root().Content[1:]
		s.current = next.String()
		s.cacheText, s.cacheTree = s.current, next
		return Step{}, nil
	}

	if root.IsChoice() {
		if i < 0 || i >= len(root.Content) {
			return Step{}, fmt.Errorf("%w: %d of %d", ErrNoSuchChoice, i, len(root.Content))
		}
		if !root.Content[i].IsSelectable(s.World.Karma, s.World.Events) {
			return Step{}, fmt.Errorf("%w: %q", ErrChoiceLocked, root.Content[i].Text)
		}
	}

	var next string
	if !tree.IsEndNode(dialog.RootID) {
		id, err := tree.Child(dialog.RootID, i)
		if err != nil {
			return Step{}, err
		}
		next = tree.Print(id)
	}

	s.record()
	step := Step{Fired: append([]string(nil), root.TriggerEvents...)}
	step.Activated = s.trigger(step.Fired)
	s.current = next
	step.Finished = next == ""
	s.log.Debug("dive", "choice", i, "fired", step.Fired, "finished", step.Finished)
	return step, nil
}

// Continue advances a text node.
func (s *Session) Continue() (Step, error) { return s.Dive(0) }

// AutoChoose picks a random selectable choice, the way non-player characters answer.
// On a text node it behaves like Continue.
func (s *Session) AutoChoose(rng *rand.Rand) (int, Step, error) {
	tree, err := s.Node()
	if err != nil {
		return -1, Step{}, err
	}
	if !tree.Root().IsChoice() {
		st, err := s.Dive(0)
		return 0, st, err
	}
	var enabled []int
	for _, c := range s.Choices() {
		if c.Enabled {
			enabled = append(enabled, c.Index)
		}
	}
	if len(enabled) == 0 {
		return -1, Step{}, ErrNoChoice
	}
	pick := enabled[0]
	if len(enabled) > 1 {
		if rng == nil {
			pick = enabled[rand.Intn(len(enabled))]
		} else {
			pick = enabled[rng.Intn(len(enabled))]
		}
	}
	st, err := s.Dive(pick)
	return pick, st, err
}

// Reset goes back to the root and clears the active world events.
func (s *Session) Reset() {
	s.record()
	s.current = s.Root
	s.World.Events = dialog.NewEventSet()
	s.log.Debug("reset")
}

// Back restores the position and world state before the last move.
func (s *Session) Back() error {
	if s.history == nil {
		return ErrNoHistory
	}
	prev, ok := s.history.Back(s.snapshot())
	if !ok {
		return ErrNoHistory
	}
	s.apply(prev)
	return nil
}

// Forward re-applies a move undone by Back.
func (s *Session) Forward() error {
	if s.history == nil {
		return ErrNoHistory
	}
	next, ok := s.history.Forward(s.snapshot())
	if !ok {
		return ErrNoHistory
	}
	s.apply(next)
	return nil
}

// trigger activates fired events that are also world events.
func (s *Session) trigger(fired []string) []string {
	var known []string
	for _, e := range fired {
		if s.infos.IsWorldEvent(e) {
			known = append(known, e)
		}
	}
	added := s.World.Activate(known...)
	if len(added) > 0 {
		s.log.Info("world events activated", "events", added)
	}
	return added
}

func (s *Session) record() {
	if s.history != nil {
		s.history.Push(s.snapshot())
	}
}

func (s *Session) snapshot() undo.Step {
	w := s.World.clone()
	return undo.Step{SessionID: s.ID, State: s.current, Karma: w.Karma, Events: w.Events.Sorted()}
}

func (s *Session) apply(st undo.Step) {
	s.current = st.State
	s.World.Karma = st.Karma
	s.World.Events = dialog.NewEventSet(st.Events...)
}

// State is the persistable part of a session.
type State struct {
	ID      string
	Name    string
	Root    string
	Current string
	Karma   *int
	Events  []string
}

// State captures the session for saving.
func (s *Session) State() State {
	w := s.World.clone()
	return State{ID: s.ID, Name: s.Name, Root: s.Root, Current: s.current, Karma: w.Karma, Events: w.Events.Sorted()}
}

// Resume rebuilds a saved session.
func Resume(st State, infos dialog.CustomInfos, opts ...Option) (*Session, error) {
	w := &World{Karma: st.Karma, Events: dialog.NewEventSet(st.Events...)}
	opts = append([]Option{WithID(st.ID), WithCurrent(st.Current)}, opts...)
	return New(st.Name, st.Root, infos, w, opts...)
}
