/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestBackForward(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(Step{SessionID: "s", State: "a", TS: t0})
	m.Push(Step{SessionID: "s", State: "b", TS: t0.Add(time.Millisecond)})
	if m.Depth("s") != 2 {
		t.Fatalf("expected depth 2, got %d", m.Depth("s"))
	}
	s, ok := m.Back(Step{SessionID: "s", State: "c"})
	if !ok || s.State != "b" {
		t.Fatalf("back expected 'b', got ok=%v state=%q", ok, s.State)
	}
	s, ok = m.Forward(Step{SessionID: "s", State: "b"})
	if !ok || s.State != "c" {
		t.Fatalf("forward expected 'c', got ok=%v state=%q", ok, s.State)
	}
	if _, ok := m.Forward(Step{SessionID: "s"}); ok {
		t.Fatalf("forward stack should be empty")
	}
	m.Push(Step{SessionID: "s", State: "d"})
	if _, ok := m.Back(Step{SessionID: "other"}); ok {
		t.Fatalf("sessions must not share stacks")
	}
}

func TestPushClearsForward(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Step{SessionID: "s", State: "a"})
	m.Back(Step{SessionID: "s", State: "b"})
	m.Push(Step{SessionID: "s", State: "x"})
	if _, ok := m.Forward(Step{SessionID: "s"}); ok {
		t.Fatalf("push must clear the forward stack")
	}
}

func TestCoalesceOnlyWhenConfigured(t *testing.T) {
	t0 := time.Now()
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	m.Push(Step{SessionID: "s", State: "1", TS: t0})
	m.Push(Step{SessionID: "s", State: "2", TS: t0.Add(10 * time.Millisecond)})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 step, got %d", total)
	}

	m = NewManager(Config{})
	m.Push(Step{SessionID: "s", State: "1", TS: t0})
	m.Push(Step{SessionID: "s", State: "2", TS: t0})
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected 2 steps without coalescing, got %d", total)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerSession: 3})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Push(Step{SessionID: "a", State: "xxxxx", TS: t0.Add(time.Duration(i) * time.Millisecond)})
	}
	if _, _, total := m.Stats(); total != 3 {
		t.Fatalf("expected per-session cap of 3, got %d", total)
	}
	for i := 0; i < 3; i++ {
		m.Push(Step{SessionID: "b", State: "yyyyy", TS: t0.Add(time.Duration(20+i) * time.Millisecond)})
	}
	bytes, _, _ := m.Stats()
	if bytes > 20 {
		t.Fatalf("expected MaxBytes cap to hold, got %d", bytes)
	}
	if m.Depth("b") != 3 {
		t.Fatalf("newest session should survive pruning, depth=%d", m.Depth("b"))
	}
	m.Clear("b")
	if m.Depth("b") != 0 {
		t.Fatalf("clear failed")
	}
}
