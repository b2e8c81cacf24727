/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded back/forward stacks of dialog positions per session.
package undo

import (
	"sync"
	"time"
)

// Step is one recorded dialog position. State is the printed dialog text of the node the
// session was on; Karma and Events capture the world state at that moment.
type Step struct {
	SessionID string
	State     string
	Karma     *int
	Events    []string
	TS        time.Time
}

func (s Step) size() int {
	n := len(s.State)
	for _, e := range s.Events {
		n += len(e)
	}
	return n
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; oldest steps across all sessions are pruned when exceeded.
	MaxBytes int
	// MaxPerSession limits the back stack of one session (0 means unlimited).
	MaxPerSession int
	// MinInterval, when positive, replaces the previous step instead of pushing if both were
	// recorded within the interval.
	MinInterval time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	back    map[string][]Step
	forward map[string][]Step

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	return &Manager{cfg: cfg, back: make(map[string][]Step), forward: make(map[string][]Step)}
}

// Push records s and clears the forward stack of its session.
func (m *Manager) Push(s Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.TS.IsZero() {
		s.TS = time.Now()
	}
	stack := m.back[s.SessionID]
	m.forward[s.SessionID] = nil
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 && s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		m.totalBytes += s.size() - stack[n-1].size()
		stack[n-1] = s
	} else {
		stack = append(stack, s)
		m.totalBytes += s.size()
	}
	m.back[s.SessionID] = stack
	m.enforceCapsLocked(s.SessionID)
}

// Back pops the latest step of a session. The caller passes the position it is leaving,
// which becomes available to Forward.
func (m *Manager) Back(current Step) (Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := current.SessionID
	stack := m.back[id]
	if len(stack) == 0 {
		return Step{}, false
	}
	s := stack[len(stack)-1]
	m.back[id] = stack[:len(stack)-1]
	m.totalBytes -= s.size()
	m.forward[id] = append(m.forward[id], current)
	return s, true
}

// Forward re-applies a step undone by Back; current goes back onto the back stack.
func (m *Manager) Forward(current Step) (Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := current.SessionID
	f := m.forward[id]
	if len(f) == 0 {
		return Step{}, false
	}
	s := f[len(f)-1]
	m.forward[id] = f[:len(f)-1]
	m.back[id] = append(m.back[id], current)
	m.totalBytes += current.size()
	m.enforceCapsLocked(id)
	return s, true
}

// Depth returns the number of steps Back can undo for a session.
func (m *Manager) Depth(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.back[sessionID])
}

// Clear drops both stacks of a session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.back[sessionID] {
		m.totalBytes -= s.size()
	}
	delete(m.back, sessionID)
	delete(m.forward, sessionID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, sessions int, totalSteps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.back {
		totalSteps += len(v)
	}
	return m.totalBytes, len(m.back), totalSteps
}

func (m *Manager) enforceCapsLocked(sessionID string) {
	if m.cfg.MaxPerSession > 0 {
		stack := m.back[sessionID]
		if drop := len(stack) - m.cfg.MaxPerSession; drop > 0 {
			for _, s := range stack[:drop] {
				m.totalBytes -= s.size()
			}
			m.back[sessionID] = append([]Step(nil), stack[drop:]...)
		}
	}
	for m.totalBytes > m.cfg.MaxBytes {
		oldest := ""
		var oldestTS time.Time
		for id, stack := range m.back {
			if len(stack) == 0 {
				continue
			}
			if oldest == "" || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS = id, stack[0].TS
			}
		}
		if oldest == "" {
			break
		}
		stack := m.back[oldest]
		m.totalBytes -= stack[0].size()
		if len(stack) == 1 {
			delete(m.back, oldest)
		} else {
			m.back[oldest] = stack[1:]
		}
	}
}
