/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import "ftodialog/internal/dialog"

// World is the state conditions are evaluated against. A nil Karma means the game does not
// track karma; karma-gated choices are then locked.
type World struct {
	Karma  *int
	Events dialog.EventSet
}

// NewWorld starts with the given karma and no active events.
func NewWorld(karma int) *World {
	return &World{Karma: &karma, Events: dialog.NewEventSet()}
}

// Activate marks events as active and returns the ones that were not active before.
func (w *World) Activate(names ...string) []string {
	if w.Events == nil {
		w.Events = dialog.NewEventSet()
	}
	var added []string
	for _, n := range names {
		if w.Events.Add(n) {
			added = append(added, n)
		}
	}
	return added
}

// AddKarma shifts karma by delta, clamped to limits.
func (w *World) AddKarma(delta int, limits dialog.KarmaRange) int {
	k := 0
	if w.Karma != nil {
		k = *w.Karma
	}
	k += delta
	if k < limits.Min {
		k = limits.Min
	}
	if k > limits.Max {
		k = limits.Max
	}
	w.Karma = &k
	return k
}

func (w *World) clone() *World {
	c := &World{Events: dialog.NewEventSet(w.Events.Sorted()...)}
	if w.Karma != nil {
		k := *w.Karma
		c.Karma = &k
	}
	return c
}
