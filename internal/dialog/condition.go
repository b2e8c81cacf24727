/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import (
	"sort"
	"strconv"
	"strings"
)

// KarmaRange is an inclusive karma interval. Parsed ranges are always ordered (Min <= Max).
type KarmaRange struct {
	Min int
	Max int
}

// Contains reports whether k lies in the closed interval.
func (r KarmaRange) Contains(k int) bool { return k >= r.Min && k <= r.Max }

// Ordered returns the range with its bounds swapped if needed.
func (r KarmaRange) Ordered() KarmaRange {
	if r.Min > r.Max {
		return KarmaRange{Min: r.Max, Max: r.Min}
	}
	return r
}

// DefaultKarmaLimits is used when no limits are configured.
var DefaultKarmaLimits = KarmaRange{Min: -100, Max: 100}

// Condition gates a choice on the world state.
// A nil KarmaThreshold or an empty Events slice means the axis is unconstrained.
type Condition struct {
	KarmaThreshold *KarmaRange
	Events         []string
}

// IsVerified evaluates the condition. karma and active may be nil when the caller has no such
// state; a constrained axis then fails, an unconstrained one passes. Both axes must hold.
func (c *Condition) IsVerified(karma *int, active EventSet) bool {
	if c == nil {
		return true
	}
	if c.KarmaThreshold != nil {
		if karma == nil || !c.KarmaThreshold.Contains(*karma) {
			return false
		}
	}
	if len(c.Events) > 0 {
		if active == nil {
			return false
		}
		for _, e := range c.Events {
			if !active.Has(e) {
				return false
			}
		}
	}
	return true
}

// IsEmpty reports whether neither axis is constrained.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.KarmaThreshold == nil && len(c.Events) == 0)
}

// Equal compares two conditions; nil and an empty condition are equal.
func (c *Condition) Equal(o *Condition) bool {
	if c.IsEmpty() || o.IsEmpty() {
		return c.IsEmpty() == o.IsEmpty()
	}
	if (c.KarmaThreshold == nil) != (o.KarmaThreshold == nil) {
		return false
	}
	if c.KarmaThreshold != nil && *c.KarmaThreshold != *o.KarmaThreshold {
		return false
	}
	return NewEventSet(c.Events...).Equal(NewEventSet(o.Events...))
}

// String renders the condition the way it is written after a choice's pipe.
func (c *Condition) String() string {
	if c.IsEmpty() {
		return "None"
	}
	var parts []string
	if c.KarmaThreshold != nil {
		parts = append(parts, "karma: "+strconv.Itoa(c.KarmaThreshold.Min)+","+strconv.Itoa(c.KarmaThreshold.Max)+";")
	}
	if len(c.Events) > 0 {
		parts = append(parts, "event: "+strings.Join(c.Events, ",")+";")
	}
	return strings.Join(parts, " ")
}

// EventSet is a set of event names. A nil set means "no events known".
type EventSet map[string]struct{}

// NewEventSet builds a non-nil set from names.
func NewEventSet(names ...string) EventSet {
	s := make(EventSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s EventSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name and reports whether it was new.
func (s EventSet) Add(name string) bool {
	if s.Has(name) {
		return false
	}
	s[name] = struct{}{}
	return true
}

// Sorted returns the names in lexical order.
func (s EventSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s EventSet) Equal(o EventSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}
