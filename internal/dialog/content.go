/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

// ContentKind tells whether a content item is a plain line or a selectable choice.
type ContentKind int

const (
	KindText ContentKind = iota
	KindChoice
)

func (k ContentKind) String() string {
	switch k {
	case KindChoice:
		return "choice"
	default:
		return "text"
	}
}

// Content is one line of a dialog node.
// Condition is only meaningful for choices; a choice without condition is always selectable.
type Content struct {
	Kind      ContentKind
	Text      string
	Condition *Condition
}

// Text builds a plain content line.
func Text(s string) Content { return Content{Kind: KindText, Text: s} }

// Choice builds a choice line. cond may be nil.
func Choice(s string, cond *Condition) Content {
	return Content{Kind: KindChoice, Text: s, Condition: cond}
}

// IsChoice reports whether the item is a choice.
func (c Content) IsChoice() bool { return c.Kind == KindChoice }

// SameKind compares only the variant tag, never the payload.
func (c Content) SameKind(o Content) bool { return c.Kind == o.Kind }

// IsSelectable reports whether the item can be picked under the given world state.
// Text lines are always selectable.
func (c Content) IsSelectable(karma *int, active EventSet) bool {
	if c.Kind != KindChoice || c.Condition == nil {
		return true
	}
	return c.Condition.IsVerified(karma, active)
}

// Equal compares two items including their conditions.
func (c Content) Equal(o Content) bool {
	if c.Kind != o.Kind || c.Text != o.Text {
		return false
	}
	return c.Condition.Equal(o.Condition)
}
