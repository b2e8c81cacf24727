/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import "fmt"

// ErrorKind classifies parse diagnostics.
type ErrorKind int

const (
	// UnknownEvent: an event name absent from the configured allow-list. Warning only.
	UnknownEvent ErrorKind = iota + 1
	// StrayText: characters outside any header or content line. Warning only.
	StrayText
	// IncompleteKarma: a karma clause with a single operand; the clause is skipped. Warning only.
	IncompleteKarma
	// BadNumber: a karma operand that is neither an integer nor MIN/MAX.
	BadNumber
	// Structure: the text cannot be turned into a well-formed tree.
	Structure
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownEvent:
		return "unknown event"
	case StrayText:
		return "stray text"
	case IncompleteKarma:
		return "incomplete karma clause"
	case BadNumber:
		return "bad number"
	case Structure:
		return "structure"
	default:
		return "unknown"
	}
}

// Error is a parse diagnostic with position context. Line and Column are 1-based,
// Offset is the byte offset into the source. Text holds the offending token if any.
type Error struct {
	Kind    ErrorKind
	Line    int
	Column  int
	Offset  int
	Text    string
	Message string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return "dialog: " + e.Message
	}
	if e.Text != "" {
		return fmt.Sprintf("dialog:%d:%d: %s (%q)", e.Line, e.Column, e.Message, e.Text)
	}
	return fmt.Sprintf("dialog:%d:%d: %s", e.Line, e.Column, e.Message)
}

// IsWarning reports whether the diagnostic was absorbed by the parser.
func (e *Error) IsWarning() bool {
	return e.Kind == UnknownEvent || e.Kind == StrayText || e.Kind == IncompleteKarma
}
