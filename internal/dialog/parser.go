/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	applog "ftodialog/internal/log"
)

// Parse builds a dialog tree from source text.
//
// Grammar, one construct per line:
//   - "#"*depth + author starts a node; depth places it below the previous header.
//   - "- text" adds a text line to the current node.
//   - "- text | cond" adds a choice; cond is "None" or clauses like "karma: MIN,10;" and
//     "event: A,B;". Only the first letter of a clause keyword matters (k or e).
//   - "-> A, B" appends trigger events to the current node.
//   - "/" makes the next character literal; "//" is a slash.
//
// Unknown events and stray text are logged and dropped. A missing trailing newline is
// treated as if it were present.
func Parse(source string, infos CustomInfos) (*Tree, error) {
	t, warns, err := ParseDetailed(source, infos)
	if len(warns) > 0 {
		l := applog.WithOperation(applog.WithComponent("dialog"), "parse")
		for _, w := range warns {
			l.Warn(w.Message, "kind", w.Kind.String(), "line", w.Line, "col", w.Column, "text", w.Text)
		}
	}
	return t, err
}

// ParseDetailed is Parse without logging: warnings are returned to the caller.
// On failure the tree is nil and err is an *Error.
func ParseDetailed(source string, infos CustomInfos) (*Tree, []*Error, error) {
	p := newParser(infos)
	for i, r := range source {
		p.off = i
		if err := p.step(r); err != nil {
			return nil, p.warnings, err
		}
		p.advance(r)
	}
	p.off = len(source)
	if p.phase != phaseIdle || p.escaped {
		p.escaped = false
		if err := p.step('\n'); err != nil {
			return nil, p.warnings, err
		}
	}
	return p.tree, p.warnings, nil
}

type phase int

const (
	phaseIdle phase = iota
	phaseAuthor
	phaseContent
	phaseCondition
	phaseTrigger
)

// clause is the sub-state inside a condition.
type clause int

const (
	clauseKeyword clause = iota
	clauseKarmaKey
	clauseKarma
	clauseEventKey
	clauseEvent
	clauseSkip
)

type parser struct {
	infos  CustomInfos
	limits KarmaRange
	tree   *Tree
	cur    NodeID

	phase   phase
	clause  clause
	escaped bool

	headers     int
	lastHeaders int

	author strings.Builder
	text   strings.Builder
	word   strings.Builder
	// position of the first rune in word
	wordLine, wordCol, wordOff int

	cond     Condition
	karmaLow *int

	line, col, off int
	strayLine      int
	warnings       []*Error
}

func newParser(infos CustomInfos) *parser {
	return &parser{
		infos:  infos,
		limits: infos.Limits(),
		tree:   NewTree(),
		cur:    RootID,
		line:   1,
		col:    1,
	}
}

func (p *parser) advance(r rune) {
	if r == '\n' {
		p.line++
		p.col = 1
		return
	}
	p.col++
}

func (p *parser) step(r rune) error {
	esc := p.escaped
	p.escaped = false
	if r == '/' && !esc {
		p.escaped = true
		return nil
	}
	switch p.phase {
	case phaseAuthor:
		return p.stepAuthor(r, esc)
	case phaseContent:
		return p.stepContent(r, esc)
	case phaseCondition:
		return p.stepCondition(r, esc)
	case phaseTrigger:
		return p.stepTrigger(r, esc)
	default:
		p.stepIdle(r, esc)
		return nil
	}
}

func (p *parser) stepIdle(r rune, esc bool) {
	switch {
	case r == '#' && !esc:
		p.phase = phaseAuthor
		p.headers = 1
		p.author.Reset()
	case r == '-' && !esc:
		p.phase = phaseContent
		p.text.Reset()
	case unicode.IsSpace(r):
	default:
		if p.strayLine != p.line {
			p.strayLine = p.line
			p.warn(StrayText, p.line, p.col, p.off, string(r), "text outside of a content line ignored")
		}
	}
}

func (p *parser) stepAuthor(r rune, esc bool) error {
	switch {
	case r == '\n' && !esc:
		return p.commitHeader()
	case r == '#' && !esc && strings.TrimSpace(p.author.String()) == "":
		p.headers++
	default:
		p.author.WriteRune(r)
	}
	return nil
}

// commitHeader places a new node relative to the previous header. A header of depth D after
// one of depth L climbs L-D+1 levels and opens a child there; the first header names the root.
func (p *parser) commitHeader() error {
	if p.lastHeaders != 0 {
		for i := 0; i < p.lastHeaders-p.headers+1; i++ {
			parent, ok := p.tree.Parent(p.cur)
			if !ok {
				return p.fail(Structure, "", fmt.Sprintf("header of depth %d has no parent node", p.headers))
			}
			p.cur = parent
		}
		p.cur = p.tree.AddChild(p.cur, Node{})
	}
	p.tree.Node(p.cur).Author = strings.TrimSpace(p.author.String())
	p.lastHeaders = p.headers
	p.headers = 0
	p.author.Reset()
	p.phase = phaseIdle
	return nil
}

func (p *parser) stepContent(r rune, esc bool) error {
	if esc {
		p.text.WriteRune(r)
		return nil
	}
	switch r {
	case '\n':
		return p.commitText()
	case '|':
		p.phase = phaseCondition
		p.clause = clauseKeyword
		p.cond = Condition{}
		p.karmaLow = nil
		p.word.Reset()
	case '>':
		if s := strings.TrimSpace(p.text.String()); s != "" {
			p.warn(StrayText, p.line, p.col, p.off, s, "text before trigger marker ignored")
		}
		p.text.Reset()
		p.phase = phaseTrigger
		p.word.Reset()
	case '#':
		return p.fail(Structure, "#", "unescaped '#' inside a content line")
	case '-':
		p.warn(StrayText, p.line, p.col, p.off, "-", "unescaped '-' inside a content line dropped, write '/-' to keep it")
	default:
		p.text.WriteRune(r)
	}
	return nil
}

func (p *parser) commitText() error {
	p.phase = phaseIdle
	s := strings.TrimSpace(p.text.String())
	p.text.Reset()
	if s == "" {
		return nil
	}
	n := p.tree.Node(p.cur)
	if n.IsChoice() {
		return p.fail(Structure, s, "text line inside a choice node")
	}
	n.Content = append(n.Content, Text(s))
	return nil
}

func (p *parser) stepCondition(r rune, esc bool) error {
	if !esc {
		switch r {
		case '\n':
			if err := p.closeClause(); err != nil {
				return err
			}
			return p.commitChoice()
		case '#':
			return p.fail(Structure, "#", "unescaped '#' inside a condition")
		}
	}
	switch p.clause {
	case clauseKeyword:
		switch {
		case unicode.IsSpace(r) || r == ';':
		case r == 'k':
			p.clause = clauseKarmaKey
		case r == 'e':
			p.clause = clauseEventKey
		default:
			p.clause = clauseSkip
			p.appendWord(r)
		}
	case clauseKarmaKey, clauseEventKey:
		switch r {
		case ':':
			p.word.Reset()
			p.karmaLow = nil
			if p.clause == clauseKarmaKey {
				p.clause = clauseKarma
			} else {
				p.clause = clauseEvent
			}
		case ';':
			p.clause = clauseKeyword
		}
	case clauseKarma:
		switch {
		case unicode.IsSpace(r):
		case r == ',':
			if p.karmaLow != nil {
				return p.fail(BadNumber, ",", "karma clause takes exactly two bounds")
			}
			v, err := p.karmaValue()
			if err != nil {
				return err
			}
			p.karmaLow = &v
		case r == ';':
			if err := p.closeClause(); err != nil {
				return err
			}
		default:
			p.appendWord(r)
		}
	case clauseEvent:
		switch {
		case unicode.IsSpace(r):
		case r == ',':
			p.pushConditionEvent()
		case r == ';':
			p.pushConditionEvent()
			p.clause = clauseKeyword
		default:
			p.appendWord(r)
		}
	case clauseSkip:
		switch {
		case r == ';':
			p.closeSkip()
		case unicode.IsSpace(r):
		default:
			p.appendWord(r)
		}
	}
	return nil
}

// closeClause ends the clause in progress as if a ';' had been read.
func (p *parser) closeClause() error {
	switch p.clause {
	case clauseKarma:
		p.clause = clauseKeyword
		if p.karmaLow == nil {
			if p.word.Len() == 0 {
				return nil
			}
			line, col, off := p.wordLine, p.wordCol, p.wordOff
			v, err := p.karmaValue()
			if err != nil {
				return err
			}
			p.warn(IncompleteKarma, line, col, off, strconv.Itoa(v), "karma clause needs two bounds, skipped")
			return nil
		}
		hi, err := p.karmaValue()
		if err != nil {
			return err
		}
		p.cond.KarmaThreshold = &KarmaRange{Min: *p.karmaLow, Max: hi}
		*p.cond.KarmaThreshold = p.cond.KarmaThreshold.Ordered()
		p.karmaLow = nil
	case clauseEvent:
		p.pushConditionEvent()
		p.clause = clauseKeyword
	case clauseSkip:
		p.closeSkip()
	default:
		p.clause = clauseKeyword
	}
	return nil
}

func (p *parser) closeSkip() {
	if w := p.word.String(); w != "None" {
		p.warn(StrayText, p.wordLine, p.wordCol, p.wordOff, w, "unknown condition clause ignored")
	}
	p.word.Reset()
	p.clause = clauseKeyword
}

// karmaValue consumes the pending word as a karma bound.
func (p *parser) karmaValue() (int, error) {
	s := p.word.String()
	line, col, off := p.wordLine, p.wordCol, p.wordOff
	p.word.Reset()
	switch {
	case strings.EqualFold(s, "MAX"):
		return p.limits.Max, nil
	case strings.EqualFold(s, "MIN"):
		return p.limits.Min, nil
	case s == "":
		return 0, &Error{Kind: BadNumber, Line: p.line, Column: p.col, Offset: p.off, Message: "missing karma bound"}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &Error{Kind: BadNumber, Line: line, Column: col, Offset: off, Text: s, Message: "karma bound is not a number"}
	}
	return v, nil
}

func (p *parser) pushConditionEvent() {
	name := p.word.String()
	p.word.Reset()
	if name == "" {
		return
	}
	if !p.infos.IsWorldEvent(name) {
		p.warn(UnknownEvent, p.wordLine, p.wordCol, p.wordOff, name, "unknown world event dropped")
		return
	}
	if !contains(p.cond.Events, name) {
		p.cond.Events = append(p.cond.Events, name)
	}
}

func (p *parser) commitChoice() error {
	p.phase = phaseIdle
	s := strings.TrimSpace(p.text.String())
	p.text.Reset()
	var cond *Condition
	if !p.cond.IsEmpty() {
		c := p.cond
		cond = &c
	}
	p.cond = Condition{}
	n := p.tree.Node(p.cur)
	if n.IsText() {
		return p.fail(Structure, s, "choice line inside a text node")
	}
	n.Content = append(n.Content, Choice(s, cond))
	return nil
}

func (p *parser) stepTrigger(r rune, esc bool) error {
	switch {
	case r == '\n' && !esc:
		p.pushTrigger()
		p.phase = phaseIdle
	case r == ',':
		p.pushTrigger()
	case unicode.IsSpace(r):
	default:
		p.appendWord(r)
	}
	return nil
}

func (p *parser) pushTrigger() {
	name := p.word.String()
	p.word.Reset()
	if name == "" {
		return
	}
	if !p.infos.IsTriggerEvent(name) {
		p.warn(UnknownEvent, p.wordLine, p.wordCol, p.wordOff, name, "unknown trigger event dropped")
		return
	}
	n := p.tree.Node(p.cur)
	if !contains(n.TriggerEvents, name) {
		n.TriggerEvents = append(n.TriggerEvents, name)
	}
}

func (p *parser) appendWord(r rune) {
	if p.word.Len() == 0 {
		p.wordLine, p.wordCol, p.wordOff = p.line, p.col, p.off
	}
	p.word.WriteRune(r)
}

func (p *parser) warn(kind ErrorKind, line, col, off int, text, msg string) {
	p.warnings = append(p.warnings, &Error{Kind: kind, Line: line, Column: col, Offset: off, Text: text, Message: msg})
}

func (p *parser) fail(kind ErrorKind, text, msg string) error {
	return &Error{Kind: kind, Line: p.line, Column: p.col, Offset: p.off, Text: text, Message: msg}
}
