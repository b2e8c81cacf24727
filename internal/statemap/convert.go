/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package statemap

import (
	"errors"
	"fmt"

	"ftodialog/internal/dialog"
)

// End is the exit state used for "no next state".
const End = 0

var (
	ErrCycle    = errors.New("statemap: states form a cycle")
	ErrNoState  = errors.New("statemap: no such state")
	ErrUnwalked = errors.New("statemap: node children cannot be expressed as exit states")
)

// FromTree numbers the nodes of tree in pre-order starting at 1. A text node continues to its
// first child, choice i of a choice node continues to child i.
func FromTree(tree *dialog.Tree) (Map, error) {
	ids := make(map[dialog.NodeID]int, tree.Len())
	next := 1
	tree.Walk(dialog.RootID, func(id dialog.NodeID, _ int) bool {
		ids[id] = next
		next++
		return true
	})

	m := make(Map, len(ids))
	for id, state := range ids {
		n := tree.Node(id)
		children := tree.Children(id)
		exit := func(i int) int {
			if i < len(children) {
				return ids[children[i]]
			}
			return End
		}
		st := State{Source: n.Author, TriggerEvent: append([]string{}, n.TriggerEvents...)}
		if n.IsChoice() {
			if len(children) > len(n.Content) {
				return nil, fmt.Errorf("%w: node %q has %d choices and %d children", ErrUnwalked, n.Author, len(n.Content), len(children))
			}
			choices := make([]Choice, 0, len(n.Content))
			for i, c := range n.Content {
				choices = append(choices, Choice{Text: c.Text, Condition: fromCondition(c.Condition), ExitState: exit(i)})
			}
			st.Content = Content{Choices: choices}
		} else {
			if len(children) > 1 {
				return nil, fmt.Errorf("%w: text node %q has %d children", ErrUnwalked, n.Author, len(children))
			}
			lines := make([]string, 0, len(n.Content))
			for _, c := range n.Content {
				lines = append(lines, c.Text)
			}
			st.Content = Content{Monolog: &Monolog{Text: lines, ExitState: exit(0)}}
		}
		m[state] = st
	}
	return m, nil
}

// ToTree rebuilds a dialog tree starting at state start. States reached from several
// places are copied; cycles are rejected. A choice node whose choices do not all continue
// to a known state becomes an end node if none continue, and is rejected otherwise.
func ToTree(m Map, start int) (*dialog.Tree, error) {
	st, ok := m[start]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoState, start)
	}
	tree := dialog.NewTree()
	onPath := map[int]bool{}

	var build func(id dialog.NodeID, key int, st State) error
	build = func(id dialog.NodeID, key int, st State) error {
		onPath[key] = true
		defer delete(onPath, key)

		n := tree.Node(id)
		n.Author = st.Source
		n.TriggerEvents = append([]string(nil), st.TriggerEvent...)

		var exits []int
		if st.Content.IsChoices() {
			for _, c := range st.Content.Choices {
				n.Content = append(n.Content, dialog.Choice(c.Text, toCondition(c.Condition)))
				exits = append(exits, c.ExitState)
			}
		} else if st.Content.Monolog != nil {
			for _, line := range st.Content.Monolog.Text {
				n.Content = append(n.Content, dialog.Text(line))
			}
			exits = append(exits, st.Content.Monolog.ExitState)
		}

		known := 0
		for _, e := range exits {
			if _, ok := m[e]; ok {
				known++
			}
		}
		if known == 0 {
			return nil
		}
		if known != len(exits) {
			return fmt.Errorf("%w: state %d mixes ending and continuing choices", ErrUnwalked, key)
		}
		for _, e := range exits {
			if onPath[e] {
				return fmt.Errorf("%w: %d -> %d", ErrCycle, key, e)
			}
			child := tree.AddChild(id, dialog.Node{})
			if err := build(child, e, m[e]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := build(dialog.RootID, start, st); err != nil {
		return nil, err
	}
	return tree, nil
}

func fromCondition(c *dialog.Condition) *Condition {
	if c.IsEmpty() {
		return nil
	}
	out := &Condition{Events: append([]string{}, c.Events...)}
	if c.KarmaThreshold != nil {
		out.KarmaThreshold = &[2]int{c.KarmaThreshold.Min, c.KarmaThreshold.Max}
	}
	return out
}

func toCondition(c *Condition) *dialog.Condition {
	if c == nil {
		return nil
	}
	out := &dialog.Condition{}
	if len(c.Events) > 0 {
		out.Events = append([]string(nil), c.Events...)
	}
	if c.KarmaThreshold != nil {
		r := dialog.KarmaRange{Min: c.KarmaThreshold[0], Max: c.KarmaThreshold[1]}.Ordered()
		out.KarmaThreshold = &r
	}
	if out.IsEmpty() {
		return nil
	}
	return out
}
