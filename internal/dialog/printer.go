/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import "strings"

// Print renders the subtree rooted at id in the dialog grammar. The result parses back into
// an equal tree (narrator nodes come back authored by NarratorName) and ends with a single newline.
func (t *Tree) Print(id NodeID) string {
	var blocks []string
	t.Walk(id, func(n NodeID, depth int) bool {
		blocks = append(blocks, t.printNode(n, depth))
		return true
	})
	return strings.Join(blocks, "\n")
}

// String prints the whole tree.
func (t *Tree) String() string { return t.Print(RootID) }

func (t *Tree) printNode(id NodeID, depth int) string {
	n := t.Node(id)
	b := &strings.Builder{}
	b.WriteString(strings.Repeat("#", depth))
	b.WriteString(" ")
	if n.Author == "" {
		b.WriteString(NarratorName)
	} else {
		b.WriteString(escape(n.Author))
	}
	b.WriteString("\n")
	if len(n.Content) > 0 {
		b.WriteString("\n")
		for _, c := range n.Content {
			b.WriteString("- ")
			b.WriteString(escape(c.Text))
			if c.Kind == KindChoice {
				b.WriteString(" | ")
				b.WriteString(c.Condition.String())
			}
			b.WriteString("\n")
		}
	}
	if len(n.TriggerEvents) > 0 {
		b.WriteString("\n-> ")
		b.WriteString(strings.Join(n.TriggerEvents, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

var escaper = strings.NewReplacer(
	"/", "//",
	"#", "/#",
	"-", "/-",
	"|", "/|",
	">", "/>",
	"\n", "/\n",
)

func escape(s string) string { return escaper.Replace(s) }
