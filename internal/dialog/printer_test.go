/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import "testing"

func TestPrintBuiltTree(t *testing.T) {
	tree := NewTree()
	root := tree.Root()
	root.Author = "Fabien"
	root.Content = []Content{Text("Hello")}
	answers := tree.AddChild(RootID, Node{
		Author:  "Morgan",
		Content: []Content{Choice("Hey", nil), Choice("No Hello", nil), Choice("Want to share a flat ?", nil)},
	})
	for _, s := range []string{":)", ":O", "Sure"} {
		tree.AddChild(answers, Node{Author: "Fabien", Content: []Content{Text(s)}})
	}

	want := "# Fabien\n\n- Hello\n\n## Morgan\n\n- Hey | None\n- No Hello | None\n- Want to share a flat ? | None\n\n### Fabien\n\n- :)\n\n### Fabien\n\n- :O\n\n### Fabien\n\n- Sure\n"
	if got := tree.Print(RootID); got != want {
		t.Fatalf("unexpected print:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintMonologueIsIdentity(t *testing.T) {
	src := "# Olf\n\n- Hello\n- Did you just\n- Call me ?\n- Or was it my imagination\n"
	if got := mustParse(t, src).String(); got != src {
		t.Fatalf("expected identity, got %q", got)
	}
}

func TestPrintConditionsAndTriggers(t *testing.T) {
	tree := NewTree()
	root := tree.Root()
	root.Author = "Morgan"
	root.Content = []Content{
		Choice("Hi", karma(-10, 0)),
		Choice("Friends?", &Condition{KarmaThreshold: &KarmaRange{Min: 1, Max: 2}, Events: []string{"HasFriend", "FirstKill"}}),
	}
	root.TriggerEvents = []string{"FightEvent", "HasFriend"}

	want := "# Morgan\n\n- Hi | karma: -10,0;\n- Friends? | karma: 1,2; event: HasFriend,FirstKill;\n\n-> FightEvent, HasFriend\n"
	if got := tree.String(); got != want {
		t.Fatalf("unexpected print:\n%q\nwant:\n%q", got, want)
	}
}

func TestPrintSubtreeStartsAtDepthOne(t *testing.T) {
	tree := mustParse(t, "# A\n\n- a\n\n## B\n\n- b\n\n### C\n\n- c\n")
	b, _ := tree.Child(RootID, 0)
	want := "# B\n\n- b\n\n## C\n\n- c\n"
	if got := tree.Print(b); got != want {
		t.Fatalf("unexpected subtree print: %q", got)
	}
}

func TestPrintNarrator(t *testing.T) {
	tree := NewTree()
	tree.Root().Content = []Content{Text("It was a dark night")}
	if got := tree.String(); got != "# Narrator\n\n- It was a dark night\n" {
		t.Fatalf("unexpected narrator print: %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	sources := []string{
		"# Fabien\n\n- Hello\n\n## Fabien\n\n- /<3\n\n### Morgan\n\n- Hey | None\n- No Hello | None\n- Want to share a flat ? | None\n\n#### Fabien\n\n- :)\n\n#### Fabien\n\n- :O\n\n#### Fabien\n\n- Sure\n",
		"# Morgan\n\n- Let's Talk | k: MIN,10;\n- Let's Fight | e: HasFriend, FirstKill; k: 3,1;\n\n## Hugo\n\n- :)\n\n-> HasFriend\n\n## Hugo\n\n- :(\n\n-> FightEvent\n",
		"# Jean/-Paul\n\n- a /# b /| c /> d // e /- f\n- second /\nline\n",
	}
	for _, src := range sources {
		first := mustParse(t, src)
		printed := first.String()
		second := mustParse(t, printed)
		if !first.Equal(second) {
			t.Fatalf("round trip changed the tree:\n%s\n---\n%s", src, printed)
		}
		if again := second.String(); again != printed {
			t.Fatalf("printing is not stable:\n%q\n%q", printed, again)
		}
	}
}
