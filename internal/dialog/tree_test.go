/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import (
	"errors"
	"testing"
)

func TestTreeNavigation(t *testing.T) {
	tree := mustParse(t, "# Morgan\n\n- Talk | None\n- Friends | e: HasFriend;\n\n## Hugo\n\n- :)\n\n## Hugo\n\n- :(\n")
	if tree.IsEndNode(RootID) {
		t.Fatalf("root has children")
	}
	if !tree.Root().IsChoice() || tree.Root().IsText() {
		t.Fatalf("root should be a choice node")
	}
	if _, err := tree.Child(RootID, 2); !errors.Is(err, ErrNoSuchChild) {
		t.Fatalf("expected ErrNoSuchChild, got %v", err)
	}
	if _, ok := tree.Parent(RootID); ok {
		t.Fatalf("root has no parent")
	}
	leaf, _ := tree.Child(RootID, 1)
	if p, ok := tree.Parent(leaf); !ok || p != RootID || !tree.IsEndNode(leaf) {
		t.Fatalf("unexpected leaf")
	}
	tree.Node(leaf).Content[0].Text = ":D"
	if tree.Node(leaf).Content[0].Text != ":D" {
		t.Fatalf("node content should be mutable in place")
	}
}

func TestAtLeastOneChildIsVerified(t *testing.T) {
	tree := NewTree()
	tree.Root().Content = []Content{Text("Well?")}
	tree.AddChild(RootID, Node{Content: []Content{Choice("a", events("HasFriend")), Choice("b", karma(50, 100))}})

	if tree.AtLeastOneChildIsVerified(RootID, intp(0), NewEventSet()) {
		t.Fatalf("no choice should be reachable")
	}
	if !tree.AtLeastOneChildIsVerified(RootID, intp(75), nil) {
		t.Fatalf("karma choice should be reachable")
	}
	tree.AddChild(RootID, Node{Content: []Content{Text("fallback")}})
	if !tree.AtLeastOneChildIsVerified(RootID, nil, nil) {
		t.Fatalf("a text child is always reachable")
	}
}

func TestSubtreeIsACopy(t *testing.T) {
	tree := mustParse(t, "# A\n\n- a\n\n## B\n\n- b\n\n### C\n\n- c\n")
	b, _ := tree.Child(RootID, 0)
	sub := tree.Subtree(b)
	if sub.Len() != 2 || sub.Root().Author != "B" {
		t.Fatalf("unexpected subtree: %d nodes", sub.Len())
	}
	sub.Root().Content[0] = Text("changed")
	if tree.Node(b).Content[0].Text != "b" {
		t.Fatalf("subtree must not alias the source tree")
	}
}

func TestValidateMixedContent(t *testing.T) {
	tree := NewTree()
	tree.Root().Content = []Content{Text("a"), Choice("b", nil)}
	var pe *Error
	if err := tree.Validate(); !errors.As(err, &pe) || pe.Kind != Structure {
		t.Fatalf("expected structure error, got %v", err)
	}
	if err := mustParse(t, "# A\n\n- a\n- b\n").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
