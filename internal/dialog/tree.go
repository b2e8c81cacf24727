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
	"fmt"
)

// NodeID indexes a node inside its Tree. The root is always RootID.
type NodeID int

const (
	RootID NodeID = 0
	// NoNode is returned as parent of the root.
	NoNode NodeID = -1
)

// NarratorName is printed for nodes without author.
const NarratorName = "Narrator"

// Node is one speaker turn: either a sequence of text lines or a list of choices,
// plus the trigger events fired when the dialog leaves it.
type Node struct {
	Author        string // empty = narrator
	Content       []Content
	TriggerEvents []string

	parent   NodeID
	children []NodeID
}

// IsChoice reports whether the node offers choices. An empty node is neither choice nor text.
func (n *Node) IsChoice() bool { return len(n.Content) > 0 && n.Content[0].Kind == KindChoice }

// IsText reports whether the node holds text lines.
func (n *Node) IsText() bool { return len(n.Content) > 0 && n.Content[0].Kind == KindText }

// Tree is an arena of nodes with parent/children relations held as ids.
// Pointers returned by Node stay valid until the next AddChild.
type Tree struct {
	nodes []Node
}

// ErrNoSuchChild is returned when a child index is out of range.
var ErrNoSuchChild = errors.New("dialog: no such child")

// NewTree creates a tree holding a single, empty root.
func NewTree() *Tree {
	return &Tree{nodes: []Node{{parent: NoNode}}}
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[RootID] }

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Children returns the ordered child ids of id. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.children
	}
	return nil
}

// Child returns the i-th child of id.
func (t *Tree) Child(id NodeID, i int) (NodeID, error) {
	ch := t.Children(id)
	if i < 0 || i >= len(ch) {
		return NoNode, fmt.Errorf("%w: index %d of %d", ErrNoSuchChild, i, len(ch))
	}
	return ch[i], nil
}

// Parent returns the parent of id; ok is false for the root.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	n := t.Node(id)
	if n == nil || n.parent == NoNode {
		return NoNode, false
	}
	return n.parent, true
}

// AddChild appends n as last child of parent and returns its id.
func (t *Tree) AddChild(parent NodeID, n Node) NodeID {
	if t.Node(parent) == nil {
		panic(fmt.Sprintf("dialog: AddChild on unknown node %d", parent))
	}
	id := NodeID(len(t.nodes))
	n.parent = parent
	n.children = nil
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id
}

// IsEndNode reports whether id has no children.
func (t *Tree) IsEndNode(id NodeID) bool { return len(t.Children(id)) == 0 }

// AtLeastOneChildIsVerified reports whether some child of id can be entered: a choice child
// needs one selectable choice, any other child always counts.
func (t *Tree) AtLeastOneChildIsVerified(id NodeID, karma *int, active EventSet) bool {
	for _, c := range t.Children(id) {
		n := t.Node(c)
		if !n.IsChoice() {
			return true
		}
		for _, item := range n.Content {
			if item.IsSelectable(karma, active) {
				return true
			}
		}
	}
	return false
}

// Subtree copies the subtree rooted at id into a new tree.
func (t *Tree) Subtree(id NodeID) *Tree {
	out := NewTree()
	src := t.Node(id)
	root := out.Root()
	root.Author = src.Author
	root.Content = append([]Content(nil), src.Content...)
	root.TriggerEvents = append([]string(nil), src.TriggerEvents...)
	var copyChildren func(from NodeID, to NodeID)
	copyChildren = func(from, to NodeID) {
		for _, c := range t.Children(from) {
			n := t.nodes[c]
			nid := out.AddChild(to, Node{
				Author:        n.Author,
				Content:       append([]Content(nil), n.Content...),
				TriggerEvents: append([]string(nil), n.TriggerEvents...),
			})
			copyChildren(c, nid)
		}
	}
	copyChildren(id, RootID)
	return out
}

// Walk visits id and its descendants in pre-order. Returning false stops descending into a node.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	var visit func(NodeID, int)
	visit = func(n NodeID, d int) {
		if !fn(n, d) {
			return
		}
		for _, c := range t.Children(n) {
			visit(c, d+1)
		}
	}
	visit(id, 1)
}

// Equal compares shape and node payloads of two trees.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Len() != o.Len() {
		return false
	}
	var eq func(a, b NodeID) bool
	eq = func(a, b NodeID) bool {
		na, nb := t.Node(a), o.Node(b)
		if na.Author != nb.Author || len(na.Content) != len(nb.Content) || len(na.children) != len(nb.children) {
			return false
		}
		for i := range na.Content {
			if !na.Content[i].Equal(nb.Content[i]) {
				return false
			}
		}
		if !NewEventSet(na.TriggerEvents...).Equal(NewEventSet(nb.TriggerEvents...)) {
			return false
		}
		for i := range na.children {
			if !eq(na.children[i], nb.children[i]) {
				return false
			}
		}
		return true
	}
	return eq(RootID, RootID)
}

// Validate checks that no node mixes text and choice lines.
func (t *Tree) Validate() error {
	for i := range t.nodes {
		n := &t.nodes[i]
		for j := 1; j < len(n.Content); j++ {
			if !n.Content[j].SameKind(n.Content[0]) {
				return &Error{Kind: Structure, Message: fmt.Sprintf("node %d mixes %s and %s lines", i, n.Content[0].Kind, n.Content[j].Kind)}
			}
		}
	}
	return nil
}
