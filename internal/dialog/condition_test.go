/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

import "testing"

func intp(v int) *int { return &v }

func TestConditionIsVerified(t *testing.T) {
	active := NewEventSet("HasFriend", "FirstKill")
	cases := []struct {
		name   string
		cond   *Condition
		karma  *int
		events EventSet
		want   bool
	}{
		{"nil condition", nil, nil, nil, true},
		{"empty condition", &Condition{}, nil, nil, true},
		{"empty event list", &Condition{Events: []string{}}, nil, nil, true},
		{"karma in range", karma(-10, 0), intp(-10), nil, true},
		{"karma upper bound", karma(-10, 0), intp(0), nil, true},
		{"karma out of range", karma(-10, 0), intp(1), nil, false},
		{"karma required but unknown", karma(-10, 0), nil, active, false},
		{"events subset", events("HasFriend"), nil, active, true},
		{"events missing one", events("HasFriend", "AreaCleared"), nil, active, false},
		{"events required but unknown", events("HasFriend"), intp(0), nil, false},
		{"unconstrained events with active set", karma(0, 5), intp(3), active, true},
		{"both axes", &Condition{KarmaThreshold: &KarmaRange{Min: 0, Max: 5}, Events: []string{"FirstKill"}}, intp(5), active, true},
		{"both axes karma fails", &Condition{KarmaThreshold: &KarmaRange{Min: 0, Max: 5}, Events: []string{"FirstKill"}}, intp(6), active, false},
	}
	for _, c := range cases {
		if got := c.cond.IsVerified(c.karma, c.events); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestContentSelectable(t *testing.T) {
	if !Text("x").IsSelectable(nil, nil) {
		t.Fatalf("text must always be selectable")
	}
	if !Choice("x", nil).IsSelectable(nil, nil) {
		t.Fatalf("unconditioned choice must be selectable")
	}
	if Choice("x", events("HasFriend")).IsSelectable(nil, NewEventSet()) {
		t.Fatalf("choice with unmet event must not be selectable")
	}
	if Text("x").SameKind(Choice("x", nil)) || !Choice("a", nil).SameKind(Choice("b", karma(1, 2))) {
		t.Fatalf("SameKind must compare only the variant")
	}
}

func TestCustomInfosLimits(t *testing.T) {
	if (CustomInfos{}).Limits() != DefaultKarmaLimits {
		t.Fatalf("expected default limits")
	}
	c := CustomInfos{KarmaLimits: &KarmaRange{Min: 50, Max: -50}}
	if got := c.Limits(); got.Min != -50 || got.Max != 50 {
		t.Fatalf("expected ordered limits, got %+v", got)
	}
}

func TestEmptyEventListIsUnconstrained(t *testing.T) {
	c := &Condition{Events: []string{}}
	if !c.IsEmpty() || c.String() != "None" {
		t.Fatalf("expected an empty condition, got %q", c.String())
	}
	if !c.Equal(nil) {
		t.Fatalf("empty event list should equal no condition")
	}
	back := mustParse(t, "# A\n\n- Go | "+c.String()+"\n")
	if got := back.Root().Content[0].Condition; !got.Equal(c) || !got.IsVerified(nil, nil) {
		t.Fatalf("round trip changed the condition: %v", got)
	}
}
