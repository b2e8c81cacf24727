/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func TestDialogSnapshotsSaveListPrune(t *testing.T) {
	ph, d := newFrogProject(t)
	ctx := context.Background()

	latest, err := GetLatestDialogSnapshot(ctx, ph, d.ID)
	if err != nil || latest.Source != "" {
		t.Fatalf("expected no snapshot yet: %+v %v", latest, err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, src := range []string{"# A\n", "# B\n", "# C\n"} {
		if err := SaveDialogSnapshot(ctx, ph, d.ID, src, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveDialogSnapshot: %v", err)
		}
	}
	if err := SaveDialogSnapshot(ctx, ph, "other", "# Z\n", base); err != nil {
		t.Fatalf("SaveDialogSnapshot other: %v", err)
	}

	latest, err = GetLatestDialogSnapshot(ctx, ph, d.ID)
	if err != nil {
		t.Fatalf("GetLatestDialogSnapshot: %v", err)
	}
	if latest.Source != "# C\n" || !latest.TS.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("latest = %+v", latest)
	}

	n, err := PruneDialogSnapshots(ctx, ph, d.ID, 1)
	if err != nil || n != 2 {
		t.Fatalf("prune removed %d, %v", n, err)
	}
	list, err := ListDialogSnapshots(ctx, ph, d.ID, 0)
	if err != nil || len(list) != 1 || list[0].Source != "# C\n" {
		t.Fatalf("after prune: %+v %v", list, err)
	}
	other, err := ListDialogSnapshots(ctx, ph, "other", 0)
	if err != nil || len(other) != 1 {
		t.Fatalf("prune touched other dialog: %+v %v", other, err)
	}
}
