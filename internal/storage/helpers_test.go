/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"testing"

	"ftodialog/internal/domain"
)

const frogSource = "# Frog\n\n- Hello\n- I am a frog\n\n## Player\n\n- Nice frog | None\n- Ugly frog | k: MIN,0;\n- I love you | e: FrogLove;\n\n### Frog\n\n- Thanks\n\n-> FrogTalk\n\n### Frog\n\n- Rude\n\n-> FrogHate\n\n### Frog\n\n- Me too\n"

func frogProject(name string) domain.Project {
	return domain.Project{
		Name: name,
		Events: domain.Events{
			World:    []string{"FrogLove", "FrogHate", "FrogTalk"},
			Triggers: []string{"FrogTalk", "FrogHate"},
		},
	}
}

// newFrogProject creates a project in a temp dir holding the frog dialog.
func newFrogProject(t *testing.T) (*ProjectHandle, domain.Dialog) {
	t.Helper()
	ph, err := InitProject(t.TempDir(), frogProject("Frog Pond"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	d, err := AddDialog(ph, "Frog", frogSource)
	if err != nil {
		t.Fatalf("AddDialog error: %v", err)
	}
	return ph, d
}
