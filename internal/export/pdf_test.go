/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	"ftodialog/internal/storage"
)

const guardSource = "# Guard\n\n- Halt!\n- Who goes there?\n\n## Player\n\n- A friend | e: HasFriend;\n- Nobody | k: MIN,0;\n\n### Guard\n\n- Pass, friend.\n\n-> OpenGate\n\n### Guard\n\n- Then leave.\n"

func TestExportTreePDFCreatesFile(t *testing.T) {
	tree, err := dialog.Parse(guardSource, dialog.CustomInfos{
		WorldEvents:   []string{"HasFriend"},
		TriggerEvents: []string{"OpenGate"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := filepath.Join(t.TempDir(), "nested", "guard.pdf")
	if err := ExportTreePDF(tree, "Gate Guard", out, PDFOptions{ShowConditions: true, ShowNodeIDs: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}

func TestExportDialogPDFUsesExportsFolder(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitProject(root, domain.Project{
		Name:   "Gate",
		Events: domain.Events{World: []string{"HasFriend"}, Triggers: []string{"OpenGate"}},
	})
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	d, err := storage.AddDialog(ph, "Guard", guardSource)
	if err != nil {
		t.Fatalf("add dialog: %v", err)
	}
	path, err := ExportDialogPDF(ph, d, "guard.pdf", PDFOptions{PageSize: "Letter"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if path != filepath.Join(root, storage.ExportsDirName, "guard.pdf") {
		t.Fatalf("unexpected path %s", path)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("pdf missing or empty: %v", err)
	}
}

func TestExportTreePDFRejectsNilTree(t *testing.T) {
	if err := ExportTreePDF(nil, "x", filepath.Join(t.TempDir(), "x.pdf"), PDFOptions{}); err == nil {
		t.Fatalf("expected error for nil tree")
	}
}
