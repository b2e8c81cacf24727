/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders dialog trees into printable documents.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	"ftodialog/internal/storage"
	"ftodialog/internal/version"
)

// PDFOptions controls PDF export behavior. Sizes are in points.
// Zero values pick the defaults noted per field.
type PDFOptions struct {
	PageSize       string  // "A4" (default), "Letter", "A5"
	FontSize       float64 // body size, default 11
	Indent         float64 // per tree level, default 18
	ShowConditions bool    // print the condition after each choice
	ShowNodeIDs    bool    // prefix every speaker line with its node id
	Subtitle       string
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.FontSize <= 0 {
		o.FontSize = 11
	}
	if o.Indent <= 0 {
		o.Indent = 18
	}
	return o
}

// ExportDialogPDF parses a catalogued dialog and writes it as a PDF script.
// A relative outPath is placed under the project's exports folder.
func ExportDialogPDF(ph *storage.ProjectHandle, d domain.Dialog, outPath string, opt PDFOptions) (string, error) {
	if ph == nil {
		return "", errors.New("project handle is nil")
	}
	tree, _, err := storage.LoadDialog(ph, d)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, storage.ExportsDirName, outPath)
	}
	if opt.Subtitle == "" {
		opt.Subtitle = ph.Project.Name
	}
	return outPath, ExportTreePDF(tree, d.Name, outPath, opt)
}

// ExportTreePDF writes the whole tree, one speaker block per node in pre-order,
// indented by depth. Choices are numbered in the order a player would see them.
func ExportTreePDF(tree *dialog.Tree, title, outPath string, opt PDFOptions) error {
	if tree == nil {
		return errors.New("tree is nil")
	}
	opt = opt.withDefaults()

	pdf := gofpdf.New("P", "pt", opt.PageSize, "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("ftodialog "+version.Version, true)
	pdf.SetMargins(48, 56, 48)
	pdf.SetAutoPageBreak(true, 56)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-40)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, tr(title)+"  "+strconv.Itoa(pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", opt.FontSize*1.8)
	pdf.MultiCell(0, opt.FontSize*2.2, tr(title), "", "L", false)
	if opt.Subtitle != "" {
		pdf.SetFont("Helvetica", "I", opt.FontSize)
		pdf.SetTextColor(96, 96, 96)
		pdf.MultiCell(0, opt.FontSize*1.4, tr(opt.Subtitle), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(opt.FontSize)

	left, _, _, _ := pdf.GetMargins()
	line := opt.FontSize * 1.35
	tree.Walk(dialog.RootID, func(id dialog.NodeID, depth int) bool {
		n := tree.Node(id)
		x := left + float64(depth-1)*opt.Indent

		author := n.Author
		if author == "" {
			author = dialog.NarratorName
		}
		if opt.ShowNodeIDs {
			author = fmt.Sprintf("[%d] %s", id, author)
		}
		pdf.SetX(x)
		pdf.SetFont("Helvetica", "B", opt.FontSize)
		pdf.MultiCell(0, line, tr(strings.ToUpper(author)), "", "L", false)

		pdf.SetFont("Helvetica", "", opt.FontSize)
		for i, c := range n.Content {
			pdf.SetX(x + opt.Indent/2)
			txt := c.Text
			if c.IsChoice() {
				txt = fmt.Sprintf("%d. %s", i+1, txt)
				if opt.ShowConditions && !c.Condition.IsEmpty() {
					txt += "   [" + c.Condition.String() + "]"
				}
			}
			pdf.MultiCell(0, line, tr(txt), "", "L", false)
		}
		if len(n.TriggerEvents) > 0 {
			pdf.SetX(x + opt.Indent/2)
			pdf.SetFont("Helvetica", "I", opt.FontSize*0.9)
			pdf.MultiCell(0, line, tr("-> "+strings.Join(n.TriggerEvents, ", ")), "", "L", false)
		}
		if tree.IsEndNode(id) {
			pdf.SetX(x + opt.Indent/2)
			pdf.SetFont("Helvetica", "I", opt.FontSize*0.9)
			pdf.SetTextColor(128, 128, 128)
			pdf.MultiCell(0, line, "(end)", "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(line / 2)
		return true
	})

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
