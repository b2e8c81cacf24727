/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ftodialog/internal/dialog"
	"ftodialog/internal/domain"
	"ftodialog/internal/export"
	"ftodialog/internal/statemap"
	"ftodialog/internal/storage"
)

// loaded is a dialog source plus the event configuration it is checked against.
type loaded struct {
	name   string
	source string
	infos  dialog.CustomInfos
	entry  *domain.Dialog // nil for loose files
}

// parseInterleaved lets flags appear after positional arguments, which the flag package
// does not do on its own.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errUsage
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) openProject(dir string) (*storage.ProjectHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	a.ph = ph
	return ph, nil
}

// load resolves key as a dialog of the project in dir, or as a file path when dir is empty.
func (a *app) load(key, dir string) (loaded, error) {
	if dir == "" {
		b, err := os.ReadFile(key)
		if err != nil {
			return loaded{}, err
		}
		name := strings.TrimSuffix(filepath.Base(key), filepath.Ext(key))
		return loaded{name: name, source: string(b), infos: a.cfg.Dialog.CustomInfos()}, nil
	}
	ph, err := a.openProject(dir)
	if err != nil {
		return loaded{}, err
	}
	d, ok := ph.Project.FindDialog(key)
	if !ok {
		return loaded{}, fmt.Errorf("%w: %s", storage.ErrDialogNotFound, key)
	}
	src, err := storage.ReadDialog(ph, *d)
	if err != nil {
		return loaded{}, err
	}
	return loaded{name: d.Name, source: src, infos: ph.Project.Events.CustomInfos(), entry: d}, nil
}

func runCheck(_ context.Context, a *app, args []string) error {
	fs := a.flags("check")
	dir := fs.String("project", "", "project directory")
	strict := fs.Bool("strict", false, "treat warnings as errors")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	var keys []string
	switch {
	case len(pos) == 1:
		keys = pos
	case len(pos) == 0 && *dir != "":
		ph, err := a.openProject(*dir)
		if err != nil {
			return err
		}
		for _, d := range ph.Project.Dialogs {
			keys = append(keys, d.ID)
		}
	default:
		return errUsage
	}

	failed := 0
	for _, key := range keys {
		ld, err := a.load(key, *dir)
		if err != nil {
			return err
		}
		if !a.report(ld, *strict) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dialogs failed", failed, len(keys))
	}
	return nil
}

// report prints the diagnostics of one dialog and reports whether it passed.
func (a *app) report(ld loaded, strict bool) bool {
	tree, warnings, err := dialog.ParseDetailed(ld.source, ld.infos)
	for _, w := range warnings {
		_, _ = fmt.Fprintf(a.out, "%s: warning: %s\n", ld.name, strings.TrimPrefix(w.Error(), "dialog:"))
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.out, "%s: error: %s\n", ld.name, strings.TrimPrefix(err.Error(), "dialog:"))
		return false
	}
	_, _ = fmt.Fprintf(a.out, "%s: ok (%d nodes, %d warnings)\n", ld.name, tree.Len(), len(warnings))
	return !strict || len(warnings) == 0
}

func runPrint(_ context.Context, a *app, args []string) error {
	fs := a.flags("print")
	dir := fs.String("project", "", "project directory")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errUsage
	}
	ld, err := a.load(pos[0], *dir)
	if err != nil {
		return err
	}
	tree, err := dialog.Parse(ld.source, ld.infos)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(a.out, tree.String())
	return err
}

func runYAML(_ context.Context, a *app, args []string) error {
	fs := a.flags("yaml")
	dir := fs.String("project", "", "project directory")
	decode := fs.Bool("decode", false, "read a state map and print dialog source")
	start := fs.Int("start", 1, "first state when decoding")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errUsage
	}
	if *decode {
		data, err := os.ReadFile(pos[0])
		if err != nil {
			return err
		}
		m, err := statemap.Decode(data)
		if err != nil {
			return err
		}
		tree, err := statemap.ToTree(m, *start)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(a.out, tree.String())
		return err
	}
	ld, err := a.load(pos[0], *dir)
	if err != nil {
		return err
	}
	tree, err := dialog.Parse(ld.source, ld.infos)
	if err != nil {
		return err
	}
	m, err := statemap.FromTree(tree)
	if err != nil {
		return err
	}
	out, err := statemap.Encode(m)
	if err != nil {
		return err
	}
	_, err = a.out.Write(out)
	return err
}

func runPDF(_ context.Context, a *app, args []string) error {
	fs := a.flags("pdf")
	dir := fs.String("project", "", "project directory")
	conds := fs.Bool("conditions", true, "print choice conditions")
	ids := fs.Bool("ids", false, "print node ids")
	page := fs.String("page", "A4", "page size (A4, A5, Letter)")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 1 || len(pos) > 2 || (len(pos) == 1 && *dir == "") {
		return errUsage
	}
	out := ""
	if len(pos) == 2 {
		out = pos[1]
	}
	opt := export.PDFOptions{PageSize: *page, ShowConditions: *conds, ShowNodeIDs: *ids}
	ld, err := a.load(pos[0], *dir)
	if err != nil {
		return err
	}
	if ld.entry != nil {
		if out == "" {
			out = strings.TrimSuffix(ld.entry.File, filepath.Ext(ld.entry.File)) + ".pdf"
		}
		path, err := export.ExportDialogPDF(a.ph, *ld.entry, out, opt)
		if err != nil {
			return err
		}
		a.log.Info("pdf exported", slog.String("dialog", ld.name), slog.String("path", path))
		_, _ = fmt.Fprintln(a.out, "Wrote", path)
		return nil
	}
	tree, err := dialog.Parse(ld.source, ld.infos)
	if err != nil {
		return err
	}
	if err := export.ExportTreePDF(tree, ld.name, out, opt); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Wrote", out)
	return nil
}
