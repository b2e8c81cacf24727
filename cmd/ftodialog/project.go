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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"ftodialog/internal/domain"
	"ftodialog/internal/storage"
)

// snapshotsKept bounds the source history per dialog.
const snapshotsKept = 20

func runInit(_ context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	a.log.Info("init project", slog.String("root", abs), slog.String("name", args[1]))
	p := domain.Project{
		Name: args[1],
		Events: domain.Events{
			World:    append([]string(nil), a.cfg.Dialog.WorldEvents...),
			Triggers: append([]string(nil), a.cfg.Dialog.TriggerEvents...),
			KarmaMin: a.cfg.Dialog.KarmaMin,
			KarmaMax: a.cfg.Dialog.KarmaMax,
		},
		Dialogs: []domain.Dialog{},
	}
	ph, err := storage.InitProject(abs, p)
	if err != nil {
		return err
	}
	a.ph = ph
	_, _ = fmt.Fprintln(a.out, "Created project at", abs)
	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	ph, err := a.openProject(args[0])
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[2])
	if err != nil {
		return err
	}
	d, err := storage.AddDialog(ph, args[1], string(src))
	if err != nil {
		return err
	}
	if err := storage.SaveDialogSnapshot(ctx, ph, d.ID, string(src), time.Now()); err != nil {
		a.log.Warn("snapshot failed", slog.String("dialog", d.ID), slog.Any("err", err))
	}
	if _, err := storage.UpdateIndex(ctx, ph.Root, ph.Project); err != nil {
		a.log.Warn("index update failed", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(a.out, "Added %s as %s (%s)\n", d.Name, d.File, d.ID)
	return nil
}

// replaceSource writes a new source for an existing dialog, keeping the old one as a snapshot.
func (a *app) replaceSource(ctx context.Context, d domain.Dialog, source string) error {
	if old, err := storage.ReadDialog(a.ph, d); err == nil && old != source {
		if err := storage.SaveDialogSnapshot(ctx, a.ph, d.ID, old, time.Now()); err != nil {
			a.log.Warn("snapshot failed", slog.String("dialog", d.ID), slog.Any("err", err))
		} else if _, err := storage.PruneDialogSnapshots(ctx, a.ph, d.ID, snapshotsKept); err != nil {
			a.log.Warn("snapshot prune failed", slog.String("dialog", d.ID), slog.Any("err", err))
		}
	}
	return storage.WriteDialog(a.ph, d, source)
}

func runIndex(ctx context.Context, a *app, args []string) error {
	fs := a.flags("index")
	rebuild := fs.Bool("rebuild", false, "drop and rebuild the line index")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errUsage
	}
	ph, err := a.openProject(pos[0])
	if err != nil {
		return err
	}
	if *rebuild {
		if err := storage.RebuildIndex(ctx, ph.Root, ph.Project); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, "Index rebuilt")
		return nil
	}
	if rebuilt, err := storage.DetectAndRebuildIndex(ctx, ph.Root, ph.Project); err != nil {
		return err
	} else if rebuilt {
		_, _ = fmt.Fprintln(a.out, "Index was damaged and has been rebuilt")
	}
	failed, err := storage.UpdateIndex(ctx, ph.Root, ph.Project)
	if err != nil {
		return err
	}
	for id, perr := range failed {
		_, _ = fmt.Fprintf(a.out, "skipped %s: %v\n", id, perr)
	}
	_, _ = fmt.Fprintf(a.out, "Indexed %d dialogs\n", len(ph.Project.Dialogs)-len(failed))
	return nil
}

func runSearch(ctx context.Context, a *app, args []string) error {
	fs := a.flags("search")
	author := fs.String("author", "", "only lines by this author")
	dlg := fs.String("dialog", "", "only this dialog (id or name)")
	kind := fs.String("kind", "", "text or choice")
	limit := fs.Int("limit", 50, "maximum results")
	event := fs.String("event", "", "list choices whose condition mentions this event")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 1 {
		return errUsage
	}
	ph, err := a.openProject(pos[0])
	if err != nil {
		return err
	}
	if err := storage.BuildIndexIfEmpty(ctx, ph.Root, ph.Project); err != nil {
		return err
	}

	var res []storage.SearchResult
	if *event != "" {
		res, err = storage.EventUsage(ctx, ph.Root, *event, *limit)
	} else {
		q := storage.SearchQuery{Text: strings.Join(pos[1:], " "), Dialog: *dlg, Author: *author, Limit: *limit}
		if *kind != "" {
			q.Kinds = []string{*kind}
		}
		res, err = storage.Search(ctx, ph.Root, q)
	}
	if err != nil {
		return err
	}
	printResults(a, res)
	return nil
}

func printResults(a *app, res []storage.SearchResult) {
	if len(res) == 0 {
		_, _ = fmt.Fprintln(a.out, "No matches")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range res {
		text := r.Text
		if r.Snippet != "" {
			text = r.Snippet
		}
		if r.Condition != "" {
			text += "  | " + r.Condition
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d:%d\t%s\t%s\n", r.DialogName, r.NodeID, r.LineNo, r.Author, text)
	}
	_ = tw.Flush()
}

func runSaves(ctx context.Context, a *app, args []string) error {
	fs := a.flags("saves")
	del := fs.String("delete", "", "slot to delete")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errUsage
	}
	ph, err := a.openProject(pos[0])
	if err != nil {
		return err
	}
	if *del != "" {
		if err := storage.DeleteSave(ctx, ph, *del); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, "Deleted", *del)
		return nil
	}
	saves, err := storage.ListSaves(ctx, ph)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range saves {
		state := "playing"
		if s.Finished {
			state = "finished"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Slot, s.Dialog, state, s.Updated.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := a.flags("history")
	restore := fs.Bool("restore", false, "write the latest snapshot back as the dialog source")
	limit := fs.Int("limit", 10, "snapshots to list")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return errUsage
	}
	ph, err := a.openProject(pos[0])
	if err != nil {
		return err
	}
	d, ok := ph.Project.FindDialog(pos[1])
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrDialogNotFound, pos[1])
	}
	if *restore {
		snap, err := storage.GetLatestDialogSnapshot(ctx, ph, d.ID)
		if err != nil {
			return err
		}
		if snap.TS.IsZero() {
			return fmt.Errorf("no snapshots of %s", d.Name)
		}
		if err := a.replaceSource(ctx, *d, snap.Source); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Restored %s from %s\n", d.Name, snap.TS.Local().Format(time.DateTime))
		return nil
	}
	snaps, err := storage.ListDialogSnapshots(ctx, ph, d.ID, *limit)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		_, _ = fmt.Fprintf(a.out, "%s  %d bytes\n", s.TS.Local().Format(time.DateTime), len(s.Source))
	}
	return nil
}
