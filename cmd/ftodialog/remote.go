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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"ftodialog/internal/backend"
	"ftodialog/internal/config"
	"ftodialog/internal/storage"
)

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.flags("serve")
	cfg := backend.LoadConfig()
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}
	a.log.Info("serve", slog.String("addr", cfg.Addr))
	return backend.Serve(ctx, cfg)
}

func (a *app) client() *backend.Client {
	c := backend.NewClient(a.cfg.Backend.BaseURL, a.token)
	c.SetTimeout(a.cfg.Backend.EffectiveTimeout())
	c.SetInsecureTLS(a.cfg.Backend.TLSInsecure)
	return c
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	subject := fs.String("subject", "", "name recorded as updated_by (default $USER)")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}
	if *subject == "" {
		*subject = os.Getenv("USER")
	}
	tok, err := a.client().RequestToken(ctx, *subject, *ttl)
	if err != nil {
		return err
	}
	if err := config.Save(a.cfg, tok); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	a.token = tok
	_, _ = fmt.Fprintln(a.out, "Logged in to", a.cfg.Backend.BaseURL)
	return nil
}

func runRemote(ctx context.Context, a *app, _ []string) error {
	list, err := a.client().ListDialogs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, d := range list {
		_, _ = fmt.Fprintf(tw, "%s\tv%d\t%s\t%s\n", d.Name, d.Version, d.Project, d.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runPush(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	ld, err := a.load(args[1], args[0])
	if err != nil {
		return err
	}
	rec := backend.DialogRecord{
		Name:          ld.name,
		Project:       a.ph.Project.Name,
		Source:        ld.source,
		WorldEvents:   a.ph.Project.Events.World,
		TriggerEvents: a.ph.Project.Events.Triggers,
	}
	saved, warnings, err := a.client().PutDialog(ctx, rec)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		_, _ = fmt.Fprintln(a.out, "warning:", w)
	}
	_, _ = fmt.Fprintf(a.out, "Pushed %s (version %d)\n", saved.Name, saved.Version)
	return nil
}

// runPull stores a shared dialog in the project, adding it when it is new.
func runPull(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	ph, err := a.openProject(args[0])
	if err != nil {
		return err
	}
	rec, err := a.client().GetDialog(ctx, args[1])
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%s is not on %s", args[1], a.cfg.Backend.BaseURL)
	}
	if err != nil {
		return err
	}
	if missing := missingEvents(ph.Project.Events.World, rec.WorldEvents); len(missing) > 0 {
		a.log.Warn("pulled dialog uses undeclared world events", slog.Any("events", missing))
	}

	if d, ok := ph.Project.FindDialog(rec.Name); ok {
		if err := a.replaceSource(ctx, *d, rec.Source); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Updated %s to version %d\n", d.Name, rec.Version)
	} else {
		d, err := storage.AddDialog(ph, rec.Name, rec.Source)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Added %s (version %d) as %s\n", d.Name, rec.Version, d.File)
	}
	if _, err := storage.UpdateIndex(ctx, ph.Root, ph.Project); err != nil {
		a.log.Warn("index update failed", slog.Any("err", err))
	}
	return nil
}

func missingEvents(have, want []string) []string {
	known := make(map[string]bool, len(have))
	for _, e := range have {
		known[e] = true
	}
	var out []string
	for _, e := range want {
		if !known[e] {
			out = append(out, e)
		}
	}
	return out
}
