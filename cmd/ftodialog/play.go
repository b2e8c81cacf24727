/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"ftodialog/internal/dialog"
	"ftodialog/internal/session"
	"ftodialog/internal/storage"
	"ftodialog/internal/undo"
)

const playHelp = "enter: continue  <n>: choose  b: back  f: forward  r: reset  s [slot]: save  q: quit"

func runPlay(ctx context.Context, a *app, args []string) error {
	fs := a.flags("play")
	dir := fs.String("project", "", "project directory")
	karma := fs.Int("karma", 0, "starting karma")
	seed := fs.Int64("seed", 0, "seed for non-player choices (0: time based)")
	slot := fs.String("slot", "", "save slot (needs -project)")
	resume := fs.Bool("resume", false, "continue from -slot")
	auto := fs.Bool("auto", false, "let every choice be made automatically")
	player := fs.String("player", "", "author whose choices are asked for (default from config)")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	karmaSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "karma" {
			karmaSet = true
		}
	})
	if (*slot != "" || *resume) && *dir == "" {
		return errors.New("save slots need -project")
	}
	if *resume && *slot == "" {
		return errUsage
	}

	opts := []session.Option{session.WithHistory(undo.NewManager(undo.Config{}))}
	who := a.cfg.Dialog.Player
	if *player != "" {
		who = *player
	}
	if !*auto {
		opts = append(opts, session.WithPlayer(who))
	}

	var s *session.Session
	if *resume {
		if _, err := a.openProject(*dir); err != nil {
			return err
		}
		st, err := storage.LoadSession(ctx, a.ph, *slot)
		if err != nil {
			return err
		}
		s, err = session.Resume(st, a.ph.Project.Events.CustomInfos(), opts...)
		if err != nil {
			return err
		}
	} else {
		if len(pos) != 1 {
			return errUsage
		}
		ld, err := a.load(pos[0], *dir)
		if err != nil {
			return err
		}
		var w *session.World
		if karmaSet {
			w = session.NewWorld(*karma)
		}
		s, err = session.New(ld.name, ld.source, ld.infos, w, opts...)
		if err != nil {
			return err
		}
	}
	a.sess = s

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	p := &terminal{app: a, s: s, rng: rand.New(rand.NewSource(*seed)), slot: *slot, auto: *auto, in: bufio.NewScanner(a.in)}
	a.log.Info("play", slog.String("dialog", s.Name), slog.String("session", s.ID), slog.Int64("seed", *seed))
	err = p.loop(ctx)
	if p.slot != "" && a.ph != nil {
		if serr := storage.SaveSession(ctx, a.ph, p.slot, s.State()); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// terminal runs the interactive loop of one session.
type terminal struct {
	app  *app
	s    *session.Session
	rng  *rand.Rand
	slot string
	auto bool
	in   *bufio.Scanner
}

func (p *terminal) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.app.out, format, args...)
}

func speaker(author string) string {
	if author == "" {
		return dialog.NarratorName
	}
	return author
}

// loop returns nil when the dialog ends or the player quits.
func (p *terminal) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.s.Finished() {
			p.printf("(end)\n")
			return nil
		}
		tree, err := p.s.Node()
		if err != nil {
			return err
		}
		who := speaker(p.s.Author())

		if tree.Root().IsChoice() && !p.s.PlayerTurn() {
			i, st, err := p.s.AutoChoose(p.rng)
			if errors.Is(err, session.ErrNoChoice) {
				p.printf("%s has nothing to say.\n", who)
				return nil
			}
			if err != nil {
				return err
			}
			p.printf("%s: %s\n", who, tree.Root().Content[i].Text)
			p.announce(st)
			continue
		}

		if tree.Root().IsChoice() {
			for _, c := range p.s.Choices() {
				mark := " "
				if !c.Enabled {
					mark = "x"
				}
				p.printf("  %s%d) %s\n", mark, c.Index+1, c.Text)
			}
			p.printf("%s> ", who)
		} else {
			p.printf("%s: %s\n", who, p.s.Line())
			if p.s.Stuck() {
				p.printf("(no way forward)\n")
				return nil
			}
			if p.auto {
				st, err := p.s.Continue()
				if err != nil {
					return err
				}
				p.announce(st)
				continue
			}
		}

		if !p.in.Scan() {
			return p.in.Err()
		}
		done, err := p.handle(ctx, strings.TrimSpace(p.in.Text()), tree.Root().IsChoice())
		if err != nil || done {
			return err
		}
	}
}

// handle executes one line of input. It reports done when the player quits.
func (p *terminal) handle(ctx context.Context, line string, choice bool) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "q", "quit":
		return true, nil
	case "?", "h", "help":
		p.printf("%s\n", playHelp)
	case "b", "back":
		if err := p.s.Back(); err != nil {
			p.printf("(nothing to go back to)\n")
		}
	case "f", "forward":
		if err := p.s.Forward(); err != nil {
			p.printf("(nothing to redo)\n")
		}
	case "r", "reset":
		p.s.Reset()
	case "s", "save":
		p.save(ctx, strings.TrimSpace(arg))
	case "":
		if choice {
			p.printf("(pick a number, ? for help)\n")
			return false, nil
		}
		st, err := p.s.Continue()
		if err != nil {
			return false, err
		}
		p.announce(st)
	default:
		n, err := strconv.Atoi(cmd)
		if err != nil || !choice {
			p.printf("(unknown input %q, ? for help)\n", line)
			return false, nil
		}
		st, err := p.s.Dive(n - 1)
		switch {
		case errors.Is(err, session.ErrChoiceLocked):
			p.printf("(that choice is not available)\n")
		case errors.Is(err, session.ErrNoSuchChoice):
			p.printf("(no choice %d)\n", n)
		case err != nil:
			return false, err
		default:
			p.announce(st)
		}
	}
	return false, nil
}

func (p *terminal) announce(st session.Step) {
	if len(st.Activated) > 0 {
		p.printf("  [%s]\n", strings.Join(st.Activated, ", "))
	}
}

func (p *terminal) save(ctx context.Context, slot string) {
	if slot == "" {
		slot = p.slot
	}
	if slot == "" {
		slot = p.s.Name
	}
	if p.app.ph == nil {
		p.printf("(saving needs -project)\n")
		return
	}
	if err := storage.SaveSession(ctx, p.app.ph, slot, p.s.State()); err != nil {
		p.app.log.Error("save failed", slog.String("slot", slot), slog.Any("err", err))
		p.printf("(save failed: %v)\n", err)
		return
	}
	p.slot = slot
	p.printf("(saved to %s)\n", slot)
}
