/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command ftodialog checks, plays, converts and shares dialog files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ftodialog/internal/config"
	"ftodialog/internal/crash"
	applog "ftodialog/internal/log"
	"ftodialog/internal/session"
	"ftodialog/internal/storage"
	"ftodialog/internal/telemetry"
	"ftodialog/internal/version"

	"github.com/joho/godotenv"
)

// errUsage makes main print the usage text and exit 2.
var errUsage = errors.New("usage")

// app carries what every command needs. ph and sess are set by commands as they go so a
// crash report can include them.
type app struct {
	cfg   config.AppConfig
	token string
	in    io.Reader
	out   io.Writer
	log   *slog.Logger
	tel   *telemetry.Client

	ph   *storage.ProjectHandle
	sess *session.Session
}

type command struct {
	name string
	args string
	help string
	run  func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"version", "", "Show version", runVersion},
	{"check", "<file|dialog> [-project dir]", "Parse a dialog and report warnings and errors", runCheck},
	{"print", "<file|dialog> [-project dir]", "Print the normalized dialog source", runPrint},
	{"play", "<file|dialog> [-project dir] [-karma n] [-seed n] [-slot name]", "Play a dialog in the terminal", runPlay},
	{"yaml", "<file|dialog> [-project dir] | -decode <file.yaml>", "Convert between dialog source and the state map format", runYAML},
	{"pdf", "<file|dialog> <out.pdf> [-project dir]", "Export a dialog script as PDF", runPDF},
	{"init", "<dir> <name>", "Create a new project", runInit},
	{"add", "<dir> <name> <file>", "Add a dialog file to a project", runAdd},
	{"index", "<dir> [-rebuild]", "Update the project search index", runIndex},
	{"search", "<dir> <query> [-author a] [-dialog d] [-kind k] [-limit n] [-event e]", "Search dialog lines", runSearch},
	{"saves", "<dir> [-delete slot]", "List or delete save slots", runSaves},
	{"history", "<dir> <dialog> [-restore] [-limit n]", "List source snapshots of a dialog or restore the latest", runHistory},
	{"serve", "", "Run the shared dialog server (DATABASE_URL, FTO_AUTH_SECRET)", runServe},
	{"login", "[-subject name]", "Request a backend token and store it in the keyring", runLogin},
	{"push", "<dir> <dialog>", "Upload a project dialog to the backend", runPush},
	{"pull", "<dir> <name>", "Download a dialog from the backend into a project", runPull},
	{"remote", "", "List dialogs on the backend", runRemote},
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "ftodialog - dialog tree tools")
	_, _ = fmt.Fprintf(w, "Version: %s\n\n", version.String())
	_, _ = fmt.Fprintln(w, "Usage:")
	for _, c := range commands {
		_, _ = fmt.Fprintf(w, "  ftodialog %-8s %s\n      %s\n", c.name, c.args, c.help)
	}
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	applog.Init(applog.FromEnv())

	a := &app{in: os.Stdin, out: os.Stdout, log: applog.WithComponent("cli")}
	name := ""
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	defer crash.Recover(
		crash.WithCommand(name),
		crash.WithProject(func() *storage.ProjectHandle { return a.ph }),
		crash.WithSession(func() (session.State, bool) {
			if a.sess == nil {
				return session.State{}, false
			}
			return a.sess.State(), true
		}),
	)

	cfg, tok, err := config.Load()
	if err != nil {
		a.log.Warn("config load failed, using defaults", slog.Any("err", err))
	}
	a.cfg, a.token = cfg, tok
	// cfg.Logging already carries the FTO_LOG_* overrides
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	a.log = applog.WithComponent("cli")

	a.tel = telemetry.New(telemetry.FromEnv())
	telemetry.SetDefault(a.tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, a, os.Args[1:])
	stop()

	fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	a.tel.Flush(fctx)
	cancel()
	a.tel.Close()
	os.Exit(code)
}

// run dispatches to a command and maps its error to an exit code.
func run(ctx context.Context, a *app, args []string) int {
	if len(args) == 0 {
		usage(a.out)
		return 2
	}
	name := args[0]
	switch name {
	case "-v", "--version":
		name = "version"
	case "help", "-h", "--help":
		usage(a.out)
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		a.log.Debug("start", slog.String("command", name), slog.Int("args", len(args)-1))
		start := time.Now()
		code := exitCode(a, c, c.run(ctx, a, args[1:]))
		a.tel.Command(c.name, code, time.Since(start))
		return code
	}
	_, _ = fmt.Fprintf(a.out, "unknown command %q\n\n", name)
	usage(a.out)
	return 2
}

func exitCode(a *app, c command, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintf(a.out, "usage: ftodialog %s %s\n", c.name, c.args)
		return 2
	default:
		a.log.Error(c.name+" failed", slog.Any("err", err))
		_, _ = fmt.Fprintln(a.out, "Error:", err)
		return 1
	}
}

func runVersion(_ context.Context, a *app, _ []string) error {
	_, err := fmt.Fprintln(a.out, "ftodialog", version.String())
	return err
}
