/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHidden are attributes every record carries; the console leaves them out.
var consoleHidden = map[string]bool{"app": true, "ver": true, "ts_init": true}

// prettyTextHandler prints one line per record for a terminal:
//
//	15:04:05 WRN [parser] unknown event dropped line=3 event=Rain
//
// The component attribute becomes the bracketed tag. Keys added after WithGroup carry the
// group path as prefix.
type prettyTextHandler struct {
	opts  prettyOpts
	w     io.Writer
	mu    *sync.Mutex
	tag   string
	attrs []string // rendered " key=value" pairs
	group string   // "a.b." prefix for attrs added from now on
}

func newPrettyTextHandler(w io.Writer, opts prettyOpts) *prettyTextHandler {
	return &prettyTextHandler{opts: opts, w: w, mu: &sync.Mutex{}}
}

type prettyOpts struct {
	Level     slog.Leveler
	AddSource bool
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	b := &strings.Builder{}
	b.Grow(160)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format(time.TimeOnly))
	b.WriteByte(' ')
	b.WriteString(levelString(r.Level))
	tag := h.tag
	var rest []string
	r.Attrs(func(a slog.Attr) bool {
		if h.group == "" && a.Key == "component" {
			tag = a.Value.String()
			return true
		}
		rest = appendAttr(rest, h.group, a)
		return true
	})
	if tag != "" {
		b.WriteString(" [")
		b.WriteString(tag)
		b.WriteByte(']')
	}
	if r.Message != "" {
		b.WriteByte(' ')
		b.WriteString(r.Message)
	}
	for _, s := range h.attrs {
		b.WriteString(s)
	}
	for _, s := range rest {
		b.WriteString(s)
	}
	if h.opts.AddSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		b.WriteString(" src=")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		if h.group == "" && a.Key == "component" {
			nh.tag = a.Value.String()
			continue
		}
		nh.attrs = appendAttr(nh.attrs, h.group, a)
	}
	return nh
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.group += name + "."
	return nh
}

func (h *prettyTextHandler) clone() *prettyTextHandler {
	nh := *h
	nh.attrs = append([]string(nil), h.attrs...)
	if nh.mu == nil {
		nh.mu = &sync.Mutex{}
	}
	return &nh
}

// appendAttr renders a, flattening nested groups into dotted keys.
func appendAttr(dst []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) || (prefix == "" && consoleHidden[a.Key]) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, p, ga)
		}
		return dst
	}
	return append(dst, " "+prefix+a.Key+"="+attrValueString(a.Value))
}

func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return l.String()
	}
}

func attrValueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		if ss, ok := v.Any().([]string); ok {
			return "[" + strings.Join(ss, ",") + "]"
		}
		return v.String()
	default:
		return v.String()
	}
}
