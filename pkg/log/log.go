// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/operation"
	"github.com/walteh/redacter/pkg/status"
)

// 🎯 Logger prints user facing run output to the console and mirrors every
// event to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🖥️ IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 Item prints one entry's result
func (l *Logger) Item(r status.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, status.FormatResult(r))

	ev := l.zlog.Info()
	if r.Outcome == status.OutcomeFailed {
		ev = l.zlog.Warn().Str("kind", r.Kind)
	}
	ev.Str("path", r.Path).
		Str("outcome", r.Outcome.String()).
		Str("category", r.Category).
		Strs("backends", r.Backends).
		Int("findings", r.Findings).
		Strs("outputs", r.Outputs).
		Str("reason", r.Reason).
		Msg("entry finished")
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("redacter")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📋 Summary prints the run totals, a table of failures when there are any,
// and a closing status line
func (l *Logger) Summary(r status.Report, elapsed time.Duration) {
	l.mu.Lock()
	line := status.FormatSummary(r)
	fmt.Fprintf(l.console, "\n%s %s\n", color.New(color.Bold).Sprint("summary"), line)
	l.zlog.Info().
		Int("redacted", r.Counts[status.OutcomeRedacted]).
		Int("copied", r.Counts[status.OutcomePassthrough]).
		Int("skipped", r.Counts[status.OutcomeSkipped]).
		Int("failed", r.Counts[status.OutcomeFailed]).
		Int("filtered", r.Filtered).
		Int("outputs", r.Outputs).
		Int64("bytes_read", r.BytesRead).
		Int64("bytes_written", r.BytesWritten).
		Dur("elapsed", elapsed).
		Msg("run summary")
	l.mu.Unlock()

	if len(r.Failures) > 0 {
		rows := [][]string{{"path", "kind", "reason"}}
		for _, f := range r.Failures {
			rows = append(rows, []string{f.Path, f.Kind, f.Reason})
		}
		l.Table(rows)
		l.Errorf("%d of %d entries failed", r.Counts[status.OutcomeFailed], r.Total())
		return
	}
	l.Successf("done in %s", elapsed.Round(time.Millisecond))
}

// 📂 Listing prints a list run as a table followed by the totals
func (l *Logger) Listing(ls *operation.Listing) {
	rows := [][]string{{"path", "size", "modified"}}
	for _, e := range ls.Entries {
		mod := "-"
		if !e.ModTime.IsZero() {
			mod = e.ModTime.Format(time.RFC3339)
		}
		rows = append(rows, []string{e.Path, humanize.IBytes(uint64(e.Size)), mod})
	}
	if len(ls.Entries) > 0 {
		l.Table(rows)
	}

	msg := fmt.Sprintf("%d entries, %s", len(ls.Entries), humanize.IBytes(uint64(ls.Bytes)))
	if ls.Filtered > 0 {
		msg += fmt.Sprintf(" (%d filtered)", ls.Filtered)
	}
	l.Info(msg)
}

// 📊 Table renders rows with the first row as the header
func (l *Logger) Table(rows [][]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Srender()
	if err != nil {
		l.zlog.Warn().Err(err).Msg("rendering table")
		for _, r := range rows {
			fmt.Fprintln(l.console, strings.Join(r, "\t"))
		}
		return
	}
	fmt.Fprintln(l.console, out)
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
