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
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/redacter/pkg/operation"
	"github.com/walteh/redacter/pkg/status"
	"github.com/walteh/redacter/pkg/storage"
)

func plain(t *testing.T) {
	t.Helper()
	color.NoColor = true
	pterm.DisableStyling()
	t.Cleanup(func() {
		color.NoColor = false
		pterm.EnableStyling()
	})
}

func TestLogger(t *testing.T) {
	plain(t)

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_item",
			op: func(t *testing.T, logger *Logger) {
				logger.Item(status.Result{Path: "a.txt", Outcome: status.OutcomePassthrough, Category: "text", Reason: "no redaction requested"})
			},
			wantLogs: []string{
				"• a.txt                               copied     text     no redaction requested",
			},
		},
		{
			name: "log_failed_item",
			op: func(t *testing.T, logger *Logger) {
				logger.Item(status.Result{Path: "b.png", Outcome: status.OutcomeFailed, Category: "image", Kind: "transient"})
			},
			wantLogs: []string{
				"✗ b.png                               failed     image    transient",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("copying ./in to s3://bucket/out/")
			},
			wantLogs: []string{
				"redacter • copying ./in to s3://bucket/out/",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	plain(t)

	t.Run("clean_run", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))
		logger.Summary(status.Report{Counts: map[status.Outcome]int{status.OutcomePassthrough: 2}, Outputs: 2}, 1500*time.Millisecond)

		out := buf.String()
		assert.Contains(t, out, "summary 0 redacted, 2 copied, 0 skipped, 0 failed", "totals line")
		assert.Contains(t, out, "✅ done in 1.5s", "success line")
	})

	t.Run("failures_table", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))
		logger.Summary(status.Report{
			Counts:   map[status.Outcome]int{status.OutcomeFailed: 1, status.OutcomeRedacted: 1},
			Failures: []status.Failure{{Path: "scan.pdf", Kind: "render_failed", Reason: "no pdf rasterizer available"}},
		}, time.Second)

		out := buf.String()
		assert.Contains(t, out, "scan.pdf", "failed path listed")
		assert.Contains(t, out, "render_failed", "failure kind listed")
		assert.Contains(t, out, "❌ 1 of 2 entries failed", "error line")
		assert.NotContains(t, out, "done in", "no success line")
	})
}

func TestListing(t *testing.T) {
	plain(t)

	buf := &bytes.Buffer{}
	logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))
	mod := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	logger.Listing(&operation.Listing{
		Entries: []storage.Entry{
			{Path: "a.txt", Size: 2048, ModTime: mod},
			{Path: "b.csv", Size: 10},
		},
		Bytes:    2058,
		Filtered: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "a.txt", "first entry")
	assert.Contains(t, out, "2.0 KiB", "human size")
	assert.Contains(t, out, "2025-01-02T03:04:05Z", "modification time")
	assert.Contains(t, out, "ℹ️  2 entries, 2.0 KiB (1 filtered)", "totals")
}

func TestLoggerContext(t *testing.T) {
	logger := New(io.Discard, zerolog.Nop())

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx), "logger from context should be the same instance")

	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "FromContext should panic when logger is missing")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}), "buffers are not terminals")

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err, "creating temp file")
	defer f.Close()
	assert.False(t, IsTerminal(f), "regular files are not terminals")
}
