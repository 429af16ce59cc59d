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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/redacter/pkg/config"
	"github.com/walteh/redacter/pkg/convert"
	"github.com/walteh/redacter/pkg/operation"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/status"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

func newCpCmd(root *rootOpts) *cobra.Command {
	flags := &cpFlags{}

	cmd := &cobra.Command{
		Use:   "cp [options] <SOURCE> <DESTINATION>",
		Short: "Copy files, redacting them through the selected backends",
		Long: `cp copies every entry of SOURCE that passes the filters into DESTINATION.

Locations are local paths, s3://bucket/key, gs://bucket/key, zip://path/to/archive.zip
or clipboard://. With one or more --redact backends each entry is routed by
content type: text and markup are masked in place, tables cell by cell, images
are painted over and pdf pages are rendered to redacted images. Entries no
backend can handle are skipped unless --allow-unsupported-copies is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCp(cmd, root, flags, args[0], args[1])
		},
	}

	flags.register(cmd)

	return cmd
}

func runCp(cmd *cobra.Command, root *rootOpts, flags *cpFlags, source, destination string) error {
	ctx := cmd.Context()

	cfg, err := root.loadConfig(ctx)
	if err != nil {
		return err
	}
	flags.apply(cfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return errors.Errorf("invalid options: %w", err)
	}
	run, err := cfg.Resolve()
	if err != nil {
		return errors.Errorf("invalid options: %w", err)
	}

	engine, err := newEngine(cmd, root, flags, cfg, run)
	if err != nil {
		return err
	}

	src, err := storage.Open(ctx, source)
	if err != nil {
		return errors.Errorf("opening source: %w", err)
	}
	defer src.Close(ctx)

	dst, err := storage.OpenDestination(ctx, destination, src)
	if err != nil {
		return errors.Errorf("opening destination: %w", err)
	}

	out := console(cmd)
	out.Header(fmt.Sprintf("%s → %s", src.Location(), dst.Location()))

	start := time.Now()
	report, err := operation.Copy(ctx, src, dst, operation.CopyOptions{
		Filter:    run.Filter,
		Overrides: run.Overrides,
		Engine:    engine,
		Workers:   run.Workers,
		Retries:   run.Engine.MaxRetries,
		OnResult: func(ctx context.Context, r status.Result) {
			out.Item(r)
		},
	})
	out.Summary(report, time.Since(start))
	if err != nil {
		return errors.Errorf("copy aborted: %w", err)
	}
	if report.Failed() {
		return errors.WithStack(errEntriesFailed)
	}
	return nil
}

// newEngine creates the selected backends and the shared resources they use
func newEngine(cmd *cobra.Command, root *rootOpts, flags *cpFlags, cfg *config.Config, run *config.Run) (*redact.Engine, error) {
	ctx := cmd.Context()
	opts := run.Engine
	if len(run.Backends) == 0 {
		return redact.NewEngine(nil, opts), nil
	}

	creds, err := config.LoadCredentials(ctx, root.dotenv...)
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings(creds)
	if cmd.Flags().Changed("openai-api-key") {
		settings.OpenAI.APIKey = flags.openaiAPIKey
	}
	if cmd.Flags().Changed("gemini-api-key") {
		settings.Gemini.APIKey = flags.geminiAPIKey
	}

	backends, err := redact.NewAll(ctx, run.Backends, settings)
	if err != nil {
		return nil, err
	}

	opts.Converter = convert.Detect(ctx, run.PdfDPI)
	opts.Limiter = redact.NewRateLimiter(run.Concurrency, run.Limit)
	return redact.NewEngine(backends, opts), nil
}
