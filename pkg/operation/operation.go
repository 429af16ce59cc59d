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

package operation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/enumerate"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/status"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// DefaultWorkers is the worker pool size when none is configured
const DefaultWorkers = 8

// ErrMultipleIntoSingle is returned when a source lists more than one entry
// and the destination holds only one
var ErrMultipleIntoSingle = errors.Base("destination accepts a single entry but the source has several")

// 🔧 CopyOptions configures a copy run
type CopyOptions struct {
	// Filter bounds the source traversal
	Filter enumerate.Options
	// Overrides are mime override rules, applied in order
	Overrides []mediatype.Override
	// Engine redacts entries; nil copies everything as is
	Engine *redact.Engine
	// Workers bounds how many entries are processed at once
	Workers int
	// Retries bounds retries of transient storage errors
	Retries int
	// RetryInitial is the first backoff interval for storage retries
	RetryInitial time.Duration
	// OnResult is called once per entry, from the worker that processed it
	OnResult func(ctx context.Context, r status.Result)
}

func (o *CopyOptions) normalize() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = 200 * time.Millisecond
	}
	if o.Engine == nil {
		o.Engine = redact.NewEngine(nil, redact.Options{})
	}
}

// 📋 Copy copies every entry of src that passes the filters into dst. The
// returned report holds one result per processed entry. An error means the run
// was aborted; the report then covers the entries finished before the abort.
func Copy(ctx context.Context, src, dst storage.Provider, opts CopyOptions) (report status.Report, err error) {
	opts.normalize()
	logger := zerolog.Ctx(ctx).With().Str("source", src.Location().String()).Str("destination", dst.Location().String()).Logger()
	ctx = logger.WithContext(ctx)

	summary := status.New()
	defer func() {
		report = summary.Report()
		err = finish(ctx, dst, err)
	}()

	enum, err := enumerate.New(src, opts.Filter)
	if err != nil {
		return report, errors.Errorf("configuring filters: %w", err)
	}

	entries := enum.Entries(ctx)
	if !dst.Capabilities().AcceptsMultiple {
		entries, err = single(entries)
		if err != nil {
			return report, err
		}
	}

	c := &copier{
		src:      src,
		dst:      dst,
		resolver: mediatype.NewResolver(opts.Overrides...),
		engine:   opts.Engine,
		opts:     opts,
	}

	logger.Debug().Int("workers", opts.Workers).Strs("backends", backendNames(opts.Engine)).Msg("starting copy")

	err = run(ctx, entries, opts.Workers, func(ctx context.Context, entry storage.Entry) error {
		res, fatal := c.process(ctx, entry)
		if summary.Record(res) && opts.OnResult != nil {
			opts.OnResult(ctx, res)
		}
		return fatal
	})
	summary.SetFiltered(enum.Filtered())
	if err != nil {
		logger.Error().Err(err).Msg("copy aborted")
		return report, err
	}

	logger.Debug().Msg("copy finished")
	return report, nil
}

// finish closes dst after a completed run and discards it after an abort
func finish(ctx context.Context, dst storage.Provider, runErr error) error {
	if runErr != nil {
		if err := storage.Discard(context.WithoutCancel(ctx), dst); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("discarding destination")
		}
		return runErr
	}
	if err := dst.Close(ctx); err != nil {
		return errors.Errorf("finalizing destination: %w", err)
	}
	return nil
}

func backendNames(e *redact.Engine) []string {
	names := make([]string, 0, len(e.Backends()))
	for _, b := range e.Backends() {
		names = append(names, b.Descriptor().Name)
	}
	return names
}
