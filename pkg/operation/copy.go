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

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/status"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// 🚦 Stage is a step of the per-entry pipeline
type Stage int

const (
	StageEnumerated Stage = iota
	StageFetched
	StageResolved
	StageRedacted
	StageWritten
)

// String returns a string representation of Stage
func (s Stage) String() string {
	switch s {
	case StageEnumerated:
		return "enumerated"
	case StageFetched:
		return "fetched"
	case StageResolved:
		return "resolved"
	case StageRedacted:
		return "redacted"
	case StageWritten:
		return "written"
	default:
		return "unknown"
	}
}

// 📦 copier carries the per-run collaborators shared by every worker
type copier struct {
	src      storage.Provider
	dst      storage.Provider
	resolver *mediatype.Resolver
	engine   *redact.Engine
	opts     CopyOptions
}

// 📄 process takes one entry through every stage. The result is always
// usable; the error is non-nil only when the whole run must stop.
func (c *copier) process(ctx context.Context, entry storage.Entry) (status.Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("path", entry.Path).Logger()
	ctx = logger.WithContext(ctx)
	res := status.Result{Path: entry.Path, Category: mediatype.Unknown.String()}

	fail := func(stage Stage, err error) (status.Result, error) {
		res.Outcome = status.OutcomeFailed
		res.Kind = ErrorKind(err)
		res.Reason = err.Error()
		if IsFatal(err) {
			logger.Error().Err(err).Str("stage", stage.String()).Msg("fatal error, aborting run")
			return res, errors.Errorf("%s: %w", entry.Path, err)
		}
		logger.Warn().Err(err).Str("stage", stage.String()).Str("kind", res.Kind).Msg("entry failed")
		return res, nil
	}

	logger.Debug().Str("stage", StageEnumerated.String()).Int64("size", entry.Size).Msg("entry accepted")

	if err := ctx.Err(); err != nil {
		return fail(StageFetched, err)
	}
	data, err := retry(ctx, c.opts, func() ([]byte, error) {
		return storage.ReadAll(ctx, c.src, entry)
	})
	if err != nil {
		return fail(StageFetched, errors.Errorf("reading: %w", err))
	}
	res.BytesRead = int64(len(data))
	logger.Debug().Str("stage", StageFetched.String()).Int("bytes", len(data)).Msg("entry fetched")

	if err := ctx.Err(); err != nil {
		return fail(StageResolved, err)
	}
	kind := c.resolver.ResolveEntry(entry, data)
	res.Category = kind.Category.String()
	logger.Debug().
		Str("stage", StageResolved.String()).
		Str("category", res.Category).
		Str("media_type", kind.MediaType).
		Str("source", string(kind.Source)).
		Msg("content type resolved")

	if err := ctx.Err(); err != nil {
		return fail(StageRedacted, err)
	}
	out, err := c.engine.Redact(ctx, redact.Item{
		Name:      entry.Path,
		MediaType: kind.MediaType,
		Category:  kind.Category,
		Data:      data,
	})
	if err != nil {
		return fail(StageRedacted, err)
	}
	res.Backends = out.Backends
	res.Findings = len(out.Findings)
	res.Reason = out.Reason
	res.Unsampled = out.Unsampled
	switch out.Status {
	case redact.StatusRedacted:
		res.Outcome = status.OutcomeRedacted
	case redact.StatusPassthrough:
		res.Outcome = status.OutcomePassthrough
	default:
		res.Outcome = status.OutcomeSkipped
		logger.Debug().Str("stage", StageRedacted.String()).Str("reason", out.Reason).Msg("entry skipped")
		return res, nil
	}
	logger.Debug().
		Str("stage", StageRedacted.String()).
		Str("outcome", res.Outcome.String()).
		Strs("backends", out.Backends).
		Int("findings", res.Findings).
		Msg("redaction resolved")

	if len(out.Outputs) > 1 && !c.dst.Capabilities().AcceptsMultiple {
		return fail(StageWritten, errors.Errorf("%d outputs: %w", len(out.Outputs), ErrMultipleIntoSingle))
	}

	for _, o := range out.Outputs {
		if err := ctx.Err(); err != nil {
			return fail(StageWritten, err)
		}
		_, err := retry(ctx, c.opts, func() (struct{}, error) {
			return struct{}{}, storage.WriteAll(ctx, c.dst, o.Name, o.MediaType, o.Data)
		})
		if err != nil {
			return fail(StageWritten, errors.Errorf("writing %s: %w", o.Name, err))
		}
		res.Outputs = append(res.Outputs, o.Name)
		res.BytesWritten += int64(len(o.Data))
	}
	logger.Debug().Str("stage", StageWritten.String()).Int("outputs", len(res.Outputs)).Msg("entry written")

	return res, nil
}

// 🔁 retry retries transient storage errors with exponential backoff
func retry[T any](ctx context.Context, opts CopyOptions, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.RetryInitial

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !storage.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(opts.Retries+1)))
}
