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
	"iter"

	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🏃 run feeds entries to a bounded pool of workers. A worker returning an
// error cancels the run; entries not yet started are never handed out.
func run(ctx context.Context, entries iter.Seq2[storage.Entry, error], workers int, fn func(context.Context, storage.Entry) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var listErr error
	for entry, err := range entries {
		if err != nil {
			listErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		// Go blocks while every worker is busy
		g.Go(func() error {
			return fn(gctx, entry)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if listErr != nil {
		return errors.Errorf("listing source: %w", listErr)
	}
	if err := ctx.Err(); err != nil {
		return errors.Errorf("run cancelled: %w", err)
	}
	return nil
}

// single buffers a listing that must hold at most one entry
func single(entries iter.Seq2[storage.Entry, error]) (iter.Seq2[storage.Entry, error], error) {
	var buf []storage.Entry
	for entry, err := range entries {
		if err != nil {
			return nil, errors.Errorf("listing source: %w", err)
		}
		buf = append(buf, entry)
		if len(buf) > 1 {
			return nil, errors.WithStack(ErrMultipleIntoSingle)
		}
	}
	return func(yield func(storage.Entry, error) bool) {
		for _, e := range buf {
			if !yield(e, nil) {
				return
			}
		}
	}, nil
}
