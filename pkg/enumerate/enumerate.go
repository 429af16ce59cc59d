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

// Package enumerate filters and bounds a provider listing.
package enumerate

import (
	"context"
	"iter"
	"path"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// 🔧 Options bounds a traversal
type Options struct {
	Filename []string // doublestar globs; an entry passes when any matches its path or base name
	MaxSize  int64    // bytes; 0 means unlimited
	MaxFiles int      // 0 means unlimited
}

// 🔍 Enumerator wraps a provider listing with filters and a count cutoff
type Enumerator struct {
	provider storage.Provider
	opts     Options
	filtered atomic.Int64
}

// 🏭 New validates the filters and returns an enumerator over p
func New(p storage.Provider, opts Options) (*Enumerator, error) {
	for _, g := range opts.Filename {
		if !doublestar.ValidatePattern(g) {
			return nil, errors.Errorf("invalid filename filter %q", g)
		}
	}
	if opts.MaxSize < 0 || opts.MaxFiles < 0 {
		return nil, errors.New("size and file limits must not be negative")
	}
	return &Enumerator{provider: p, opts: opts}, nil
}

// 📂 Entries yields entries that pass the filters. Once MaxFiles entries have
// been yielded the underlying listing is abandoned, so no further pages are
// requested.
func (e *Enumerator) Entries(ctx context.Context) iter.Seq2[storage.Entry, error] {
	return func(yield func(storage.Entry, error) bool) {
		logger := zerolog.Ctx(ctx)
		yielded := 0

		for entry, err := range e.provider.List(ctx, "") {
			if err != nil {
				yield(storage.Entry{}, errors.Errorf("listing %s: %w", e.provider.Location(), err))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(storage.Entry{}, errors.Errorf("listing %s: %w", e.provider.Location(), err))
				return
			}

			if reason := e.reject(entry); reason != "" {
				e.filtered.Add(1)
				logger.Debug().Str("path", entry.Path).Str("reason", reason).Msg("filtered entry")
				continue
			}

			if !yield(entry, nil) {
				return
			}
			yielded++
			if e.opts.MaxFiles > 0 && yielded >= e.opts.MaxFiles {
				logger.Debug().Int("limit", e.opts.MaxFiles).Msg("file limit reached")
				return
			}
		}
	}
}

// Filtered returns how many entries the filters rejected so far
func (e *Enumerator) Filtered() int {
	return int(e.filtered.Load())
}

// reject checks size before name
func (e *Enumerator) reject(entry storage.Entry) string {
	if e.opts.MaxSize > 0 && entry.Size > e.opts.MaxSize {
		return "size"
	}
	if len(e.opts.Filename) == 0 {
		return ""
	}
	base := path.Base(entry.Path)
	for _, g := range e.opts.Filename {
		if ok, _ := doublestar.Match(g, entry.Path); ok {
			return ""
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return ""
		}
	}
	return "name"
}
