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

package storage

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"sort"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// 📄 Entry is one listed item, relative to the provider's root
type Entry struct {
	Path      string    // slash separated, relative to the traversal root
	Size      int64     // size in bytes
	ModTime   time.Time // zero when the backend does not report it
	MediaType string    // content type reported by the backend, if any
	Location  Location  // the location that owns this entry
}

// 📦 Capabilities describes what a provider can do as a destination
type Capabilities struct {
	// AcceptsMultiple reports whether the location addresses a collection
	// rather than one object; false for the clipboard and single files
	AcceptsMultiple bool
	// IncrementalWrites is false when every write requires rebuilding the container
	IncrementalWrites bool
}

// ✍️ Sink is a scoped write. Nothing becomes visible at the destination until
// Commit succeeds. Abort discards everything written so far and is a no-op
// after Commit.
type Sink interface {
	io.Writer
	Commit(ctx context.Context) error
	Abort() error
}

// 🔌 Provider is the uniform list/read/write contract over a storage backend
type Provider interface {
	// 📍 Location returns the root this provider was opened on
	Location() Location

	// 📦 Capabilities reports destination capabilities
	Capabilities() Capabilities

	// 📂 List lazily walks entries under prefix. Breaking out of the loop stops
	// any further backend pagination.
	List(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// 📖 Open returns the content of a listed entry
	Open(ctx context.Context, entry Entry) (io.ReadCloser, error)

	// ✍️ Create opens a sink for relPath below the root
	Create(ctx context.Context, relPath string, mediaType string) (Sink, error)

	// 🔒 Close releases the provider; container backends finalize here
	Close(ctx context.Context) error
}

// 🏭 Factory opens a provider for a parsed location
type Factory func(ctx context.Context, loc Location) (Provider, error)

var (
	// 🗺️ providers maps location schemes to factories
	providers = make(map[Scheme]Factory)
)

// 📝 Register registers a provider factory for a scheme
func Register(scheme Scheme, factory Factory) {
	providers[scheme] = factory
}

// 🎯 New opens the provider registered for the location's scheme
func New(ctx context.Context, loc Location) (Provider, error) {
	factory, ok := providers[loc.Scheme]
	if !ok {
		return nil, errors.Errorf("no storage provider for scheme %q (available: %s)", loc.Scheme, strings.Join(schemes(), ", "))
	}
	p, err := factory(ctx, loc)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", loc, err)
	}
	return p, nil
}

// 🎯 Open parses raw and opens the matching provider
func Open(ctx context.Context, raw string) (Provider, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	return New(ctx, loc)
}

// 🎯 OpenDestination opens raw for writing. A local destination that does not
// exist yet becomes a directory when the source addresses a collection.
func OpenDestination(ctx context.Context, raw string, source Provider) (Provider, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == SchemeLocal && source.Capabilities().AcceptsMultiple && !strings.HasSuffix(loc.Path, "/") {
		if _, statErr := os.Stat(loc.Path); errors.Is(statErr, fs.ErrNotExist) {
			loc.Path += "/"
		}
	}
	return New(ctx, loc)
}

// 🗑️ Discard releases p without finalizing staged container writes
func Discard(ctx context.Context, p Provider) error {
	if d, ok := p.(interface{ Discard() error }); ok {
		return d.Discard()
	}
	return p.Close(ctx)
}

func schemes() []string {
	out := make([]string, 0, len(providers))
	for s := range providers {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// 📥 ReadAll reads a whole entry into memory
func ReadAll(ctx context.Context, p Provider, entry Entry) ([]byte, error) {
	rc, err := p.Open(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Wrap(KindTransient, "read", entry.Path, err)
	}
	return data, nil
}

// 📤 WriteAll writes data through a sink and commits it, aborting on any failure
func WriteAll(ctx context.Context, p Provider, relPath, mediaType string, data []byte) (err error) {
	sink, err := p.Create(ctx, relPath, mediaType)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = sink.Abort()
		}
	}()

	if _, err = sink.Write(data); err != nil {
		return Wrap(KindTransient, "write", relPath, err)
	}
	if err = ctx.Err(); err != nil {
		return errors.Errorf("writing %s: %w", relPath, err)
	}
	return sink.Commit(ctx)
}

// 🧩 single yields a one-element listing
func single(entry Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(entry, nil)
	}
}

// ⚠️ failed yields a single listing error
func failed(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(Entry{}, err)
	}
}

// 📦 memorySink buffers writes and hands them to commit on Commit
type memorySink struct {
	buf    []byte
	done   bool
	commit func(ctx context.Context, data []byte) error
}

func (s *memorySink) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New("write after sink was finalized")
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *memorySink) Commit(ctx context.Context) error {
	if s.done {
		return errors.New("sink already finalized")
	}
	s.done = true
	return s.commit(ctx, s.buf)
}

func (s *memorySink) Abort() error {
	s.done = true
	s.buf = nil
	return nil
}
