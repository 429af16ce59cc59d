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
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(SchemeZip, func(ctx context.Context, loc Location) (Provider, error) {
		return NewZip(ctx, loc)
	})
}

// 🗜️ ZipProvider reads entries from a zip archive and rebuilds it on Close.
// Committed entries are staged in memory; the archive on disk only changes
// when Close succeeds.
type ZipProvider struct {
	loc     Location
	archive string
	reader  *zip.ReadCloser

	mu     sync.Mutex
	staged map[string][]byte
	closed bool
}

// 🏭 NewZip opens archive for reading if it exists
func NewZip(ctx context.Context, loc Location) (*ZipProvider, error) {
	p := &ZipProvider{
		loc:     loc,
		archive: filepath.Clean(loc.Path),
		staged:  make(map[string][]byte),
	}

	r, err := zip.OpenReader(p.archive)
	switch {
	case err == nil:
		p.reader = r
	case errors.Is(err, fs.ErrNotExist):
		// new archive
	default:
		return nil, classifyOS("open archive", p.archive, err)
	}

	zerolog.Ctx(ctx).Debug().Str("archive", p.archive).Bool("exists", p.reader != nil).Msg("opened zip storage")
	return p, nil
}

func (p *ZipProvider) Location() Location { return p.loc }

func (p *ZipProvider) Capabilities() Capabilities {
	return Capabilities{AcceptsMultiple: true, IncrementalWrites: false}
}

func (p *ZipProvider) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	if p.reader == nil {
		return failed(Wrap(KindNotFound, "list", p.archive, fs.ErrNotExist))
	}
	return func(yield func(Entry, error) bool) {
		for _, f := range p.reader.File {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, Wrap(KindTransient, "list", p.archive, err))
				return
			}
			if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
				continue
			}
			if !yield(Entry{
				Path:     f.Name,
				Size:     int64(f.UncompressedSize64),
				ModTime:  f.Modified,
				Location: p.loc,
			}, nil) {
				return
			}
		}
	}
}

func (p *ZipProvider) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	if p.reader == nil {
		return nil, Wrap(KindNotFound, "open", entry.Path, fs.ErrNotExist)
	}
	rc, err := p.reader.Open(entry.Path)
	if err != nil {
		return nil, classifyOS("open", entry.Path, err)
	}
	return rc, nil
}

func (p *ZipProvider) Create(ctx context.Context, relPath string, mediaType string) (Sink, error) {
	name := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(relPath)), "/")
	return &memorySink{commit: func(ctx context.Context, data []byte) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return errors.Errorf("archive %s already closed", p.archive)
		}
		p.staged[name] = data
		return nil
	}}, nil
}

// 🔒 Close rebuilds the archive with existing entries plus staged ones
func (p *ZipProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	defer func() {
		if p.reader != nil {
			p.reader.Close()
		}
	}()

	if len(p.staged) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(p.archive), 0o755); err != nil {
		return classifyOS("mkdir", p.archive, err)
	}
	tmp := filepath.Join(filepath.Dir(p.archive), "."+filepath.Base(p.archive)+"."+uuid.NewString()+".tmp")
	if err := p.writeArchive(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p.archive); err != nil {
		os.Remove(tmp)
		return classifyOS("rename", p.archive, err)
	}

	zerolog.Ctx(ctx).Debug().Str("archive", p.archive).Int("entries", len(p.staged)).Msg("wrote zip archive")
	return nil
}

// 🗑️ Discard drops staged entries without touching the archive
func (p *ZipProvider) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged = map[string][]byte{}
	p.closed = true
	if p.reader != nil {
		return p.reader.Close()
	}
	return nil
}

func (p *ZipProvider) writeArchive(tmp string) error {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return classifyOS("create", tmp, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	if p.reader != nil {
		for _, existing := range p.reader.File {
			if _, replaced := p.staged[existing.Name]; replaced {
				continue
			}
			if err := zw.Copy(existing); err != nil {
				return errors.Errorf("copying existing entry %s: %w", existing.Name, err)
			}
		}
	}

	names := make([]string, 0, len(p.staged))
	for name := range p.staged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return errors.Errorf("creating entry %s: %w", name, err)
		}
		if _, err := w.Write(p.staged[name]); err != nil {
			return errors.Errorf("writing entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Errorf("finishing archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return classifyOS("sync", tmp, err)
	}
	return nil
}
