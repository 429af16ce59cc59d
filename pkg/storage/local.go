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
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(SchemeLocal, func(ctx context.Context, loc Location) (Provider, error) {
		return NewLocal(ctx, loc)
	})
}

// 💾 LocalProvider reads and writes the local filesystem. A root that is an
// existing directory, or that ends in a separator, is a tree; anything else is
// a single file.
type LocalProvider struct {
	loc   Location
	root  string
	isDir bool
}

// 🏭 NewLocal opens a local root
func NewLocal(ctx context.Context, loc Location) (*LocalProvider, error) {
	root := filepath.Clean(loc.Path)
	isDir := strings.HasSuffix(loc.Path, "/") || strings.HasSuffix(loc.Path, string(filepath.Separator))

	info, err := os.Stat(root)
	switch {
	case err == nil:
		isDir = info.IsDir()
	case errors.Is(err, fs.ErrNotExist):
		// destination roots are created lazily on first write
	default:
		return nil, classifyOS("stat", root, err)
	}

	zerolog.Ctx(ctx).Debug().Str("root", root).Bool("dir", isDir).Msg("opened local storage")

	return &LocalProvider{loc: loc, root: root, isDir: isDir}, nil
}

func (p *LocalProvider) Location() Location { return p.loc }

func (p *LocalProvider) Capabilities() Capabilities {
	return Capabilities{AcceptsMultiple: p.isDir, IncrementalWrites: true}
}

// 📂 List walks the tree in lexical order
func (p *LocalProvider) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	if !p.isDir {
		info, err := os.Stat(p.root)
		if err != nil {
			return failed(classifyOS("list", p.root, err))
		}
		return single(Entry{
			Path:     filepath.Base(p.root),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Location: p.loc,
		})
	}

	return func(yield func(Entry, error) bool) {
		start := p.root
		if prefix != "" {
			start = filepath.Join(p.root, filepath.FromSlash(prefix))
		}

		err := filepath.WalkDir(start, func(abs string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(p.root, abs)
			if err != nil {
				return errors.Errorf("relative path of %s: %w", abs, err)
			}

			if !yield(Entry{
				Path:     filepath.ToSlash(rel),
				Size:     info.Size(),
				ModTime:  info.ModTime(),
				Location: p.loc,
			}, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, classifyOS("list", start, err))
		}
	}
}

func (p *LocalProvider) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	abs, err := p.resolve(entry.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, classifyOS("open", entry.Path, err)
	}
	return f, nil
}

// ✍️ Create stages writes in a temp file next to the target; Commit renames it
func (p *LocalProvider) Create(ctx context.Context, relPath string, mediaType string) (Sink, error) {
	target, err := p.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, classifyOS("mkdir", relPath, err)
	}

	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, classifyOS("create", relPath, err)
	}

	return &localSink{f: f, tmp: tmp, target: target}, nil
}

func (p *LocalProvider) Close(ctx context.Context) error { return nil }

// 🔒 resolve joins rel under the root, refusing paths that escape it
func (p *LocalProvider) resolve(rel string) (string, error) {
	if !p.isDir {
		return p.root, nil
	}
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", Wrap(KindNotFound, "resolve", rel, errors.New("empty relative path"))
	}
	return filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

type localSink struct {
	f      *os.File
	tmp    string
	target string
	done   bool
}

func (s *localSink) Write(b []byte) (int, error) {
	return s.f.Write(b)
}

func (s *localSink) Commit(ctx context.Context) error {
	if s.done {
		return errors.New("sink already finalized")
	}
	s.done = true

	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(s.tmp)
		return classifyOS("sync", s.target, err)
	}
	if err := s.f.Close(); err != nil {
		os.Remove(s.tmp)
		return classifyOS("close", s.target, err)
	}
	if err := os.Rename(s.tmp, s.target); err != nil {
		os.Remove(s.tmp) // clean up temp file
		return classifyOS("rename", s.target, err)
	}
	return nil
}

func (s *localSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.f.Close()
	if err := os.Remove(s.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return classifyOS("abort", s.target, err)
	}
	return nil
}
