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
	"fmt"
	"io"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(SchemeClipboard, func(ctx context.Context, loc Location) (Provider, error) {
		if clipboard.Unsupported {
			return nil, Wrap(KindFatal, "open", "clipboard://", errors.New("no clipboard utility available"))
		}
		return NewClipboard(loc, systemClipboard{}), nil
	})
}

// 📋 Clipboard is the system clipboard seen as text
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// 📋 ClipboardProvider exposes the clipboard as exactly one synthetic entry
type ClipboardProvider struct {
	loc  Location
	clip Clipboard
	now  func() time.Time

	snapshot *string
}

// 🏭 NewClipboard wraps clip
func NewClipboard(loc Location, clip Clipboard) *ClipboardProvider {
	return &ClipboardProvider{loc: loc, clip: clip, now: time.Now}
}

func (p *ClipboardProvider) Location() Location { return p.loc }

func (p *ClipboardProvider) Capabilities() Capabilities {
	return Capabilities{AcceptsMultiple: false, IncrementalWrites: true}
}

// 📂 List yields one entry named <unix-seconds>.txt holding the current text
func (p *ClipboardProvider) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	text, err := p.read()
	if err != nil {
		return failed(err)
	}
	now := p.now()
	return single(Entry{
		Path:      fmt.Sprintf("%d.txt", now.Unix()),
		Size:      int64(len(text)),
		ModTime:   now,
		MediaType: "text/plain",
		Location:  p.loc,
	})
}

func (p *ClipboardProvider) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	text, err := p.read()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(text)), nil
}

// ✍️ Create replaces clipboard text on Commit; only UTF-8 text is accepted
func (p *ClipboardProvider) Create(ctx context.Context, relPath string, mediaType string) (Sink, error) {
	return &memorySink{commit: func(ctx context.Context, data []byte) error {
		if !utf8.Valid(data) {
			return Wrap(KindUnsupportedContent, "write", "clipboard://", errors.Errorf("%s (%s): %w", relPath, mediaType, ErrNotText))
		}
		if err := p.clip.WriteAll(string(data)); err != nil {
			return Wrap(KindTransient, "write", "clipboard://", err)
		}
		return nil
	}}, nil
}

func (p *ClipboardProvider) Close(ctx context.Context) error { return nil }

// read snapshots the clipboard once so List and Open agree
func (p *ClipboardProvider) read() (string, error) {
	if p.snapshot != nil {
		return *p.snapshot, nil
	}
	text, err := p.clip.ReadAll()
	if err != nil {
		return "", Wrap(KindTransient, "read", "clipboard://", err)
	}
	if text == "" {
		return "", Wrap(KindNotFound, "read", "clipboard://", errors.New("clipboard holds no text"))
	}
	p.snapshot = &text
	return text, nil
}
