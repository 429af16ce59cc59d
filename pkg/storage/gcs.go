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
	"iter"
	"net/http"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

func init() {
	Register(SchemeGCS, func(ctx context.Context, loc Location) (Provider, error) {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, Wrap(KindFatal, "create gcs client", loc.String(), err)
		}
		return NewGCS(loc, client), nil
	})
}

// ☁️ GCSProvider stores entries as objects under a bucket/prefix
type GCSProvider struct {
	loc    Location
	client *gcs.Client
}

// 🏭 NewGCS creates a GCS provider over client
func NewGCS(loc Location, client *gcs.Client) *GCSProvider {
	return &GCSProvider{loc: loc, client: client}
}

func (p *GCSProvider) Location() Location { return p.loc }

func (p *GCSProvider) Capabilities() Capabilities {
	return Capabilities{AcceptsMultiple: p.loc.IsPrefix(), IncrementalWrites: true}
}

// 📂 List drives the object iterator; its pages load on demand, so stopping
// the range stops pagination
func (p *GCSProvider) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	bucket := p.client.Bucket(p.loc.Bucket)

	if !p.loc.IsPrefix() {
		attrs, err := bucket.Object(p.loc.Path).Attrs(ctx)
		if err != nil {
			return failed(classifyGCS("attrs", p.loc.String(), err))
		}
		return single(Entry{
			Path:      path.Base(attrs.Name),
			Size:      attrs.Size,
			ModTime:   attrs.Updated,
			MediaType: attrs.ContentType,
			Location:  p.loc,
		})
	}

	return func(yield func(Entry, error) bool) {
		zerolog.Ctx(ctx).Debug().Str("bucket", p.loc.Bucket).Str("prefix", p.loc.Path+prefix).Msg("listing gcs objects")

		it := bucket.Objects(ctx, &gcs.Query{Prefix: p.loc.Path + prefix})
		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, Wrap(KindTransient, "list", p.loc.String(), err))
				return
			}
			attrs, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield(Entry{}, classifyGCS("list", p.loc.String(), err))
				return
			}
			if strings.HasSuffix(attrs.Name, "/") {
				continue
			}
			if !yield(Entry{
				Path:      strings.TrimPrefix(attrs.Name, p.loc.Path),
				Size:      attrs.Size,
				ModTime:   attrs.Updated,
				MediaType: attrs.ContentType,
				Location:  p.loc,
			}, nil) {
				return
			}
		}
	}
}

func (p *GCSProvider) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	key := p.loc.objectKey(entry.Path)
	r, err := p.client.Bucket(p.loc.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, classifyGCS("read", key, err)
	}
	return r, nil
}

// ✍️ Create streams into an object writer whose context is cancelled on Abort;
// the object only exists once Close succeeds
func (p *GCSProvider) Create(ctx context.Context, relPath string, mediaType string) (Sink, error) {
	key := p.loc.objectKey(relPath)
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := p.client.Bucket(p.loc.Bucket).Object(key).NewWriter(wctx)
	w.ContentType = mediaType
	return &gcsSink{w: w, cancel: cancel, key: key}, nil
}

func (p *GCSProvider) Close(ctx context.Context) error {
	if err := p.client.Close(); err != nil {
		return errors.Errorf("closing gcs client: %w", err)
	}
	return nil
}

type gcsSink struct {
	w      *gcs.Writer
	cancel context.CancelFunc
	key    string
	done   bool
}

func (s *gcsSink) Write(b []byte) (int, error) {
	return s.w.Write(b)
}

func (s *gcsSink) Commit(ctx context.Context) error {
	if s.done {
		return errors.New("sink already finalized")
	}
	s.done = true
	defer s.cancel()
	if err := s.w.Close(); err != nil {
		return classifyGCS("write", s.key, err)
	}
	return nil
}

func (s *gcsSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cancel()
	_ = s.w.Close()
	return nil
}

// 🗂️ classifyGCS maps client errors onto storage kinds
func classifyGCS(op, path string, err error) error {
	switch {
	case errors.Is(err, gcs.ErrObjectNotExist):
		return Wrap(KindNotFound, op, path, err)
	case errors.Is(err, gcs.ErrBucketNotExist):
		return Wrap(KindFatal, op, path, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.Code; {
		case code == http.StatusUnauthorized:
			return Wrap(KindFatal, op, path, err)
		case code == http.StatusForbidden:
			return Wrap(KindPermissionDenied, op, path, err)
		case code == http.StatusNotFound:
			return Wrap(KindNotFound, op, path, err)
		case code == http.StatusTooManyRequests || code >= 500:
			return Wrap(KindTransient, op, path, err)
		}
	}
	return classifyOS(op, path, err)
}
