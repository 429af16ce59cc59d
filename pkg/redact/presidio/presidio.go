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

// Package presidio adapts Microsoft Presidio's analyzer and image redactor
package presidio

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/redact/internal/wire"
	"gitlab.com/tozd/go/errors"
)

// Name is the registered backend name
const Name = "presidio"

// ignoredEntities are dropped from analyzer results; they are mostly false
// positives
var ignoredEntities = []string{"US_DRIVER_LICENSE"}

func init() {
	redact.Register(Name, func(ctx context.Context, s redact.Settings) (redact.Backend, error) {
		return New(s.Presidio, wire.New(Name, s.Timeout, nil))
	})
}

// 🛡️ Backend calls a Presidio analyzer for text and, when configured, the
// Presidio image redactor for images
type Backend struct {
	analyzeURL string
	imageURL   string
	client     *wire.Client
	desc       redact.Descriptor
}

// 🏭 New creates the backend; at least one URL must be set
func New(s redact.PresidioSettings, client *wire.Client) (*Backend, error) {
	if s.AnalyzerURL == "" && s.ImageRedactorURL == "" {
		return nil, errors.New("presidio needs an analyzer url or an image redactor url")
	}

	var native []mediatype.Category
	if s.AnalyzerURL != "" {
		native = append(native, mediatype.PlainText, mediatype.MarkupOrStructured)
	}
	if s.ImageRedactorURL != "" {
		native = append(native, mediatype.Image)
	}

	return &Backend{
		analyzeURL: s.AnalyzerURL,
		imageURL:   s.ImageRedactorURL,
		client:     client,
		desc:       redact.NewDescriptor(Name, s.ImageRedactorURL != "", native...),
	}, nil
}

func (b *Backend) Descriptor() redact.Descriptor { return b.desc }

func (b *Backend) Redact(ctx context.Context, req *redact.Request) (*redact.Response, error) {
	switch req.Category {
	case mediatype.PlainText, mediatype.MarkupOrStructured:
		return b.analyze(ctx, req.Content.Text)
	case mediatype.Image:
		return b.redactImage(ctx, req.Content.Image)
	default:
		return nil, redact.Errorf(redact.KindUnsupportedCategory, Name, "category %s", req.Category)
	}
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzedItem struct {
	EntityType string   `json:"entity_type"`
	Start      *int     `json:"start"`
	End        *int     `json:"end"`
	Score      *float64 `json:"score"`
}

func (b *Backend) analyze(ctx context.Context, text string) (*redact.Response, error) {
	if b.analyzeURL == "" {
		return nil, redact.Errorf(redact.KindBackendUnavailable, Name, "analyzer url is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return &redact.Response{}, nil
	}

	var items []analyzedItem
	if err := b.client.PostJSON(ctx, b.analyzeURL, analyzeRequest{Text: text, Language: "en"}, &items); err != nil {
		return nil, err
	}

	// analyzer offsets count code points
	ix := redact.NewRuneIndex(text)
	last := len(ix) - 1
	resp := &redact.Response{}
	for _, it := range items {
		if slices.Contains(ignoredEntities, it.EntityType) {
			continue
		}
		if it.Start == nil && it.End == nil {
			continue
		}
		start, end := 0, last
		if it.Start != nil {
			start = *it.Start
		}
		if it.End != nil {
			end = *it.End
		}
		span, ok := ix.Span(start, end)
		if !ok {
			continue
		}
		score := 1.0
		if it.Score != nil {
			score = *it.Score
		}
		resp.Findings = append(resp.Findings, redact.TextFinding(it.EntityType, score, span.Start, span.End))
	}

	zerolog.Ctx(ctx).Debug().Int("entities", len(items)).Int("findings", len(resp.Findings)).Msg("presidio analyzed text")
	return resp, nil
}

func (b *Backend) redactImage(ctx context.Context, img *redact.Image) (*redact.Response, error) {
	if b.imageURL == "" {
		return nil, redact.Errorf(redact.KindBackendUnavailable, Name, "image redactor url is not configured")
	}
	if img == nil {
		return nil, redact.Errorf(redact.KindUnsupportedCategory, Name, "image request without an image")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	h.Set("Content-Type", img.MediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, errors.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, errors.Errorf("writing multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Errorf("closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.imageURL, &body)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, redact.Errorf(redact.KindMalformedResponse, Name, "empty image response")
	}
	return &redact.Response{Image: &redact.Image{
		Data:      data,
		MediaType: img.MediaType,
		Width:     img.Width,
		Height:    img.Height,
	}}, nil
}
