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

package convert

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultDPI is the fixed page rasterization resolution
const DefaultDPI = 150

// 📄 Rasterizer renders every page of a PDF, in page order
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error)
}

// 🔤 Recognizer finds text regions in an image
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Region, error)
}

// 🚦 Kind classifies conversion failures
type Kind int

const (
	KindRenderFailed Kind = iota + 1
	KindRecognitionFailed
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindRenderFailed:
		return "render_failed"
	case KindRecognitionFailed:
		return "recognition_failed"
	default:
		return "unknown"
	}
}

// ❌ Error is a classified conversion failure
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// 🔁 Converter turns PDFs into page images and images into OCR documents.
// Either half may be missing, in which case the matching Can* reports false.
type Converter struct {
	raster Rasterizer
	ocr    Recognizer
	dpi    int
}

// 🏭 New creates a converter; nil collaborators disable that route
func New(raster Rasterizer, ocr Recognizer, dpi int) *Converter {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Converter{raster: raster, ocr: ocr, dpi: dpi}
}

// 🔍 Detect builds a converter from the external tools found on PATH
func Detect(ctx context.Context, dpi int) *Converter {
	logger := zerolog.Ctx(ctx)

	var raster Rasterizer
	if p, err := NewPdftoppm(); err == nil {
		raster = p
	} else {
		logger.Debug().Err(err).Msg("pdf rasterization unavailable")
	}

	var ocr Recognizer
	if t, err := NewTesseract(); err == nil {
		ocr = t
	} else {
		logger.Debug().Err(err).Msg("ocr unavailable")
	}

	return New(raster, ocr, dpi)
}

func (c *Converter) CanRender() bool    { return c != nil && c.raster != nil }
func (c *Converter) CanRecognize() bool { return c != nil && c.ocr != nil }

// 📄 Pages rasterizes every page independently at the fixed resolution
func (c *Converter) Pages(ctx context.Context, pdf []byte) ([]image.Image, error) {
	if !c.CanRender() {
		return nil, &Error{Kind: KindRenderFailed, Err: errors.New("no pdf rasterizer available")}
	}
	pages, err := c.raster.Rasterize(ctx, pdf, c.dpi)
	if err != nil {
		return nil, errors.WithStack(&Error{Kind: KindRenderFailed, Err: err})
	}
	if len(pages) == 0 {
		return nil, &Error{Kind: KindRenderFailed, Err: errors.New("pdf has no pages")}
	}
	zerolog.Ctx(ctx).Debug().Int("pages", len(pages)).Int("dpi", c.dpi).Msg("rasterized pdf")
	return pages, nil
}

// 🔤 Recognize runs OCR and assembles the regions into a Document
func (c *Converter) Recognize(ctx context.Context, img image.Image) (*Document, error) {
	if !c.CanRecognize() {
		return nil, &Error{Kind: KindRecognitionFailed, Err: errors.New("no ocr engine available")}
	}
	regions, err := c.ocr.Recognize(ctx, img)
	if err != nil {
		return nil, errors.WithStack(&Error{Kind: KindRecognitionFailed, Err: err})
	}
	b := img.Bounds()
	return NewDocument(regions, image.Pt(b.Dx(), b.Dy())), nil
}
