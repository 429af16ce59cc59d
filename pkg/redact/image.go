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

package redact

import (
	"context"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"

	"github.com/walteh/redacter/pkg/convert"
	"github.com/walteh/redacter/pkg/imageredact"
	"github.com/walteh/redacter/pkg/mediatype"
	"gitlab.com/tozd/go/errors"
)

// imageStage is the image moving through a chain. data is its encoded form,
// nil once img has been painted and not yet re-encoded.
type imageStage struct {
	img       image.Image
	data      []byte
	mediaType string
	format    string
	changed   bool

	doc     *convert.Document
	ocrText string
}

func (s *imageStage) encoded() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	data, mt, err := imageredact.Encode(s.img, s.format)
	if err != nil {
		return nil, err
	}
	s.data, s.mediaType = data, mt
	return data, nil
}

func (s *imageStage) paint(r *imageredact.Redactor, boxes []imageredact.Box) {
	if len(boxes) == 0 {
		return
	}
	s.img = r.Apply(s.img, boxes)
	s.data = nil
	s.changed = true
}

func (e *Engine) redactImage(ctx context.Context, plan Plan, item Item) (*Result, error) {
	img, format, err := imageredact.Decode(item.Data)
	if err != nil {
		return nil, err
	}
	st := &imageStage{img: img, data: item.Data, mediaType: item.MediaType, format: format}

	findings, err := e.chainImage(ctx, plan.Backends, st)
	if err != nil {
		return nil, err
	}
	if !st.changed {
		return &Result{Status: StatusRedacted, Findings: findings, Outputs: []Output{{Name: item.Name, MediaType: item.MediaType, Data: item.Data}}}, nil
	}

	data, err := st.encoded()
	if err != nil {
		return nil, err
	}
	name := item.Name
	if mediatype.Base(st.mediaType) != mediatype.Base(item.MediaType) {
		name = withExt(name, extFor(st.mediaType))
	}
	return &Result{Status: StatusRedacted, Findings: findings, Outputs: []Output{{Name: name, MediaType: st.mediaType, Data: data}}}, nil
}

// 📄 redactPdf rasterizes every page and runs each through the chain. The
// document is not reassembled: the outputs are the page images, in order.
func (e *Engine) redactPdf(ctx context.Context, plan Plan, item Item) (*Result, error) {
	pages, err := e.conv.Pages(ctx, item.Data)
	if err != nil {
		return nil, err
	}

	res := &Result{Status: StatusRedacted, Outputs: make([]Output, 0, len(pages))}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		st := &imageStage{img: page, format: "png", mediaType: "image/png"}
		findings, err := e.chainImage(ctx, plan.Backends, st)
		if err != nil {
			return nil, errors.Errorf("page %d: %w", i+1, err)
		}
		data, err := st.encoded()
		if err != nil {
			return nil, err
		}
		res.Findings = append(res.Findings, findings...)
		res.Outputs = append(res.Outputs, Output{Name: PageName(item.Name, i+1, len(pages)), MediaType: st.mediaType, Data: data})
	}
	return res, nil
}

// 🔗 chainImage folds an image through backends. Image-native backends see
// the current encoded image; the others see its OCR text, recognized once,
// and their span findings are mapped back onto the recognized regions.
func (e *Engine) chainImage(ctx context.Context, backends []Backend, st *imageStage) ([]Finding, error) {
	var all []Finding
	for _, b := range backends {
		d := b.Descriptor()
		var found []Finding
		var err error
		if d.For(mediatype.Image) == NativeSupport {
			found, err = e.imageStep(ctx, b, d, st)
		} else {
			found, err = e.ocrStep(ctx, b, st)
		}
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

func (e *Engine) imageStep(ctx context.Context, b Backend, d Descriptor, st *imageStage) ([]Finding, error) {
	data, err := st.encoded()
	if err != nil {
		return nil, err
	}
	bounds := st.img.Bounds()
	resp, err := e.call(ctx, b, &Request{Category: mediatype.Image, Content: Content{Image: &Image{
		Data:      data,
		MediaType: st.mediaType,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}}})
	if err != nil {
		return nil, err
	}

	if d.EditsImages && resp.Image != nil && len(resp.Image.Data) > 0 {
		edited, format, err := imageredact.Decode(resp.Image.Data)
		if err != nil {
			return nil, Errorf(KindMalformedResponse, d.Name, "edited image: %v", err)
		}
		st.img, st.data, st.format, st.changed = edited, resp.Image.Data, format, true
		st.mediaType = "image/" + format
		if resp.Image.MediaType != "" {
			st.mediaType = resp.Image.MediaType
		}
		st.doc = nil
	}

	var found []Finding
	var boxes []imageredact.Box
	for _, f := range resp.Findings {
		if f.Box != nil {
			found = append(found, f)
			boxes = append(boxes, *f.Box)
		}
	}
	st.paint(e.images, boxes)
	return found, nil
}

func (e *Engine) ocrStep(ctx context.Context, b Backend, st *imageStage) ([]Finding, error) {
	if st.doc == nil {
		doc, err := e.conv.Recognize(ctx, st.img)
		if err != nil {
			return nil, err
		}
		st.doc, st.ocrText = doc, doc.Text
	}
	if st.ocrText == "" {
		return nil, nil
	}

	resp, err := e.call(ctx, b, &Request{Category: mediatype.PlainText, Content: Content{Text: st.ocrText}})
	if err != nil {
		return nil, err
	}
	spans := textFindings(resp.Findings, len(st.ocrText))
	st.ocrText = MaskText(st.ocrText, spansOf(spans), e.opts.Mask)

	space := imageredact.Size{Width: st.doc.Size.X, Height: st.doc.Size.Y}
	var found []Finding
	var boxes []imageredact.Box
	for _, f := range spans {
		for _, r := range st.doc.Locate(f.Span.Start, f.Span.End) {
			box := imageredact.BoxFromRect(r, space)
			boxes = append(boxes, box)
			found = append(found, BoxFinding(f.InfoType, f.Confidence, box))
		}
	}
	st.paint(e.images, boxes)
	return found, nil
}

// 📛 PageName names page n of total for a converted document: the source
// name without its extension plus a zero-padded page index, e.g.
// docs/report.page-001.png
func PageName(name string, n, total int) string {
	width := max(3, len(strconv.Itoa(total)))
	stem := strings.TrimSuffix(name, path.Ext(name))
	return fmt.Sprintf("%s.page-%0*d.png", stem, width, n)
}

func withExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

func extFor(mediaType string) string {
	switch mediatype.Base(mediaType) {
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tiff"
	default:
		return "." + strings.TrimPrefix(mediatype.Base(mediaType), "image/")
	}
}
