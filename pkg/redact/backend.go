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

	"github.com/walteh/redacter/pkg/mediatype"
)

// 🎚️ Support is a backend's capability level for one category
type Support int

const (
	Unsupported Support = iota
	ConversionRequired
	NativeSupport
)

// String returns a string representation of Support
func (s Support) String() string {
	switch s {
	case NativeSupport:
		return "native"
	case ConversionRequired:
		return "conversion"
	default:
		return "unsupported"
	}
}

// 📇 Descriptor is a backend's capability table. It must not change for the
// life of the process.
type Descriptor struct {
	Name    string
	Support map[mediatype.Category]Support
	// EditsImages is set when the backend returns an edited image instead of
	// boxes for the image redactor
	EditsImages bool
}

// 🏭 NewDescriptor declares the native categories of a backend and derives
// the ConversionRequired ones from them:
//   - markup and tables can be sent as text to a text backend
//   - images can be OCR'd for a text backend
//   - pdf pages can be rasterized for an image backend, or OCR'd for a text one
func NewDescriptor(name string, editsImages bool, native ...mediatype.Category) Descriptor {
	d := Descriptor{Name: name, Support: map[mediatype.Category]Support{}, EditsImages: editsImages}
	for _, c := range native {
		d.Support[c] = NativeSupport
	}

	derive := func(c mediatype.Category, ok bool) {
		if ok && d.Support[c] == Unsupported {
			d.Support[c] = ConversionRequired
		}
	}
	text := d.Support[mediatype.PlainText] == NativeSupport
	img := d.Support[mediatype.Image] == NativeSupport
	derive(mediatype.MarkupOrStructured, text)
	derive(mediatype.Table, text)
	derive(mediatype.Image, text)
	derive(mediatype.Pdf, text || img)
	return d
}

// For returns the support level for c
func (d Descriptor) For(c mediatype.Category) Support {
	return d.Support[c]
}

// 🛡️ Backend is an adapter to one external detection or redaction service.
// Implementations must be safe for concurrent use.
type Backend interface {
	Descriptor() Descriptor
	Redact(ctx context.Context, req *Request) (*Response, error)
}

// 📨 Request is one backend invocation. Category is the form the content is
// presented in, which differs from the item's category on conversion routes.
type Request struct {
	Category mediatype.Category
	Content  Content
}

// Content carries exactly one of its fields, matching the request category
type Content struct {
	Text  string
	Table *Table
	Image *Image
}

// 📊 Table is a parsed CSV payload. Headers is nil when the input has none.
type Table struct {
	Headers []string
	Rows    [][]string
}

// 🖼️ Image is an encoded raster image plus its pixel size
type Image struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

// 📬 Response holds a backend's findings, or the edited image for backends
// with EditsImages set
type Response struct {
	Findings []Finding
	Image    *Image
}
