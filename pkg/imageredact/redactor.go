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

package imageredact

import (
	"image"
	"image/color"
	"slices"

	"golang.org/x/image/draw"
)

// 🖌️ Redactor paints opaque rectangles over images
type Redactor struct {
	fill color.Color
}

// 🏭 New creates a redactor filling with opaque black
func New() *Redactor {
	return &Redactor{fill: color.RGBA{A: 0xff}}
}

// WithFill sets the fill colour; alpha is forced to opaque
func (r *Redactor) WithFill(c color.Color) *Redactor {
	cr, cg, cb, _ := c.RGBA()
	r.fill = color.RGBA64{R: uint16(cr), G: uint16(cg), B: uint16(cb), A: 0xffff}
	return r
}

// 🎯 Apply returns a copy of src with every box filled. Boxes are rescaled
// from their own coordinate space onto src first. The fill replaces pixels
// outright (draw.Src), and pixels outside every box are copied unchanged.
func (r *Redactor) Apply(src image.Image, boxes []Box) image.Image {
	if len(boxes) == 0 {
		return src
	}

	bounds := src.Bounds()
	size := SizeOf(bounds)
	dst := clone(src)
	fill := image.NewUniform(r.fill)

	for _, b := range boxes {
		rect := b.Pixels(size).Add(bounds.Min)
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, fill, image.Point{}, draw.Src)
	}
	return dst
}

// clone copies src into an image that accepts exact colour writes
func clone(src image.Image) draw.Image {
	switch s := src.(type) {
	case *image.RGBA:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.NRGBA:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.RGBA64:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	case *image.NRGBA64:
		c := *s
		c.Pix = slices.Clone(s.Pix)
		return &c
	}
	// paletted and YCbCr images cannot hold an arbitrary fill exactly
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}
