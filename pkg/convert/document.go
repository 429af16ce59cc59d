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
	"image"
	"strings"
)

// 🔲 Region is one recognized piece of text and where it sits, in pixels of
// the recognized image with the origin at 0,0
type Region struct {
	Bounds image.Rectangle
	Text   string
}

// 📝 Document is OCR output flattened to one string; each region keeps the
// byte range it occupies in Text
type Document struct {
	Text    string
	Regions []Region
	Size    image.Point // size of the recognized image

	offsets [][2]int
}

// 🏭 NewDocument joins region texts with single spaces
func NewDocument(regions []Region, size image.Point) *Document {
	d := &Document{Size: size}
	var b strings.Builder
	for _, r := range regions {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(r.Text)
		d.Regions = append(d.Regions, r)
		d.offsets = append(d.offsets, [2]int{start, b.Len()})
	}
	d.Text = b.String()
	return d
}

// 🎯 Locate returns the bounds of every region overlapping [start, end).
// A span split across several regions yields all of them.
func (d *Document) Locate(start, end int) []image.Rectangle {
	var out []image.Rectangle
	for i, off := range d.offsets {
		if start < off[1] && end > off[0] {
			out = append(out, d.Regions[i].Bounds)
		}
	}
	return out
}
