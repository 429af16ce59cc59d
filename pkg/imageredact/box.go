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
	"fmt"
	"image"
	"math"
)

// 📐 Size is the pixel size of an image
type Size struct {
	Width  int
	Height int
}

// SizeOf returns the size of r
func SizeOf(r image.Rectangle) Size {
	return Size{Width: r.Dx(), Height: r.Dy()}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// 🔲 Box is a rectangle expressed in the coordinate space of the image that
// produced it. Space is that image's size, so the box can be rescaled onto an
// image of any other resolution.
type Box struct {
	X1, Y1, X2, Y2 float64
	Space          Size
}

// 🔍 Pixels maps the box onto an image of size target, origin at 0,0. The
// result covers every pixel the box touches and is clipped to the image.
func (b Box) Pixels(target Size) image.Rectangle {
	sx, sy := 1.0, 1.0
	if b.Space.Width > 0 && b.Space.Height > 0 {
		sx = float64(target.Width) / float64(b.Space.Width)
		sy = float64(target.Height) / float64(b.Space.Height)
	}

	x1, x2 := math.Min(b.X1, b.X2)*sx, math.Max(b.X1, b.X2)*sx
	y1, y2 := math.Min(b.Y1, b.Y2)*sy, math.Max(b.Y1, b.Y2)*sy

	r := image.Rect(
		int(math.Floor(x1)), int(math.Floor(y1)),
		int(math.Ceil(x2)), int(math.Ceil(y2)),
	)
	return r.Intersect(image.Rect(0, 0, target.Width, target.Height))
}

// 📏 Grow pads the box by fraction of its own size on each side, clamped to
// its space
func (b Box) Grow(fraction float64) Box {
	dx := (b.X2 - b.X1) * fraction
	dy := (b.Y2 - b.Y1) * fraction
	out := Box{X1: b.X1 - dx, Y1: b.Y1 - dy, X2: b.X2 + dx, Y2: b.Y2 + dy, Space: b.Space}
	if b.Space.Width > 0 && b.Space.Height > 0 {
		out.X1 = math.Max(0, out.X1)
		out.Y1 = math.Max(0, out.Y1)
		out.X2 = math.Min(float64(b.Space.Width), out.X2)
		out.Y2 = math.Min(float64(b.Space.Height), out.Y2)
	}
	return out
}

// BoxFromRect converts a pixel rectangle of an image of size space into a Box
func BoxFromRect(r image.Rectangle, space Size) Box {
	return Box{
		X1: float64(r.Min.X), Y1: float64(r.Min.Y),
		X2: float64(r.Max.X), Y2: float64(r.Max.Y),
		Space: space,
	}
}
