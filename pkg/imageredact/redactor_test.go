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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBoxPixels(t *testing.T) {
	tests := []struct {
		name   string
		box    Box
		target Size
		want   image.Rectangle
	}{
		{
			name:   "same_space",
			box:    Box{X1: 2, Y1: 3, X2: 5, Y2: 7, Space: Size{10, 10}},
			target: Size{10, 10},
			want:   image.Rect(2, 3, 5, 7),
		},
		{
			name:   "upscaled_from_resized_copy",
			box:    Box{X1: 10, Y1: 10, X2: 20, Y2: 30, Space: Size{100, 100}},
			target: Size{1000, 500},
			want:   image.Rect(100, 50, 200, 150),
		},
		{
			name:   "fractional_edges_cover_outward",
			box:    Box{X1: 1.2, Y1: 1.8, X2: 2.1, Y2: 2.9, Space: Size{10, 10}},
			target: Size{10, 10},
			want:   image.Rect(1, 1, 3, 3),
		},
		{
			name:   "swapped_corners",
			box:    Box{X1: 5, Y1: 7, X2: 2, Y2: 3, Space: Size{10, 10}},
			target: Size{10, 10},
			want:   image.Rect(2, 3, 5, 7),
		},
		{
			name:   "clipped_to_image",
			box:    Box{X1: -5, Y1: -5, X2: 50, Y2: 4, Space: Size{10, 10}},
			target: Size{10, 10},
			want:   image.Rect(0, 0, 10, 4),
		},
		{
			name:   "missing_space_means_target_space",
			box:    Box{X1: 1, Y1: 1, X2: 3, Y2: 3},
			target: Size{10, 10},
			want:   image.Rect(1, 1, 3, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Pixels(tt.target), "pixel rectangle should match")
		})
	}
}

func TestBoxGrow(t *testing.T) {
	b := Box{X1: 10, Y1: 10, X2: 20, Y2: 20, Space: Size{25, 25}}.Grow(0.25)
	assert.Equal(t, Box{X1: 7.5, Y1: 7.5, X2: 22.5, Y2: 22.5, Space: Size{25, 25}}, b, "grow pads each side")

	clamped := Box{X1: 0, Y1: 0, X2: 20, Y2: 20, Space: Size{20, 20}}.Grow(0.5)
	assert.Equal(t, Box{X1: 0, Y1: 0, X2: 20, Y2: 20, Space: Size{20, 20}}, clamped, "grow is clamped to the space")
}

// 🧪 every pixel inside a box is overwritten, every pixel outside is untouched
func TestApplyFillProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(1, 40).Draw(rt, "width")
		h := rapid.IntRange(1, 40).Draw(rt, "height")
		src := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				src.SetNRGBA(x, y, color.NRGBA{
					// never pure black, so an overwritten pixel always differs
					R: uint8(rapid.IntRange(1, 255).Draw(rt, "r")),
					G: uint8(x * 5),
					B: uint8(y * 5),
					A: 0xff,
				})
			}
		}

		// boxes live in a space of a different resolution than the image
		space := Size{
			Width:  rapid.IntRange(1, 80).Draw(rt, "space_w"),
			Height: rapid.IntRange(1, 80).Draw(rt, "space_h"),
		}
		n := rapid.IntRange(0, 4).Draw(rt, "boxes")
		boxes := make([]Box, n)
		for i := range boxes {
			x1 := rapid.Float64Range(0, float64(space.Width)).Draw(rt, "x1")
			y1 := rapid.Float64Range(0, float64(space.Height)).Draw(rt, "y1")
			x2 := rapid.Float64Range(x1, float64(space.Width)).Draw(rt, "x2")
			y2 := rapid.Float64Range(y1, float64(space.Height)).Draw(rt, "y2")
			boxes[i] = Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Space: space}
		}

		out := New().Apply(src, boxes)

		size := Size{w, h}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				inside := false
				for _, b := range boxes {
					if (image.Point{x, y}).In(b.Pixels(size)) {
						inside = true
						break
					}
				}
				got := color.NRGBAModel.Convert(out.At(x, y)).(color.NRGBA)
				want := src.NRGBAAt(x, y)
				if inside && got == want {
					rt.Fatalf("pixel %d,%d inside a box was not overwritten", x, y)
				}
				if inside && got != (color.NRGBA{A: 0xff}) {
					rt.Fatalf("pixel %d,%d inside a box is %v, want opaque fill", x, y, got)
				}
				if !inside && got != want {
					rt.Fatalf("pixel %d,%d outside every box changed from %v to %v", x, y, want, got)
				}
			}
		}
	})
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	out := New().Apply(src, []Box{{X1: 0, Y1: 0, X2: 2, Y2: 2, Space: Size{4, 4}}})

	assert.Equal(t, color.RGBA{0x80, 0x80, 0x80, 0x80}, src.RGBAAt(0, 0), "source must stay untouched")
	assert.Equal(t, color.RGBA{A: 0xff}, out.(*image.RGBA).RGBAAt(0, 0), "output is filled")
}

func TestApplyOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 20, 20))
	out := New().Apply(src, []Box{{X1: 0, Y1: 0, X2: 1, Y2: 1, Space: Size{10, 10}}})

	assert.Equal(t, color.RGBA{A: 0xff}, out.(*image.RGBA).RGBAAt(10, 10), "box origin follows image bounds")
	assert.Equal(t, color.RGBA{}, out.(*image.RGBA).RGBAAt(11, 11), "neighbouring pixel untouched")
}

func TestEncodeDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 0xff})

	data, mt, err := Encode(src, "png")
	require.NoError(t, err, "encoding png")
	assert.Equal(t, "image/png", mt, "media type should be png")

	img, format, err := Decode(data)
	require.NoError(t, err, "decoding png")
	assert.Equal(t, "png", format, "format should round trip")
	assert.Equal(t, src.Bounds(), img.Bounds(), "bounds should round trip")

	size, err := DecodeSize(data)
	require.NoError(t, err, "decoding size")
	assert.Equal(t, Size{3, 2}, size, "size should match")

	_, mt, err = Encode(src, "webp")
	require.NoError(t, err, "webp falls back to png")
	assert.Equal(t, "image/png", mt, "fallback media type should be png")
}

func TestFit(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 2048, 1024))
	fitted := Fit(big, Size{1024, 1024})
	assert.Equal(t, image.Rect(0, 0, 1024, 512), fitted.Bounds(), "aspect ratio is kept")

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, small, Fit(small, Size{1024, 1024}), "small images are untouched")
}
