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
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// 🖼️ Decode decodes any supported raster format and returns its format name
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Errorf("decoding image: %w", err)
	}
	return img, format, nil
}

// 📏 DecodeSize reads only the header to get the image size
func DecodeSize(data []byte) (Size, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Size{}, errors.Errorf("decoding image config: %w", err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// 💾 Encode writes img in format and returns the bytes with their media type.
// Formats without an encoder fall back to PNG.
func Encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	var err error
	mediaType := "image/" + format

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		mediaType = "image/png"
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, "", errors.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), mediaType, nil
}

// ⬇️ Fit scales img down to fit within bound, keeping its aspect ratio.
// Images already inside bound are returned as is.
func Fit(img image.Image, bound Size) image.Image {
	b := img.Bounds()
	if b.Dx() <= bound.Width && b.Dy() <= bound.Height {
		return img
	}
	scale := min(float64(bound.Width)/float64(b.Dx()), float64(bound.Height)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
