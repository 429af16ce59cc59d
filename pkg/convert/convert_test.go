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
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestDocumentLocate(t *testing.T) {
	doc := NewDocument([]Region{
		{Bounds: image.Rect(0, 0, 10, 10), Text: "call"},  // [0,4)
		{Bounds: image.Rect(12, 0, 20, 10), Text: "555"},  // [5,8)
		{Bounds: image.Rect(22, 0, 30, 10), Text: "0100"}, // [9,13)
		{Bounds: image.Rect(0, 20, 5, 30), Text: "  "},    // dropped
		{Bounds: image.Rect(0, 40, 10, 50), Text: "bye"},  // [14,17)
	}, image.Pt(100, 100))

	require.Equal(t, "call 555 0100 bye", doc.Text, "recognized text is space joined")

	tests := []struct {
		name       string
		start, end int
		want       []image.Rectangle
	}{
		{name: "single_region", start: 0, end: 4, want: []image.Rectangle{image.Rect(0, 0, 10, 10)}},
		{name: "span_split_across_regions", start: 5, end: 13, want: []image.Rectangle{image.Rect(12, 0, 20, 10), image.Rect(22, 0, 30, 10)}},
		{name: "partial_overlap", start: 2, end: 6, want: []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(12, 0, 20, 10)}},
		{name: "separator_only", start: 4, end: 5, want: nil},
		{name: "last_region", start: 14, end: 17, want: []image.Rectangle{image.Rect(0, 40, 10, 50)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.Locate(tt.start, tt.end), "located regions should match")
		})
	}
}

func TestParseTSV(t *testing.T) {
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t",
		"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t96.5\tJohn",
		"5\t1\t1\t1\t1\t2\t65\t10\t60\t20\t95.1\tSmith",
		"5\t1\t1\t1\t1\t3\t130\t10\t5\t20\t10.0\t ",
	}, "\n")

	regions, err := ParseTSV(strings.NewReader(tsv))
	require.NoError(t, err, "parsing tsv")
	assert.Equal(t, []Region{
		{Bounds: image.Rect(10, 10, 60, 30), Text: "John"},
		{Bounds: image.Rect(65, 10, 125, 30), Text: "Smith"},
	}, regions, "only non-empty word rows are kept")
}

func TestParseTSVBadBox(t *testing.T) {
	_, err := ParseTSV(strings.NewReader("5\t1\t1\t1\t1\t1\tx\t10\t50\t20\t96\tJohn\n"))
	require.Error(t, err, "non-numeric boxes should fail")
}

func TestPageFilesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-02.png", "page-1.png", "page-x.png", "other.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600), "writing fixture")
	}

	files, err := pageFiles(dir)
	require.NoError(t, err, "listing pages")

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"page-1.png", "page-02.png", "page-10.png"}, names, "pages are ordered by number")
}

func TestDecodePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-1.png")
	f, err := os.Create(path)
	require.NoError(t, err, "creating png")
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))), "encoding png")
	require.NoError(t, f.Close(), "closing png")

	img, err := decodePNG(path)
	require.NoError(t, err, "decoding png")
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds(), "bounds should match")
}

type fakeRaster struct {
	pages []image.Image
	err   error
}

func (f fakeRaster) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	return f.pages, f.err
}

type fakeOCR struct{ regions []Region }

func (f fakeOCR) Recognize(ctx context.Context, img image.Image) ([]Region, error) {
	return f.regions, nil
}

func TestConverter(t *testing.T) {
	ctx := context.Background()

	t.Run("missing_tools", func(t *testing.T) {
		c := New(nil, nil, 0)
		assert.False(t, c.CanRender(), "no rasterizer")
		assert.False(t, c.CanRecognize(), "no ocr")

		_, err := c.Pages(ctx, []byte("%PDF"))
		var convErr *Error
		require.True(t, errors.As(err, &convErr), "error should be a conversion error")
		assert.Equal(t, KindRenderFailed, convErr.Kind, "kind should be render failed")
	})

	t.Run("render_failure_is_classified", func(t *testing.T) {
		c := New(fakeRaster{err: errors.New("corrupt")}, nil, 0)
		_, err := c.Pages(ctx, []byte("%PDF"))
		var convErr *Error
		require.True(t, errors.As(err, &convErr), "error should be a conversion error")
		assert.Equal(t, KindRenderFailed, convErr.Kind, "kind should be render failed")
	})

	t.Run("pages_in_order", func(t *testing.T) {
		pages := []image.Image{image.NewGray(image.Rect(0, 0, 1, 1)), image.NewGray(image.Rect(0, 0, 2, 2))}
		c := New(fakeRaster{pages: pages}, nil, 0)
		got, err := c.Pages(ctx, []byte("%PDF"))
		require.NoError(t, err, "rendering pages")
		assert.Equal(t, pages, got, "pages keep their order")
	})

	t.Run("recognize_builds_document", func(t *testing.T) {
		c := New(nil, fakeOCR{regions: []Region{{Bounds: image.Rect(0, 0, 1, 1), Text: "hi"}}}, 0)
		doc, err := c.Recognize(ctx, image.NewGray(image.Rect(0, 0, 8, 6)))
		require.NoError(t, err, "recognizing")
		assert.Equal(t, "hi", doc.Text, "document text should match")
		assert.Equal(t, image.Pt(8, 6), doc.Size, "document size is the image size")
	})
}
