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

package redact_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/redacter/pkg/convert"
	"github.com/walteh/redacter/pkg/imageredact"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/redact/fake"
	"gitlab.com/tozd/go/errors"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func textItem(s string) redact.Item {
	return redact.Item{Name: "notes.txt", MediaType: "text/plain", Category: mediatype.PlainText, Data: []byte(s)}
}

func fastOptions(opts redact.Options) redact.Options {
	opts.RetryInitial = time.Millisecond
	opts.RetryMax = 2 * time.Millisecond
	return opts
}

func TestRedactMasksFlaggedSpan(t *testing.T) {
	ctx := testContext(t)
	input := "my phone: 555-0100-99 call me"
	b := fake.New("mock", mediatype.PlainText)
	b.Spans = []redact.Span{{Start: 10, End: 20}}

	e := redact.NewEngine([]redact.Backend{b}, redact.Options{})
	res, err := e.Redact(ctx, textItem(input))
	require.NoError(t, err, "redacting")

	require.Len(t, res.Outputs, 1, "one output")
	out := res.Outputs[0].Data
	require.Len(t, out, len(input), "mask preserves length")
	assert.Equal(t, input[:10], string(out[:10]), "bytes before the span are unchanged")
	assert.Equal(t, "XXXXXXXXXX", string(out[10:20]), "bytes in the span are masked")
	assert.Equal(t, input[20:], string(out[20:]), "bytes after the span are unchanged")
	assert.Equal(t, redact.StatusRedacted, res.Status, "status")
	assert.Equal(t, redact.PhaseNative, res.Phase, "phase")
	assert.Equal(t, []string{"mock"}, res.Backends, "backends")
}

func TestRedactSamplingTail(t *testing.T) {
	input := "secret1 secret2 secret3"

	tests := []struct {
		name string
		tail redact.TailPolicy
		want string
	}{
		{name: "tail_copied_raw", tail: redact.TailCopy, want: "XXXXXXX XXXXXXX secret3"},
		{name: "tail_dropped", tail: redact.TailDrop, want: "XXXXXXX XXXXXXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fake.New("mock", mediatype.PlainText)
			b.Needles = []string{"secret1", "secret2", "secret3"}

			e := redact.NewEngine([]redact.Backend{b}, redact.Options{SamplingSize: 15, SamplingTail: tt.tail})
			res, err := e.Redact(testContext(t), textItem(input))
			require.NoError(t, err, "redacting")

			assert.Equal(t, tt.want, string(res.Outputs[0].Data), "output should match")
			assert.Equal(t, 8, res.Unsampled, "unsampled bytes are reported")
			assert.Equal(t, "secret1 secret2", b.Requests()[0].Content.Text, "only the sample is sent")
		})
	}
}

func TestRedactChainsBackendsInOrder(t *testing.T) {
	first := fake.New("first", mediatype.PlainText)
	first.Needles = []string{"alice"}
	second := fake.New("second", mediatype.PlainText)
	second.Needles = []string{"bob"}

	e := redact.NewEngine([]redact.Backend{first, second}, redact.Options{})
	res, err := e.Redact(testContext(t), textItem("alice and bob"))
	require.NoError(t, err, "redacting")

	assert.Equal(t, "XXXXX and XXX", string(res.Outputs[0].Data), "both backends applied")
	assert.Equal(t, "XXXXX and bob", second.Requests()[0].Content.Text, "second backend sees the first one's output")
	assert.Len(t, res.Findings, 2, "findings accumulate")
	assert.Equal(t, []string{"first", "second"}, res.Backends, "chain order")
}

func TestPlan(t *testing.T) {
	text := fake.New("text", mediatype.PlainText)
	img := fake.New("img", mediatype.Image)
	table := fake.New("table", mediatype.Table, mediatype.PlainText)

	withOCR := convert.New(fakeRaster{}, fakeOCR{}, 0)

	tests := []struct {
		name      string
		backends  []redact.Backend
		conv      *convert.Converter
		category  mediatype.Category
		wantPhase redact.Phase
		wantNames []string
	}{
		{name: "native_wins", backends: []redact.Backend{text, img, table}, category: mediatype.PlainText, wantPhase: redact.PhaseNative, wantNames: []string{"text", "table"}},
		{name: "native_table_only", backends: []redact.Backend{text, table}, category: mediatype.Table, wantPhase: redact.PhaseNative, wantNames: []string{"table"}},
		{name: "table_via_text", backends: []redact.Backend{img, text}, category: mediatype.Table, wantPhase: redact.PhaseConversion, wantNames: []string{"text"}},
		{name: "image_via_ocr", backends: []redact.Backend{text}, conv: withOCR, category: mediatype.Image, wantPhase: redact.PhaseConversion, wantNames: []string{"text"}},
		{name: "image_without_ocr", backends: []redact.Backend{text}, category: mediatype.Image, wantPhase: redact.PhaseNone},
		{name: "pdf_needs_rasterizer", backends: []redact.Backend{img}, category: mediatype.Pdf, wantPhase: redact.PhaseNone},
		{name: "pdf_via_pages", backends: []redact.Backend{img, text}, conv: withOCR, category: mediatype.Pdf, wantPhase: redact.PhaseConversion, wantNames: []string{"img", "text"}},
		{name: "unknown", backends: []redact.Backend{text, img}, category: mediatype.Unknown, wantPhase: redact.PhaseNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := redact.NewEngine(tt.backends, redact.Options{Converter: tt.conv})
			for range 3 {
				p := e.Plan(tt.category)
				assert.Equal(t, tt.wantPhase, p.Phase, "phase should match")
				if tt.wantNames == nil {
					assert.Empty(t, p.Backends, "no backends")
				} else {
					assert.Equal(t, tt.wantNames, p.Names(), "chain should match")
				}
			}
		})
	}
}

func TestRedactUnsupported(t *testing.T) {
	item := redact.Item{Name: "blob.bin", Category: mediatype.Unknown, Data: []byte{1, 2, 3}}
	b := fake.New("text", mediatype.PlainText)

	t.Run("skipped_by_default", func(t *testing.T) {
		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "unsupported is not an error")
		assert.Equal(t, redact.StatusSkipped, res.Status, "status")
		assert.Empty(t, res.Outputs, "nothing is written")
		assert.NotEmpty(t, res.Reason, "reason is reported")
	})

	t.Run("copied_when_allowed", func(t *testing.T) {
		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{AllowUnsupportedCopies: true}).Redact(testContext(t), item)
		require.NoError(t, err, "unsupported is not an error")
		assert.Equal(t, redact.StatusPassthrough, res.Status, "status")
		require.Len(t, res.Outputs, 1, "one output")
		assert.Equal(t, item.Data, res.Outputs[0].Data, "copied as is")
	})

	t.Run("no_backends_copies", func(t *testing.T) {
		res, err := redact.NewEngine(nil, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "plain copy")
		assert.Equal(t, redact.StatusPassthrough, res.Status, "status")
	})

	assert.Zero(t, b.Calls(), "backend is never called")
}

func TestRedactRetries(t *testing.T) {
	transient := redact.Errorf(redact.KindTransient, "mock", "timeout")
	quota := redact.Errorf(redact.KindQuotaExceeded, "mock", "slow down")

	t.Run("recovers_after_transient_errors", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		b.Errs = []error{transient, quota}
		b.Needles = []string{"pii"}

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{MaxRetries: 3}))
		res, err := e.Redact(testContext(t), textItem("has pii"))
		require.NoError(t, err, "retries should recover")
		assert.Equal(t, "has XXX", string(res.Outputs[0].Data), "redacted after retry")
		assert.Equal(t, 3, b.Calls(), "two failures and one success")
	})

	t.Run("gives_up_after_max_retries", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		b.Errs = []error{transient, transient, transient}

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{MaxRetries: 1}))
		_, err := e.Redact(testContext(t), textItem("has pii"))
		require.Error(t, err, "retries are bounded")
		assert.Equal(t, redact.KindTransient, redact.KindOf(err), "kind survives wrapping")
		assert.Equal(t, 2, b.Calls(), "one try plus one retry")
	})

	t.Run("non_transient_is_not_retried", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		b.Errs = []error{redact.Errorf(redact.KindMalformedResponse, "mock", "garbage")}

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{MaxRetries: 3}))
		_, err := e.Redact(testContext(t), textItem("has pii"))
		require.Error(t, err, "item fails")
		assert.Equal(t, redact.KindMalformedResponse, redact.KindOf(err), "kind")
		assert.Equal(t, 1, b.Calls(), "no retry")
	})

	t.Run("non_transient_falls_back_to_copy", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		b.Errs = []error{redact.Errorf(redact.KindMalformedResponse, "mock", "garbage")}

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{AllowUnsupportedCopies: true}))
		res, err := e.Redact(testContext(t), textItem("has pii"))
		require.NoError(t, err, "fallback copy")
		assert.Equal(t, redact.StatusPassthrough, res.Status, "status")
		assert.Equal(t, "has pii", string(res.Outputs[0].Data), "copied raw")
	})

	t.Run("unauthenticated_is_fatal", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		b.Errs = []error{redact.Errorf(redact.KindUnauthenticated, "mock", "bad key")}

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{AllowUnsupportedCopies: true, MaxRetries: 3}))
		_, err := e.Redact(testContext(t), textItem("has pii"))
		require.Error(t, err, "fatal errors are never downgraded")
		assert.True(t, redact.IsFatal(err), "error is fatal")
		assert.Equal(t, 1, b.Calls(), "no retry")
	})

	t.Run("cancelled_before_call", func(t *testing.T) {
		b := fake.New("mock", mediatype.PlainText)
		ctx, cancel := context.WithCancel(testContext(t))
		cancel()

		e := redact.NewEngine([]redact.Backend{b}, fastOptions(redact.Options{AllowUnsupportedCopies: true}))
		_, err := e.Redact(ctx, textItem("has pii"))
		require.Error(t, err, "cancellation is returned")
		assert.True(t, errors.Is(err, context.Canceled), "error wraps context.Canceled")
		assert.Zero(t, b.Calls(), "backend not called")
	})
}

func TestRedactIdempotent(t *testing.T) {
	b := fake.New("mock", mediatype.PlainText)
	b.Needles = []string{"555-0100", "alice@example.com"}
	e := redact.NewEngine([]redact.Backend{b}, redact.Options{})

	first, err := e.Redact(testContext(t), textItem("mail alice@example.com or call 555-0100"))
	require.NoError(t, err, "first pass")
	require.Len(t, first.Findings, 2, "first pass finds both")

	item := textItem(string(first.Outputs[0].Data))
	second, err := e.Redact(testContext(t), item)
	require.NoError(t, err, "second pass")
	assert.Empty(t, second.Findings, "nothing left to find")
	assert.Equal(t, first.Outputs[0].Data, second.Outputs[0].Data, "output is stable")
}

func TestRedactTable(t *testing.T) {
	data := []byte("name,phone\nann,5550100\nbob,5550101\n")
	item := redact.Item{Name: "people.csv", MediaType: "text/csv", Category: mediatype.Table, Data: data}

	t.Run("native_cells", func(t *testing.T) {
		b := fake.New("dlp", mediatype.Table)
		b.Needles = []string{"5550100"}

		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		assert.Equal(t, "name,phone\nann,XXXXXXX\nbob,5550101\n", string(res.Outputs[0].Data), "cell masked")
		assert.Equal(t, redact.PhaseNative, res.Phase, "phase")
		require.NotNil(t, b.Requests()[0].Content.Table, "table sent as table")
	})

	t.Run("via_text", func(t *testing.T) {
		b := fake.New("text", mediatype.PlainText)
		b.Needles = []string{"bob"}

		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		assert.Equal(t, "name,phone\nann,5550100\nXXX,5550101\n", string(res.Outputs[0].Data), "text route masks")
		assert.Equal(t, redact.PhaseConversion, res.Phase, "phase")
		assert.Equal(t, mediatype.PlainText, b.Requests()[0].Category, "sent as text")
	})

	t.Run("sampled_rows", func(t *testing.T) {
		b := fake.New("dlp", mediatype.Table)
		b.Needles = []string{"555"}

		e := redact.NewEngine([]redact.Backend{b}, redact.Options{SamplingSize: 23, SamplingTail: redact.TailCopy})
		res, err := e.Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		assert.Equal(t, "name,phone\nann,XXX0100\nbob,5550101\n", string(res.Outputs[0].Data), "tail rows copied raw")
		assert.Len(t, b.Requests()[0].Content.Table.Rows, 1, "only the sampled row is sent")
	})
}

func TestRedactTableDelimiter(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		delimiter rune
		data      string
		want      string
	}{
		{
			name:      "tsv_defaults_to_tab",
			mediaType: "text/tab-separated-values",
			data:      "name\tphone\nann, lee\t5550100\n",
			want:      "name\tphone\nann, lee\tXXXXXXX\n",
		},
		{
			name:      "tsv_with_parameters",
			mediaType: "text/tab-separated-values; charset=utf-8",
			data:      "name\tphone\nann\t5550100\n",
			want:      "name\tphone\nann\tXXXXXXX\n",
		},
		{
			name:      "configured_delimiter_wins",
			mediaType: "text/tab-separated-values",
			delimiter: ';',
			data:      "name;phone\nann\tlee;5550100\n",
			want:      "name;phone\nann\tlee;XXXXXXX\n",
		},
		{
			name:      "csv_stays_comma",
			mediaType: "text/csv",
			data:      "name,phone\nann\tlee,5550100\n",
			want:      "name,phone\nann\tlee,XXXXXXX\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fake.New("dlp", mediatype.Table)
			b.Needles = []string{"5550100"}
			item := redact.Item{Name: "people", MediaType: tt.mediaType, Category: mediatype.Table, Data: []byte(tt.data)}

			e := redact.NewEngine([]redact.Backend{b}, redact.Options{Table: redact.TableOptions{Delimiter: tt.delimiter}})
			res, err := e.Redact(testContext(t), item)
			require.NoError(t, err, "redacting")
			assert.Equal(t, tt.want, string(res.Outputs[0].Data), "output keeps the delimiter")

			rows := b.Requests()[0].Content.Table.Rows
			require.Len(t, rows, 1, "one data row")
			assert.Len(t, rows[0], 2, "row splits into two cells")
		})
	}
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 220, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "encoding png")
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := imageredact.Decode(data)
	require.NoError(t, err, "decoding output")
	return img
}

func isBlack(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return r == 0 && g == 0 && b == 0 && a == 0xffff
}

func TestRedactImageNative(t *testing.T) {
	data := solidPNG(t, 40, 20)
	item := redact.Item{Name: "scan.png", MediaType: "image/png", Category: mediatype.Image, Data: data}

	t.Run("boxes_rescaled_and_filled", func(t *testing.T) {
		b := fake.New("vision", mediatype.Image)
		// detected on a half size copy
		b.Boxes = []imageredact.Box{{X1: 0, Y1: 0, X2: 5, Y2: 5, Space: imageredact.Size{Width: 20, Height: 10}}}

		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		img := decode(t, res.Outputs[0].Data)

		assert.True(t, isBlack(img.At(0, 0)), "box origin filled")
		assert.True(t, isBlack(img.At(9, 9)), "box rescaled to source pixels")
		assert.False(t, isBlack(img.At(10, 10)), "outside the box is untouched")
		assert.Equal(t, "scan.png", res.Outputs[0].Name, "name kept")
	})

	t.Run("edited_image_used_as_is", func(t *testing.T) {
		edited := solidPNG(t, 40, 20)
		b := fake.New("editor", mediatype.Image)
		b.Desc.EditsImages = true
		b.Edited = &redact.Image{Data: edited, MediaType: "image/png"}

		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		assert.Equal(t, edited, res.Outputs[0].Data, "backend output is written unchanged")
	})

	t.Run("no_findings_keeps_bytes", func(t *testing.T) {
		b := fake.New("vision", mediatype.Image)
		res, err := redact.NewEngine([]redact.Backend{b}, redact.Options{}).Redact(testContext(t), item)
		require.NoError(t, err, "redacting")
		assert.Equal(t, data, res.Outputs[0].Data, "untouched image is not re-encoded")
	})
}

type fakeRaster struct{ pages []image.Image }

func (f fakeRaster) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	return f.pages, nil
}

type fakeOCR struct{ regions []convert.Region }

func (f fakeOCR) Recognize(ctx context.Context, img image.Image) ([]convert.Region, error) {
	return f.regions, nil
}

func TestRedactImageViaOCR(t *testing.T) {
	ocr := fakeOCR{regions: []convert.Region{
		{Bounds: image.Rect(0, 0, 10, 5), Text: "name"},
		{Bounds: image.Rect(12, 0, 20, 5), Text: "john"},
		{Bounds: image.Rect(22, 0, 30, 5), Text: "smith"},
	}}
	b := fake.New("text", mediatype.PlainText)
	b.Needles = []string{"john smith"}

	e := redact.NewEngine([]redact.Backend{b}, redact.Options{Converter: convert.New(nil, ocr, 0)})
	item := redact.Item{Name: "id.png", MediaType: "image/png", Category: mediatype.Image, Data: solidPNG(t, 40, 20)}
	res, err := e.Redact(testContext(t), item)
	require.NoError(t, err, "redacting")

	assert.Equal(t, "name john smith", b.Requests()[0].Content.Text, "OCR text is sent")
	assert.Len(t, res.Findings, 2, "a span split over two regions yields both")

	img := decode(t, res.Outputs[0].Data)
	assert.True(t, isBlack(img.At(12, 0)), "first region filled")
	assert.True(t, isBlack(img.At(29, 4)), "second region filled")
	assert.False(t, isBlack(img.At(5, 2)), "unflagged region untouched")
	assert.False(t, isBlack(img.At(11, 2)), "gap between regions untouched")
}

func TestRedactPdfPages(t *testing.T) {
	// each page is tagged by its width so order can be checked
	var pages []image.Image
	for i := range 4 {
		pages = append(pages, decode(t, solidPNG(t, 8+i, 8)))
	}

	b := fake.New("vision", mediatype.Image)
	b.Boxes = []imageredact.Box{{X1: 0, Y1: 0, X2: 2, Y2: 2}}

	e := redact.NewEngine([]redact.Backend{b}, redact.Options{Converter: convert.New(fakeRaster{pages: pages}, nil, 0)})
	item := redact.Item{Name: "docs/report.pdf", MediaType: "application/pdf", Category: mediatype.Pdf, Data: []byte("%PDF-1.7")}
	res, err := e.Redact(testContext(t), item)
	require.NoError(t, err, "redacting")

	require.Len(t, res.Outputs, 4, "one output per page")
	for i, out := range res.Outputs {
		assert.Equal(t, redact.PageName("docs/report.pdf", i+1, 4), out.Name, "page name")
		assert.Equal(t, "image/png", out.MediaType, "pages are png")
		img := decode(t, out.Data)
		assert.Equal(t, 8+i, img.Bounds().Dx(), "page order preserved")
		assert.True(t, isBlack(img.At(1, 1)), "page redacted")
	}
	assert.Equal(t, 4, b.Calls(), "one call per page")
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "docs/report.page-001.png", redact.PageName("docs/report.pdf", 1, 9), "padded to three")
	assert.Equal(t, "report.page-0042.png", redact.PageName("report.pdf", 42, 1200), "padded to the page count width")
}

func TestRedactConcurrencyBound(t *testing.T) {
	const limit = 3
	b := fake.New("slow", mediatype.PlainText)
	b.Delay = 2 * time.Millisecond

	rl := redact.NewRateLimiter(limit, nil)
	e := redact.NewEngine([]redact.Backend{b}, redact.Options{Limiter: rl})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Redact(testContext(t), textItem("x"))
			assert.NoError(t, err, "redacting")
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, b.Calls(), "every item called the backend")
	assert.LessOrEqual(t, rl.Peak(), limit, "outstanding calls never exceed the cap")
}
