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
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/walteh/redacter/pkg/mediatype"
	"gitlab.com/tozd/go/errors"
)

// 📊 TableOptions controls CSV parsing for Table items
type TableOptions struct {
	// Delimiter defaults to ',', or to a tab for text/tab-separated-values
	Delimiter rune
	// NoHeaders treats the first record as data
	NoHeaders bool
}

// forMediaType fills an unset delimiter from the item's media type
func (o TableOptions) forMediaType(mediaType string) TableOptions {
	if o.Delimiter == 0 && mediatype.Base(mediaType) == "text/tab-separated-values" {
		o.Delimiter = '\t'
	}
	return o
}

func (o TableOptions) comma() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// ParseTable reads CSV data; rows may have differing lengths
func ParseTable(data []byte, opts TableOptions) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = opts.comma()
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Errorf("parsing csv: %w", err)
	}

	t := &Table{Rows: records}
	if !opts.NoHeaders && len(records) > 0 {
		t.Headers, t.Rows = records[0], records[1:]
	}
	return t, nil
}

// EncodeTable writes t as CSV with the configured delimiter
func EncodeTable(t *Table, opts TableOptions) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = opts.comma()
	if t.Headers != nil {
		if err := w.Write(t.Headers); err != nil {
			return nil, errors.Errorf("writing csv headers: %w", err)
		}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, errors.Errorf("writing csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// ✂️ sampleRows keeps the leading rows whose encoded size, headers included,
// fits in n bytes. n <= 0 disables sampling.
func sampleRows(t *Table, n int, opts TableOptions) (head *Table, tail [][]string) {
	if n <= 0 {
		return t, nil
	}
	size := 0
	if t.Headers != nil {
		size = encodedLen(t.Headers, opts)
	}
	keep := 0
	for _, row := range t.Rows {
		size += encodedLen(row, opts)
		if size > n {
			break
		}
		keep++
	}
	return &Table{Headers: t.Headers, Rows: t.Rows[:keep]}, t.Rows[keep:]
}

func encodedLen(row []string, opts TableOptions) int {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = opts.comma()
	_ = w.Write(row)
	w.Flush()
	return sb.Len()
}

// 🎭 maskTable masks every cell finding in place. A finding without a span
// masks the whole cell; findings outside the table are ignored.
func maskTable(t *Table, findings []Finding, mask byte) {
	for _, f := range findings {
		if f.Cell == nil {
			continue
		}
		r, c := f.Cell.Row, f.Cell.Column
		if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
			continue
		}
		cell := t.Rows[r][c]
		span := Span{Start: 0, End: len(cell)}
		if f.Span != nil {
			span = *f.Span
		}
		t.Rows[r][c] = MaskText(cell, []Span{span}, mask)
	}
}

func cloneTable(t *Table) *Table {
	out := &Table{Rows: make([][]string, len(t.Rows))}
	if t.Headers != nil {
		out.Headers = append([]string(nil), t.Headers...)
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}
