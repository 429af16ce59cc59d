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
	"fmt"

	"github.com/walteh/redacter/pkg/imageredact"
)

// Span is a byte range [Start, End)
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes
func (s Span) Len() int { return s.End - s.Start }

// Cell addresses a table cell; Row counts data rows only
type Cell struct {
	Row    int
	Column int
}

// 🔎 Finding is one detected PII instance. Exactly one of Span (text), Cell
// (table, with an optional Span inside the cell) or Box (image) locates it.
// Box carries the coordinate space it was measured in.
type Finding struct {
	InfoType   string
	Confidence float64

	Span *Span
	Cell *Cell
	Box  *imageredact.Box
}

// TextFinding locates a finding by byte range
func TextFinding(infoType string, confidence float64, start, end int) Finding {
	return Finding{InfoType: infoType, Confidence: confidence, Span: &Span{Start: start, End: end}}
}

// CellFinding locates a finding by table cell; a nil span covers the whole cell
func CellFinding(infoType string, confidence float64, row, column int, span *Span) Finding {
	return Finding{InfoType: infoType, Confidence: confidence, Cell: &Cell{Row: row, Column: column}, Span: span}
}

// BoxFinding locates a finding by image rectangle
func BoxFinding(infoType string, confidence float64, box imageredact.Box) Finding {
	return Finding{InfoType: infoType, Confidence: confidence, Box: &box}
}

func (f Finding) String() string {
	switch {
	case f.Cell != nil:
		return fmt.Sprintf("%s@cell(%d,%d)", f.InfoType, f.Cell.Row, f.Cell.Column)
	case f.Box != nil:
		return fmt.Sprintf("%s@box(%.0f,%.0f,%.0f,%.0f/%s)", f.InfoType, f.Box.X1, f.Box.Y1, f.Box.X2, f.Box.Y2, f.Box.Space)
	case f.Span != nil:
		return fmt.Sprintf("%s@[%d,%d)", f.InfoType, f.Span.Start, f.Span.End)
	default:
		return f.InfoType
	}
}
