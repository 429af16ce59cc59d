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

package mediatype

import (
	"mime"
	"strings"
)

// 🏷️ Category selects the conversion and redaction path for an entry
type Category int

const (
	Unknown Category = iota
	PlainText
	MarkupOrStructured
	Table
	Image
	Pdf
)

// All lists every category except Unknown
var All = []Category{PlainText, MarkupOrStructured, Table, Image, Pdf}

// String returns a string representation of Category
func (c Category) String() string {
	switch c {
	case PlainText:
		return "text"
	case MarkupOrStructured:
		return "markup"
	case Table:
		return "table"
	case Image:
		return "image"
	case Pdf:
		return "pdf"
	default:
		return "unknown"
	}
}

// IsText reports whether the category is carried as text
func (c Category) IsText() bool {
	return c == PlainText || c == MarkupOrStructured || c == Table
}

var markup = map[string]bool{
	"text/html":          true,
	"text/xml":           true,
	"application/xml":    true,
	"text/css":           true,
	"application/json":   true,
	"application/yaml":   true,
	"application/x-yaml": true,
	"text/yaml":          true,
	"text/x-yaml":        true,
	"text/markdown":      true,
}

var images = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// 🔍 FromMediaType maps a MIME type, parameters allowed, onto a category
func FromMediaType(mt string) Category {
	base := Base(mt)
	switch {
	case base == "text/plain":
		return PlainText
	case markup[base]:
		return MarkupOrStructured
	case base == "text/csv", base == "text/tab-separated-values":
		return Table
	case images[base]:
		return Image
	case base == "application/pdf":
		return Pdf
	default:
		return Unknown
	}
}

// Base strips parameters and lowercases a MIME type
func Base(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	base, _, _ := strings.Cut(mt, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
