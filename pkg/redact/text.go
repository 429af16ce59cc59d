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
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultMask replaces every redacted byte
const DefaultMask = 'X'

// ✂️ sampleText splits text so that head holds at most n bytes and ends on a
// rune boundary. n <= 0 disables sampling.
func sampleText(text string, n int) (head, tail string) {
	if n <= 0 || len(text) <= n {
		return text, ""
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], text[cut:]
}

// clipSpans drops spans outside [0, limit) and trims the rest to it
func clipSpans(spans []Span, limit int) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		s.Start = max(s.Start, 0)
		s.End = min(s.End, limit)
		if s.Start < s.End {
			out = append(out, s)
		}
	}
	return out
}

// 🎭 MaskText replaces every byte covered by spans with mask. Spans are
// widened to whole runes so the result stays valid UTF-8, and the length of
// text is preserved.
func MaskText(text string, spans []Span, mask byte) string {
	spans = clipSpans(spans, len(text))
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, s := range spans {
		start, end := s.Start, s.End
		for start > 0 && !utf8.RuneStart(b[start]) {
			start--
		}
		for end < len(b) && !utf8.RuneStart(b[end]) {
			end++
		}
		for i := start; i < end; i++ {
			b[i] = mask
		}
	}
	return string(b)
}

// 🔍 Occurrences returns the byte span of every non-overlapping occurrence of
// each needle in text, ordered by position
func Occurrences(text string, needles ...string) []Span {
	var out []Span
	for _, n := range needles {
		if n == "" {
			continue
		}
		for off := 0; off < len(text); {
			i := strings.Index(text[off:], n)
			if i < 0 {
				break
			}
			out = append(out, Span{Start: off + i, End: off + i + len(n)})
			off += i + len(n)
		}
	}
	slices.SortFunc(out, func(a, b Span) int { return a.Start - b.Start })
	return out
}

// 🔢 RuneIndex maps rune (code point) offsets to byte offsets, for services
// that count characters instead of bytes
type RuneIndex []int

// NewRuneIndex indexes text; the extra final entry is len(text)
func NewRuneIndex(text string) RuneIndex {
	ix := make(RuneIndex, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		ix = append(ix, i)
	}
	return append(ix, len(text))
}

// Span converts a rune range into a byte span; ranges outside the text are
// clamped and ok is false when nothing remains
func (ix RuneIndex) Span(start, end int) (Span, bool) {
	last := len(ix) - 1
	start = min(max(start, 0), last)
	end = min(max(end, 0), last)
	if start >= end {
		return Span{}, false
	}
	return Span{Start: ix[start], End: ix[end]}, true
}
