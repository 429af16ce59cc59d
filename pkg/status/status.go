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

package status

import (
	"sort"
	"sync"
)

// 📊 Outcome is the terminal state of one entry
type Outcome int

const (
	OutcomeRedacted Outcome = iota
	OutcomePassthrough
	OutcomeSkipped
	OutcomeFailed
)

// String returns a string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeRedacted:
		return "redacted"
	case OutcomePassthrough:
		return "copied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 Result describes what happened to one entry
type Result struct {
	Path     string   // source path, relative to the traversal root
	Outcome  Outcome  // terminal state
	Category string   // resolved content category
	Backends []string // backends applied, in order
	Findings int      // findings applied
	Outputs  []string // destination names written
	Reason   string   // why the entry was skipped, copied raw or failed
	Kind     string   // error kind for failures

	BytesRead    int64
	BytesWritten int64
	Unsampled    int // bytes beyond the sampling bound
}

// ❌ Failure records one failed entry
type Failure struct {
	Path   string
	Kind   string
	Reason string
}

// 📈 Report is a point-in-time copy of a Summary
type Report struct {
	Counts       map[Outcome]int
	Failures     []Failure
	Filtered     int
	Outputs      int
	BytesRead    int64
	BytesWritten int64
}

// Total returns the number of entries with a result
func (r Report) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Failed reports whether any entry failed
func (r Report) Failed() bool {
	return r.Counts[OutcomeFailed] > 0
}

// 🔧 Summary aggregates results from concurrent workers
type Summary struct {
	mu     sync.Mutex
	report Report
	seen   map[string]bool
}

// 🏭 New creates an empty summary
func New() *Summary {
	return &Summary{report: Report{Counts: make(map[Outcome]int)}, seen: make(map[string]bool)}
}

// Record adds one result. It reports false, and records nothing, when a
// result for the same path was already recorded.
func (s *Summary) Record(r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[r.Path] {
		return false
	}
	s.seen[r.Path] = true

	s.report.Counts[r.Outcome]++
	s.report.Outputs += len(r.Outputs)
	s.report.BytesRead += r.BytesRead
	s.report.BytesWritten += r.BytesWritten
	if r.Outcome == OutcomeFailed {
		s.report.Failures = append(s.report.Failures, Failure{Path: r.Path, Kind: r.Kind, Reason: r.Reason})
	}
	return true
}

// SetFiltered records how many entries the filters excluded
func (s *Summary) SetFiltered(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Filtered = n
}

// 📸 Report returns a copy of the current totals with failures sorted by path
func (s *Summary) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.report
	out.Counts = make(map[Outcome]int, len(s.report.Counts))
	for k, v := range s.report.Counts {
		out.Counts[k] = v
	}
	out.Failures = append([]Failure(nil), s.report.Failures...)
	sort.Slice(out.Failures, func(i, j int) bool { return out.Failures[i].Path < out.Failures[j].Path })
	return out
}
