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
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// 🎨 Display configuration
const (
	fileIndent    = 4  // spaces to indent file entries
	nameWidth     = 35 // base width for the path
	outcomeWidth  = 10 // width for the outcome
	categoryWidth = 8  // width for the category
)

// Symbol returns the line marker for an outcome
func Symbol(o Outcome) string {
	switch o {
	case OutcomeRedacted:
		return color.GreenString("✓")
	case OutcomePassthrough:
		return color.CyanString("•")
	case OutcomeSkipped:
		return color.HiBlackString("-")
	default:
		return color.RedString("✗")
	}
}

// 🎯 FormatResult formats one entry's result for display
func FormatResult(r Result) string {
	var detail string
	switch r.Outcome {
	case OutcomeRedacted:
		detail = fmt.Sprintf("%d findings via %s", r.Findings, strings.Join(r.Backends, ", "))
		if len(r.Outputs) > 1 {
			detail += fmt.Sprintf(" into %d entries", len(r.Outputs))
		}
		if r.Unsampled > 0 {
			detail += fmt.Sprintf(" (%s unsampled)", humanize.IBytes(uint64(r.Unsampled)))
		}
	case OutcomeFailed:
		detail = r.Kind
		if r.Reason != "" {
			detail += ": " + r.Reason
		}
	default:
		detail = r.Reason
	}

	return strings.TrimRight(fmt.Sprintf("%s%s %-*s %-*s %-*s %s",
		strings.Repeat(" ", fileIndent),
		Symbol(r.Outcome),
		nameWidth, r.Path,
		outcomeWidth, r.Outcome,
		categoryWidth, r.Category,
		detail,
	), " ")
}

// 📋 FormatSummary renders the one-line totals of a report
func FormatSummary(r Report) string {
	parts := []string{
		fmt.Sprintf("%d redacted", r.Counts[OutcomeRedacted]),
		fmt.Sprintf("%d copied", r.Counts[OutcomePassthrough]),
		fmt.Sprintf("%d skipped", r.Counts[OutcomeSkipped]),
		fmt.Sprintf("%d failed", r.Counts[OutcomeFailed]),
	}
	line := strings.Join(parts, ", ")
	if r.Filtered > 0 {
		line += fmt.Sprintf(" (%d filtered)", r.Filtered)
	}
	return fmt.Sprintf("%s; %d entries written, %s read, %s written",
		line, r.Outputs, humanize.IBytes(uint64(r.BytesRead)), humanize.IBytes(uint64(r.BytesWritten)))
}
