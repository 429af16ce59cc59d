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

// Package fake provides a scripted, deterministic redact.Backend for tests
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/walteh/redacter/pkg/imageredact"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
)

var _ redact.Backend = (*Backend)(nil)

// 🎭 Backend returns the findings it is scripted with
type Backend struct {
	Desc redact.Descriptor

	// Needles are flagged wherever they occur in text or table cells
	Needles []string
	// Spans are returned for every text request
	Spans []redact.Span
	// Boxes are returned for every image request
	Boxes []imageredact.Box
	// Edited is returned as the edited image for image requests
	Edited *redact.Image
	// Errs are returned by the first calls, in order; a nil entry succeeds
	Errs []error
	// Delay is slept on every call
	Delay time.Duration

	mu       sync.Mutex
	calls    int
	requests []redact.Request
}

// 🏭 New creates a backend natively supporting the given categories
func New(name string, native ...mediatype.Category) *Backend {
	return &Backend{Desc: redact.NewDescriptor(name, false, native...)}
}

func (b *Backend) Descriptor() redact.Descriptor { return b.Desc }

func (b *Backend) Redact(ctx context.Context, req *redact.Request) (*redact.Response, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.requests = append(b.requests, *req)
	b.mu.Unlock()

	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}
	if n <= len(b.Errs) && b.Errs[n-1] != nil {
		return nil, b.Errs[n-1]
	}

	resp := &redact.Response{}
	switch req.Category {
	case mediatype.Image:
		for _, box := range b.Boxes {
			resp.Findings = append(resp.Findings, redact.BoxFinding("FAKE", 1, box))
		}
		resp.Image = b.Edited
	case mediatype.Table:
		for r, row := range req.Content.Table.Rows {
			for c, cell := range row {
				for _, s := range redact.Occurrences(cell, b.Needles...) {
					resp.Findings = append(resp.Findings, redact.CellFinding("FAKE", 1, r, c, &s))
				}
			}
		}
	default:
		for _, s := range b.Spans {
			resp.Findings = append(resp.Findings, redact.TextFinding("FAKE", 1, s.Start, s.End))
		}
		for _, s := range redact.Occurrences(req.Content.Text, b.Needles...) {
			resp.Findings = append(resp.Findings, redact.TextFinding("FAKE", 1, s.Start, s.End))
		}
	}
	return resp, nil
}

// Calls returns the number of Redact calls so far
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Requests returns a copy of every request received
func (b *Backend) Requests() []redact.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]redact.Request(nil), b.requests...)
}
