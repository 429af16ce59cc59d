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
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/convert"
	"github.com/walteh/redacter/pkg/imageredact"
	"github.com/walteh/redacter/pkg/mediatype"
	"gitlab.com/tozd/go/errors"
)

// ✂️ TailPolicy decides what happens to content beyond the sampling bound
type TailPolicy int

const (
	// TailCopy copies unsampled content unredacted
	TailCopy TailPolicy = iota
	// TailDrop leaves unsampled content out of the output
	TailDrop
)

// String returns a string representation of TailPolicy
func (p TailPolicy) String() string {
	if p == TailDrop {
		return "drop"
	}
	return "copy"
}

// ParseTailPolicy parses "copy" or "drop"; empty means copy
func ParseTailPolicy(s string) (TailPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "copy":
		return TailCopy, nil
	case "drop":
		return TailDrop, nil
	default:
		return TailCopy, errors.Errorf("sampling tail %q: want copy or drop", s)
	}
}

const (
	defaultRetryInitial = 200 * time.Millisecond
	defaultRetryMax     = 5 * time.Second
)

// ⚙️ Options configures an Engine
type Options struct {
	// Converter provides the pdf and OCR routes; nil disables both
	Converter *convert.Converter
	// Limiter is shared by every worker of the run; nil means unlimited
	Limiter *RateLimiter
	// Images paints box findings; defaults to opaque black fills
	Images *imageredact.Redactor

	// SamplingSize bounds the bytes of text and table payloads sent for
	// detection; 0 sends everything
	SamplingSize int
	SamplingTail TailPolicy

	AllowUnsupportedCopies bool

	// MaxRetries bounds retries of transient backend errors
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration

	Mask  byte
	Table TableOptions
}

// 🛡️ Engine resolves and applies backend chains to items. It is safe for
// concurrent use; the rate limiter is its only shared mutable state.
type Engine struct {
	backends []Backend
	conv     *convert.Converter
	images   *imageredact.Redactor
	opts     Options
}

// 🏭 NewEngine creates an engine over backends, in the order given
func NewEngine(backends []Backend, opts Options) *Engine {
	if opts.Images == nil {
		opts.Images = imageredact.New()
	}
	if opts.Mask == 0 {
		opts.Mask = DefaultMask
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}
	return &Engine{backends: backends, conv: opts.Converter, images: opts.Images, opts: opts}
}

// Backends returns the configured backends in order
func (e *Engine) Backends() []Backend { return e.backends }

// 📦 Item is one fully buffered entry
type Item struct {
	Name      string
	MediaType string
	Category  mediatype.Category
	Data      []byte
}

// 🏷️ Status is the terminal state of a successfully handled item. Failures
// are returned as errors.
type Status int

const (
	StatusRedacted Status = iota
	StatusPassthrough
	StatusSkipped
)

// String returns a string representation of Status
func (s Status) String() string {
	switch s {
	case StatusRedacted:
		return "redacted"
	case StatusPassthrough:
		return "passthrough"
	default:
		return "skipped"
	}
}

// Output is one entry to write. Most items produce one; a pdf produces one
// per page.
type Output struct {
	Name      string
	MediaType string
	Data      []byte
}

// 📋 Result is the outcome of redacting one item
type Result struct {
	Status   Status
	Phase    Phase
	Backends []string
	Outputs  []Output
	Findings []Finding
	// Unsampled counts the bytes beyond the sampling bound that were copied
	// or dropped without detection
	Unsampled int
	Reason    string
}

// 🎯 Redact runs item through its plan. Unauthenticated backend errors and
// cancellation are returned as is; other failures become a passthrough copy
// when unsupported copies are allowed, and are returned otherwise.
func (e *Engine) Redact(ctx context.Context, item Item) (*Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("path", item.Name).Str("category", item.Category.String()).Logger()
	ctx = logger.WithContext(ctx)

	if len(e.backends) == 0 {
		return passthrough(item, "no redaction requested"), nil
	}

	plan := e.Plan(item.Category)
	if len(plan.Backends) == 0 {
		reason := "no backend supports " + item.Category.String()
		if e.opts.AllowUnsupportedCopies {
			return passthrough(item, reason), nil
		}
		return &Result{Status: StatusSkipped, Reason: reason}, nil
	}

	logger.Debug().Str("phase", plan.Phase.String()).Strs("backends", plan.Names()).Msg("plan selected")

	res, err := e.run(ctx, plan, item)
	if err != nil {
		if IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
		if e.opts.AllowUnsupportedCopies {
			logger.Warn().Err(err).Msg("redaction failed, copying unredacted")
			r := passthrough(item, err.Error())
			r.Phase, r.Backends = plan.Phase, plan.Names()
			return r, nil
		}
		return nil, err
	}

	res.Phase, res.Backends = plan.Phase, plan.Names()
	logger.Debug().Int("findings", len(res.Findings)).Int("outputs", len(res.Outputs)).Msg("item redacted")
	return res, nil
}

func passthrough(item Item, reason string) *Result {
	return &Result{
		Status:  StatusPassthrough,
		Outputs: []Output{{Name: item.Name, MediaType: item.MediaType, Data: item.Data}},
		Reason:  reason,
	}
}

func (e *Engine) run(ctx context.Context, plan Plan, item Item) (*Result, error) {
	switch item.Category {
	case mediatype.PlainText, mediatype.MarkupOrStructured:
		return e.redactText(ctx, plan, item)
	case mediatype.Table:
		if plan.Phase == PhaseNative {
			return e.redactTable(ctx, plan, item)
		}
		return e.redactTableAsText(ctx, plan, item)
	case mediatype.Image:
		return e.redactImage(ctx, plan, item)
	case mediatype.Pdf:
		return e.redactPdf(ctx, plan, item)
	default:
		return nil, Errorf(KindUnsupportedCategory, "engine", "category %s", item.Category)
	}
}

func (e *Engine) redactText(ctx context.Context, plan Plan, item Item) (*Result, error) {
	head, tail := sampleText(string(item.Data), e.opts.SamplingSize)

	cat := item.Category
	if plan.Phase == PhaseConversion {
		cat = mediatype.PlainText
	}
	masked, findings, err := e.chainText(ctx, plan.Backends, cat, head)
	if err != nil {
		return nil, err
	}

	res := &Result{Status: StatusRedacted, Findings: findings, Unsampled: len(tail)}
	if tail != "" {
		e.logSampling(ctx, len(head), len(tail))
		if e.opts.SamplingTail == TailCopy {
			masked += tail
		}
	}
	res.Outputs = []Output{{Name: item.Name, MediaType: item.MediaType, Data: []byte(masked)}}
	return res, nil
}

// 🔗 chainText folds text through backends; each sees the text as masked by
// the ones before it. Findings are clipped to the text.
func (e *Engine) chainText(ctx context.Context, backends []Backend, cat mediatype.Category, text string) (string, []Finding, error) {
	var all []Finding
	for _, b := range backends {
		resp, err := e.call(ctx, b, &Request{Category: cat, Content: Content{Text: text}})
		if err != nil {
			return "", nil, err
		}
		found := textFindings(resp.Findings, len(text))
		text = MaskText(text, spansOf(found), e.opts.Mask)
		all = append(all, found...)
	}
	return text, all, nil
}

func (e *Engine) redactTable(ctx context.Context, plan Plan, item Item) (*Result, error) {
	opts := e.opts.Table.forMediaType(item.MediaType)
	t, err := ParseTable(item.Data, opts)
	if err != nil {
		return nil, err
	}
	head, tail := sampleRows(t, e.opts.SamplingSize, opts)
	head = cloneTable(head)

	var all []Finding
	for _, b := range plan.Backends {
		resp, err := e.call(ctx, b, &Request{Category: mediatype.Table, Content: Content{Table: cloneTable(head)}})
		if err != nil {
			return nil, err
		}
		var found []Finding
		for _, f := range resp.Findings {
			if f.Cell != nil {
				found = append(found, f)
			}
		}
		maskTable(head, found, e.opts.Mask)
		all = append(all, found...)
	}

	res := &Result{Status: StatusRedacted, Findings: all}
	if len(tail) > 0 {
		res.Unsampled = tableLen(tail, opts)
		e.logSampling(ctx, len(head.Rows), len(tail))
		if e.opts.SamplingTail == TailCopy {
			head.Rows = append(head.Rows, tail...)
		}
	}
	data, err := EncodeTable(head, opts)
	if err != nil {
		return nil, err
	}
	res.Outputs = []Output{{Name: item.Name, MediaType: item.MediaType, Data: data}}
	return res, nil
}

// redactTableAsText sends the sampled rows as CSV text to text backends
func (e *Engine) redactTableAsText(ctx context.Context, plan Plan, item Item) (*Result, error) {
	opts := e.opts.Table.forMediaType(item.MediaType)
	t, err := ParseTable(item.Data, opts)
	if err != nil {
		return nil, err
	}
	head, tail := sampleRows(t, e.opts.SamplingSize, opts)
	text, err := EncodeTable(head, opts)
	if err != nil {
		return nil, err
	}

	masked, findings, err := e.chainText(ctx, plan.Backends, mediatype.PlainText, string(text))
	if err != nil {
		return nil, err
	}

	out := []byte(masked)
	res := &Result{Status: StatusRedacted, Findings: findings}
	if len(tail) > 0 {
		rest, err := EncodeTable(&Table{Rows: tail}, opts)
		if err != nil {
			return nil, err
		}
		res.Unsampled = len(rest)
		e.logSampling(ctx, len(head.Rows), len(tail))
		if e.opts.SamplingTail == TailCopy {
			out = append(out, rest...)
		}
	}
	res.Outputs = []Output{{Name: item.Name, MediaType: item.MediaType, Data: out}}
	return res, nil
}

func (e *Engine) logSampling(ctx context.Context, kept, rest int) {
	zerolog.Ctx(ctx).Info().
		Int("sampled", kept).
		Int("unsampled", rest).
		Str("tail", e.opts.SamplingTail.String()).
		Msg("sampling bound applied, content beyond it was not inspected")
}

// 📞 call invokes one backend under the rate limiter, retrying transient
// errors with exponential backoff. The backend call itself is not cancelled
// with ctx; waits between attempts are.
func (e *Engine) call(ctx context.Context, b Backend, req *Request) (*Response, error) {
	name := b.Descriptor().Name
	logger := zerolog.Ctx(ctx).With().Str("backend", name).Logger()

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		release, err := e.opts.Limiter.Acquire(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer release()

		resp, err := b.Redact(context.WithoutCancel(ctx), req)
		if err != nil {
			if IsTransient(err) {
				logger.Debug().Err(err).Int("attempt", attempt).Msg("transient backend error")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if resp == nil {
			resp = &Response{}
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.RetryInitial
	bo.MaxInterval = e.opts.RetryMax

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(e.opts.MaxRetries+1)),
	)
	if err != nil {
		return nil, errors.Errorf("calling %s: %w", name, err)
	}
	logger.Debug().Int("attempts", attempt).Int("findings", len(resp.Findings)).Msg("backend call finished")
	return resp, nil
}

// textFindings keeps span findings and clips them to [0, limit)
func textFindings(fs []Finding, limit int) []Finding {
	out := make([]Finding, 0, len(fs))
	for _, f := range fs {
		if f.Span == nil || f.Cell != nil {
			continue
		}
		s := clipSpans([]Span{*f.Span}, limit)
		if len(s) == 0 {
			continue
		}
		f.Span = &s[0]
		out = append(out, f)
	}
	return out
}

func spansOf(fs []Finding) []Span {
	out := make([]Span, 0, len(fs))
	for _, f := range fs {
		if f.Span != nil {
			out = append(out, *f.Span)
		}
	}
	return out
}

func tableLen(rows [][]string, opts TableOptions) int {
	n := 0
	for _, r := range rows {
		n += encodedLen(r, opts)
	}
	return n
}
