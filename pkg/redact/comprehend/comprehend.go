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

// Package comprehend adapts AWS Comprehend PII detection
package comprehend

import (
	"context"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"gitlab.com/tozd/go/errors"
)

// Name is the registered backend name
const Name = "comprehend"

// maxChunk is DetectPiiEntities' input limit in UTF-8 bytes
const maxChunk = 100_000

func init() {
	redact.Register(Name, func(ctx context.Context, s redact.Settings) (redact.Backend, error) {
		var opts []func(*awsconfig.LoadOptions) error
		if s.Comprehend.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.Comprehend.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, redact.Errorf(redact.KindUnauthenticated, Name, "loading aws config: %v", err)
		}
		client := comprehend.NewFromConfig(cfg, func(o *comprehend.Options) {
			if s.Timeout > 0 {
				o.HTTPClient = awshttp.NewBuildableClient().WithTimeout(s.Timeout)
			}
		})
		return New(client, s.Comprehend.Language), nil
	})
}

// 🔌 API is the subset of the Comprehend client the backend uses
type API interface {
	DetectPiiEntities(ctx context.Context, in *comprehend.DetectPiiEntitiesInput, opts ...func(*comprehend.Options)) (*comprehend.DetectPiiEntitiesOutput, error)
}

// 🛡️ Backend detects PII entities in text
type Backend struct {
	client   API
	language types.LanguageCode
	chunk    int
}

// 🏭 New creates the backend; language defaults to en
func New(client API, language string) *Backend {
	if language == "" {
		language = "en"
	}
	return &Backend{client: client, language: types.LanguageCode(language), chunk: maxChunk}
}

func (b *Backend) Descriptor() redact.Descriptor {
	return redact.NewDescriptor(Name, false, mediatype.PlainText, mediatype.MarkupOrStructured)
}

func (b *Backend) Redact(ctx context.Context, req *redact.Request) (*redact.Response, error) {
	if req.Category != mediatype.PlainText && req.Category != mediatype.MarkupOrStructured {
		return nil, redact.Errorf(redact.KindUnsupportedCategory, Name, "category %s", req.Category)
	}

	resp := &redact.Response{}
	text := req.Content.Text
	for off := 0; off < len(text); {
		end := cut(text, off, b.chunk)
		found, err := b.detect(ctx, text[off:end], off)
		if err != nil {
			return nil, err
		}
		resp.Findings = append(resp.Findings, found...)
		off = end
	}
	zerolog.Ctx(ctx).Debug().Int("findings", len(resp.Findings)).Msg("comprehend analyzed text")
	return resp, nil
}

// detect analyzes one chunk starting at byte base of the full text
func (b *Backend) detect(ctx context.Context, chunk string, base int) ([]redact.Finding, error) {
	out, err := b.client.DetectPiiEntities(ctx, &comprehend.DetectPiiEntitiesInput{
		Text:         aws.String(chunk),
		LanguageCode: b.language,
	})
	if err != nil {
		return nil, classify(err)
	}

	// entity offsets count characters
	ix := redact.NewRuneIndex(chunk)
	var found []redact.Finding
	for _, e := range out.Entities {
		if e.BeginOffset == nil || e.EndOffset == nil {
			continue
		}
		span, ok := ix.Span(int(*e.BeginOffset), int(*e.EndOffset))
		if !ok {
			continue
		}
		score := 1.0
		if e.Score != nil {
			score = float64(*e.Score)
		}
		found = append(found, redact.TextFinding(string(e.Type), score, base+span.Start, base+span.End))
	}
	return found, nil
}

// cut returns the end of a chunk of at most n bytes from off, on a rune
// boundary
func cut(text string, off, n int) int {
	end := off + n
	if end >= len(text) {
		return len(text)
	}
	for end > off && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == off {
		return off + n
	}
	return end
}

// classify maps SDK errors onto redact kinds
func classify(err error) error {
	var (
		throttled *types.TooManyRequestsException
		internal  *types.InternalServerException
		tooLarge  *types.TextSizeLimitExceededException
		invalid   *types.InvalidRequestException
		language  *types.UnsupportedLanguageException
	)
	switch {
	case errors.As(err, &throttled):
		return redact.Errorf(redact.KindQuotaExceeded, Name, "%v", err)
	case errors.As(err, &internal):
		return redact.Errorf(redact.KindTransient, Name, "%v", err)
	case errors.As(err, &tooLarge), errors.As(err, &invalid), errors.As(err, &language):
		return redact.Errorf(redact.KindBackendUnavailable, Name, "%v", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
			return redact.Errorf(redact.KindUnauthenticated, Name, "%v", err)
		case "ThrottlingException":
			return redact.Errorf(redact.KindQuotaExceeded, Name, "%v", err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return redact.Errorf(redact.KindForStatus(respErr.HTTPStatusCode()), Name, "%v", err)
	}

	// no response at all: network failure or timeout
	return redact.Errorf(redact.KindTransient, Name, "%v", err)
}
