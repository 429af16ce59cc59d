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

// Package gcpdlp adapts Google Cloud DLP (REST v2) for text, tables and
// images. Credentials come from Application Default Credentials.
package gcpdlp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2/google"
	dlp "google.golang.org/api/dlp/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Name is the registered backend name
const Name = "gcp-dlp"

// minLikelihood drops findings below LIKELY
const minLikelihood = "LIKELY"

func init() {
	redact.Register(Name, func(ctx context.Context, s redact.Settings) (redact.Backend, error) {
		hc, err := google.DefaultClient(ctx, dlp.CloudPlatformScope)
		if err != nil {
			return nil, redact.Errorf(redact.KindUnauthenticated, Name, "finding default credentials: %v", err)
		}
		if s.Timeout > 0 {
			hc.Timeout = s.Timeout
		}
		return New(ctx, s.GCPDLP, option.WithHTTPClient(hc))
	})
}

// 🛡️ Backend inspects content with DLP and redacts images server side
type Backend struct {
	svc       *dlp.Service
	parent    string
	infoTypes []*dlp.GooglePrivacyDlpV2InfoType
}

// 🏭 New creates the backend; the project id is required
func New(ctx context.Context, s redact.GCPDLPSettings, opts ...option.ClientOption) (*Backend, error) {
	if s.ProjectID == "" {
		return nil, errors.New("gcp-dlp needs a project id")
	}
	location := s.Location
	if location == "" {
		location = "global"
	}
	svc, err := dlp.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Errorf("creating dlp service: %w", err)
	}

	b := &Backend{svc: svc, parent: fmt.Sprintf("projects/%s/locations/%s", s.ProjectID, location)}
	for _, it := range s.InfoTypes {
		b.infoTypes = append(b.infoTypes, &dlp.GooglePrivacyDlpV2InfoType{Name: it})
	}
	return b, nil
}

func (b *Backend) Descriptor() redact.Descriptor {
	return redact.NewDescriptor(Name, true, mediatype.PlainText, mediatype.MarkupOrStructured, mediatype.Table, mediatype.Image)
}

func (b *Backend) inspectConfig() *dlp.GooglePrivacyDlpV2InspectConfig {
	return &dlp.GooglePrivacyDlpV2InspectConfig{InfoTypes: b.infoTypes, MinLikelihood: minLikelihood}
}

func (b *Backend) Redact(ctx context.Context, req *redact.Request) (*redact.Response, error) {
	switch req.Category {
	case mediatype.PlainText, mediatype.MarkupOrStructured:
		return b.inspectText(ctx, req.Content.Text)
	case mediatype.Table:
		return b.inspectTable(ctx, req.Content.Table)
	case mediatype.Image:
		return b.redactImage(ctx, req.Content.Image)
	default:
		return nil, redact.Errorf(redact.KindUnsupportedCategory, Name, "category %s", req.Category)
	}
}

func (b *Backend) inspect(ctx context.Context, item *dlp.GooglePrivacyDlpV2ContentItem) ([]*dlp.GooglePrivacyDlpV2Finding, error) {
	resp, err := b.svc.Projects.Locations.Content.Inspect(b.parent, &dlp.GooglePrivacyDlpV2InspectContentRequest{
		InspectConfig: b.inspectConfig(),
		Item:          item,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if resp.Result == nil {
		return nil, nil
	}
	if resp.Result.FindingsTruncated {
		zerolog.Ctx(ctx).Warn().Msg("dlp truncated its findings")
	}
	return resp.Result.Findings, nil
}

func (b *Backend) inspectText(ctx context.Context, text string) (*redact.Response, error) {
	if text == "" {
		return &redact.Response{}, nil
	}
	findings, err := b.inspect(ctx, &dlp.GooglePrivacyDlpV2ContentItem{Value: text})
	if err != nil {
		return nil, err
	}

	resp := &redact.Response{}
	for _, f := range findings {
		if f.Location == nil || f.Location.ByteRange == nil {
			continue
		}
		r := f.Location.ByteRange
		resp.Findings = append(resp.Findings, redact.TextFinding(infoType(f), likelihood(f.Likelihood), int(r.Start), int(r.End)))
	}
	return resp, nil
}

func (b *Backend) inspectTable(ctx context.Context, t *redact.Table) (*redact.Response, error) {
	if t == nil || len(t.Rows) == 0 {
		return &redact.Response{}, nil
	}

	width := len(t.Headers)
	for _, row := range t.Rows {
		width = max(width, len(row))
	}
	columns := map[string]int{}
	table := &dlp.GooglePrivacyDlpV2Table{}
	for c := range width {
		name := "column_" + strconv.Itoa(c)
		if c < len(t.Headers) && t.Headers[c] != "" {
			name = t.Headers[c]
		}
		if _, dup := columns[name]; dup {
			name = name + "_" + strconv.Itoa(c)
		}
		columns[name] = c
		table.Headers = append(table.Headers, &dlp.GooglePrivacyDlpV2FieldId{Name: name})
	}
	for _, row := range t.Rows {
		r := &dlp.GooglePrivacyDlpV2Row{}
		for c := range width {
			v := ""
			if c < len(row) {
				v = row[c]
			}
			r.Values = append(r.Values, &dlp.GooglePrivacyDlpV2Value{StringValue: v})
		}
		table.Rows = append(table.Rows, r)
	}

	findings, err := b.inspect(ctx, &dlp.GooglePrivacyDlpV2ContentItem{Table: table})
	if err != nil {
		return nil, err
	}

	resp := &redact.Response{}
	for _, f := range findings {
		if f.Location == nil {
			continue
		}
		var span *redact.Span
		if r := f.Location.ByteRange; r != nil && r.End > r.Start {
			span = &redact.Span{Start: int(r.Start), End: int(r.End)}
		}
		for _, cl := range f.Location.ContentLocations {
			rec := cl.RecordLocation
			if rec == nil || rec.TableLocation == nil || rec.FieldId == nil {
				continue
			}
			col, ok := columns[rec.FieldId.Name]
			if !ok {
				continue
			}
			resp.Findings = append(resp.Findings, redact.CellFinding(infoType(f), likelihood(f.Likelihood), int(rec.TableLocation.RowIndex), col, span))
		}
	}
	return resp, nil
}

func (b *Backend) redactImage(ctx context.Context, img *redact.Image) (*redact.Response, error) {
	if img == nil {
		return nil, redact.Errorf(redact.KindUnsupportedCategory, Name, "image request without an image")
	}
	kind, ok := byteTypes[mediatype.Base(img.MediaType)]
	if !ok {
		kind = "IMAGE"
	}

	cfgs := []*dlp.GooglePrivacyDlpV2ImageRedactionConfig{}
	for _, it := range b.infoTypes {
		cfgs = append(cfgs, &dlp.GooglePrivacyDlpV2ImageRedactionConfig{InfoType: it})
	}
	if len(cfgs) == 0 {
		cfgs = nil
	}

	resp, err := b.svc.Projects.Locations.Image.Redact(b.parent, &dlp.GooglePrivacyDlpV2RedactImageRequest{
		ByteItem:              &dlp.GooglePrivacyDlpV2ByteContentItem{Type: kind, Data: base64.StdEncoding.EncodeToString(img.Data)},
		InspectConfig:         b.inspectConfig(),
		ImageRedactionConfigs: cfgs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.RedactedImage)
	if err != nil || len(data) == 0 {
		return nil, redact.Errorf(redact.KindMalformedResponse, Name, "redacted image is missing or not base64")
	}
	return &redact.Response{Image: &redact.Image{Data: data, MediaType: img.MediaType, Width: img.Width, Height: img.Height}}, nil
}

var byteTypes = map[string]string{
	"image/png":  "IMAGE_PNG",
	"image/jpeg": "IMAGE_JPEG",
	"image/bmp":  "IMAGE_BMP",
}

func infoType(f *dlp.GooglePrivacyDlpV2Finding) string {
	if f.InfoType == nil {
		return "UNKNOWN"
	}
	return f.InfoType.Name
}

// likelihood turns DLP's likelihood enum into a confidence
func likelihood(l string) float64 {
	switch l {
	case "VERY_LIKELY":
		return 0.95
	case "LIKELY":
		return 0.8
	case "POSSIBLE":
		return 0.5
	case "UNLIKELY":
		return 0.2
	case "VERY_UNLIKELY":
		return 0.05
	default:
		return 0
	}
}

// classify maps API errors onto redact kinds
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := redact.KindForStatus(apiErr.Code)
		if apiErr.Code == http.StatusBadRequest {
			kind = redact.KindBackendUnavailable
		}
		return redact.Errorf(kind, Name, "%v", err)
	}
	return redact.Errorf(redact.KindTransient, Name, "%v", err)
}
