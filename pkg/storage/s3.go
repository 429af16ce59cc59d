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

package storage

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(SchemeS3, func(ctx context.Context, loc Location) (Provider, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, Wrap(KindFatal, "load aws config", loc.String(), err)
		}
		return NewS3(loc, s3.NewFromConfig(cfg)), nil
	})
}

// 🪣 S3API is the subset of the S3 client the provider uses
type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// 🪣 S3Provider stores entries as objects under a bucket/prefix
type S3Provider struct {
	loc      Location
	client   S3API
	pageSize int32
}

// 🏭 NewS3 creates an S3 provider over client
func NewS3(loc Location, client S3API) *S3Provider {
	return &S3Provider{loc: loc, client: client, pageSize: 1000}
}

// WithPageSize overrides the ListObjectsV2 page size
func (p *S3Provider) WithPageSize(n int32) *S3Provider {
	p.pageSize = n
	return p
}

func (p *S3Provider) Location() Location { return p.loc }

func (p *S3Provider) Capabilities() Capabilities {
	return Capabilities{AcceptsMultiple: p.loc.IsPrefix(), IncrementalWrites: true}
}

// 📂 List pages through ListObjectsV2; a page is fetched only when the caller
// keeps ranging
func (p *S3Provider) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	if !p.loc.IsPrefix() {
		return p.head(ctx)
	}

	return func(yield func(Entry, error) bool) {
		pager := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
			Bucket:  aws.String(p.loc.Bucket),
			Prefix:  aws.String(p.loc.Path + prefix),
			MaxKeys: aws.Int32(p.pageSize),
		})

		for pager.HasMorePages() {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, Wrap(KindTransient, "list", p.loc.String(), err))
				return
			}

			zerolog.Ctx(ctx).Debug().Str("bucket", p.loc.Bucket).Str("prefix", p.loc.Path+prefix).Msg("fetching s3 page")

			page, err := pager.NextPage(ctx)
			if err != nil {
				yield(Entry{}, classifyAWS("list", p.loc.String(), err))
				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if strings.HasSuffix(key, "/") {
					continue
				}
				if !yield(Entry{
					Path:     strings.TrimPrefix(key, p.loc.Path),
					Size:     aws.ToInt64(obj.Size),
					ModTime:  aws.ToTime(obj.LastModified),
					Location: p.loc,
				}, nil) {
					return
				}
			}
		}
	}
}

func (p *S3Provider) head(ctx context.Context) iter.Seq2[Entry, error] {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.loc.Bucket),
		Key:    aws.String(p.loc.Path),
	})
	if err != nil {
		return failed(classifyAWS("head", p.loc.String(), err))
	}
	return single(Entry{
		Path:      path.Base(p.loc.Path),
		Size:      aws.ToInt64(out.ContentLength),
		ModTime:   aws.ToTime(out.LastModified),
		MediaType: aws.ToString(out.ContentType),
		Location:  p.loc,
	})
}

func (p *S3Provider) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	key := p.loc.objectKey(entry.Path)
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.loc.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyAWS("get", key, err)
	}
	return out.Body, nil
}

// ✍️ Create buffers the object; PutObject on Commit is the only write
func (p *S3Provider) Create(ctx context.Context, relPath string, mediaType string) (Sink, error) {
	key := p.loc.objectKey(relPath)
	return &memorySink{commit: func(ctx context.Context, data []byte) error {
		in := &s3.PutObjectInput{
			Bucket:        aws.String(p.loc.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		}
		if mediaType != "" {
			in.ContentType = aws.String(mediaType)
		}
		if _, err := p.client.PutObject(ctx, in); err != nil {
			return classifyAWS("put", key, err)
		}
		return nil
	}}, nil
}

func (p *S3Provider) Close(ctx context.Context) error { return nil }

// 🗂️ classifyAWS maps SDK errors onto storage kinds
func classifyAWS(op, path string, err error) error {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
	)
	switch {
	case errors.As(err, &noBucket):
		return Wrap(KindFatal, op, path, err)
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return Wrap(KindNotFound, op, path, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return Wrap(KindPermissionDenied, op, path, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return Wrap(KindFatal, op, path, err)
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return Wrap(KindTransient, op, path, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return Wrap(KindNotFound, op, path, err)
		case code == http.StatusForbidden:
			return Wrap(KindPermissionDenied, op, path, err)
		case code == http.StatusTooManyRequests || code >= 500:
			return Wrap(KindTransient, op, path, err)
		}
	}

	return classifyOS(op, path, err)
}
