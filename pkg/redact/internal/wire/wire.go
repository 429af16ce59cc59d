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

// Package wire is the JSON over HTTP plumbing shared by the HTTP backends.
// Failures are classified into redact error kinds.
package wire

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/walteh/redacter/pkg/redact"
	"gitlab.com/tozd/go/errors"
)

// DefaultTimeout bounds one backend call when settings leave it unset
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error
const maxErrorBody = 512

// 🌐 Client posts requests for one backend
type Client struct {
	Backend string
	HTTP    *http.Client
	// Header is added to every request
	Header http.Header
}

// 🏭 New creates a client with the given call timeout
func New(backend string, timeout time.Duration, hc *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{}
	}
	c := *hc
	c.Timeout = timeout
	return &Client{Backend: backend, HTTP: &c, Header: http.Header{}}
}

// 📤 PostJSON sends in as JSON and decodes the JSON response into out
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := c.Do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return redact.Errorf(redact.KindMalformedResponse, c.Backend, "decoding response: %v", err)
	}
	return nil
}

// 📡 Do sends req and returns the body of a 2xx response. Network failures
// and timeouts are transient; HTTP statuses map through KindForStatus.
func (c *Client) Do(req *http.Request) ([]byte, error) {
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if transient(err) {
			return nil, redact.Errorf(redact.KindTransient, c.Backend, "%s %s: %v", req.Method, req.URL.Path, err)
		}
		return nil, redact.Errorf(redact.KindBackendUnavailable, c.Backend, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, redact.Errorf(redact.KindTransient, c.Backend, "reading response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, redact.Errorf(redact.KindForStatus(resp.StatusCode), c.Backend, "%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	return data, nil
}

func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
