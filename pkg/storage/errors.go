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
	"context"
	"fmt"
	"io/fs"
	"net"

	"gitlab.com/tozd/go/errors"
)

// 🚦 Kind classifies storage failures
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindTransient          // network and throttling; the caller may retry
	KindFatal              // bad credentials, missing bucket; aborts the run
	KindUnsupportedContent // the destination cannot hold the content, e.g. binary data on the clipboard
)

// ErrNotText is returned when a text-only destination is handed binary data
var ErrNotText = errors.Base("content is not UTF-8 text")

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindUnsupportedContent:
		return "unsupported_content"
	default:
		return "unknown"
	}
}

// ❌ Error is a classified storage failure
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 🎁 Wrap classifies err under kind
func Wrap(kind Kind, op, path string, err error) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Path: path, Err: err})
}

// 🔍 KindOf returns the storage kind found in err's chain
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a classified NotFound
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool { return KindOf(err) == KindFatal }

// 🗂️ classifyOS maps filesystem errors onto storage kinds
func classifyOS(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(KindNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(KindPermissionDenied, op, path, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTransient, op, path, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(KindTransient, op, path, err)
	}
	return Wrap(KindUnknown, op, path, err)
}
