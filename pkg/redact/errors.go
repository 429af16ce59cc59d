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
	"fmt"
	"net/http"

	"gitlab.com/tozd/go/errors"
)

// 🚦 Kind classifies backend failures
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedCategory
	KindBackendUnavailable
	KindQuotaExceeded
	KindTransient
	KindMalformedResponse
	// KindUnauthenticated aborts the run
	KindUnauthenticated
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindUnsupportedCategory:
		return "unsupported_category"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTransient:
		return "transient"
	case KindMalformedResponse:
		return "malformed_response"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// ❌ Error is a classified backend failure
type Error struct {
	Kind    Kind
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error for backend
func Errorf(kind Kind, backend, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Backend: backend, Err: errors.Errorf(format, args...)})
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether a retry could succeed
func IsTransient(err error) bool {
	k := KindOf(err)
	return k == KindTransient || k == KindQuotaExceeded
}

// IsFatal reports whether no later item could succeed either
func IsFatal(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// KindForStatus maps an HTTP status from a backend onto a Kind
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindUnauthenticated
	case code == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case code == http.StatusRequestTimeout, code >= 500:
		return KindTransient
	case code == http.StatusNotFound:
		return KindBackendUnavailable
	default:
		return KindMalformedResponse
	}
}
