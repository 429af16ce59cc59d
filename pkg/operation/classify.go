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

package operation

import (
	"context"

	"github.com/walteh/redacter/pkg/convert"
	"github.com/walteh/redacter/pkg/redact"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ ErrorKind names the taxonomy kind found in err's chain
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrMultipleIntoSingle):
		return "single_destination"
	}

	var re *redact.Error
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	var ce *convert.Error
	if errors.As(err, &ce) {
		return ce.Kind.String()
	}
	var se *storage.Error
	if errors.As(err, &se) {
		return se.Kind.String()
	}
	return "unknown"
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return storage.IsFatal(err) || redact.IsFatal(err)
}
