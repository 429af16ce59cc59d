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
	"path"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🏷️ Scheme identifies a storage backend
type Scheme string

const (
	SchemeLocal     Scheme = "file"
	SchemeS3        Scheme = "s3"
	SchemeGCS       Scheme = "gs"
	SchemeZip       Scheme = "zip"
	SchemeClipboard Scheme = "clipboard"
)

// 📍 Location is an immutable, parsed storage URI
type Location struct {
	Scheme Scheme
	Bucket string // object stores only
	Path   string // filesystem path, archive path, or object key
}

// 🔍 ParseLocation parses a local path or a scheme://... URI
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("empty location")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Location{Scheme: SchemeLocal, Path: raw}, nil
	}

	switch Scheme(strings.ToLower(scheme)) {
	case SchemeLocal:
		if rest == "" {
			return Location{}, errors.Errorf("file location %q has no path", raw)
		}
		return Location{Scheme: SchemeLocal, Path: rest}, nil
	case SchemeS3, SchemeGCS:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, errors.Errorf("location %q has no bucket", raw)
		}
		return Location{Scheme: Scheme(strings.ToLower(scheme)), Bucket: bucket, Path: key}, nil
	case SchemeZip:
		if rest == "" {
			return Location{}, errors.Errorf("zip location %q has no archive path", raw)
		}
		return Location{Scheme: SchemeZip, Path: rest}, nil
	case SchemeClipboard:
		if rest != "" {
			return Location{}, errors.Errorf("clipboard location takes no path, got %q", rest)
		}
		return Location{Scheme: SchemeClipboard}, nil
	default:
		return Location{}, errors.Errorf("unknown location scheme %q", scheme)
	}
}

// 📝 String renders the location back into URI form
func (l Location) String() string {
	switch l.Scheme {
	case SchemeLocal:
		return l.Path
	case SchemeS3, SchemeGCS:
		return string(l.Scheme) + "://" + l.Bucket + "/" + l.Path
	case SchemeClipboard:
		return "clipboard://"
	default:
		return string(l.Scheme) + "://" + l.Path
	}
}

// 📁 IsPrefix reports whether an object-store key names a directory-like prefix
func (l Location) IsPrefix() bool {
	return l.Path == "" || strings.HasSuffix(l.Path, "/")
}

// 🔗 objectKey joins a relative path under an object-store prefix
func (l Location) objectKey(rel string) string {
	if !l.IsPrefix() {
		return l.Path
	}
	return l.Path + strings.TrimPrefix(path.Clean("/"+rel), "/")
}
