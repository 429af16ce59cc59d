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

package mediatype

import (
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// SniffLimit is the content prefix handed to magic-byte detection
const SniffLimit = 3072

// 🧭 Source records which rule produced a resolution
type Source string

const (
	SourceOverride  Source = "override"
	SourceSniff     Source = "sniff"
	SourceExtension Source = "extension"
	SourceNone      Source = "none"
)

// 📋 Resolution is the outcome of resolving one entry
type Resolution struct {
	Category  Category
	MediaType string
	Source    Source
}

// 🔀 Override forces a MIME type onto names matching Glob
type Override struct {
	MediaType string
	Glob      string
}

// 🔍 ParseOverride parses "<mime>=<glob>"
func ParseOverride(raw string) (Override, error) {
	mt, glob, ok := strings.Cut(raw, "=")
	mt, glob = strings.TrimSpace(mt), strings.TrimSpace(glob)
	if !ok || mt == "" || glob == "" {
		return Override{}, errors.Errorf("mime override %q must look like <mime>=<glob>", raw)
	}
	if _, _, err := mime.ParseMediaType(mt); err != nil {
		return Override{}, errors.Errorf("mime override %q: invalid media type: %w", raw, err)
	}
	if !doublestar.ValidatePattern(glob) {
		return Override{}, errors.Errorf("mime override %q: invalid glob", raw)
	}
	return Override{MediaType: mt, Glob: glob}, nil
}

// 🧭 Resolver maps entries to categories: override rules in order, then
// magic bytes, then extension. Results are cached per entry.
type Resolver struct {
	overrides []Override
	cache     sync.Map // entry key -> Resolution
}

// 🏭 NewResolver creates a resolver with ordered override rules
func NewResolver(overrides ...Override) *Resolver {
	return &Resolver{overrides: overrides}
}

// 🎯 ResolveEntry resolves and caches the category of entry given its content prefix
func (r *Resolver) ResolveEntry(entry storage.Entry, head []byte) Resolution {
	key := entry.Location.String() + "\x00" + entry.Path
	if cached, ok := r.cache.Load(key); ok {
		return cached.(Resolution)
	}
	res := r.Resolve(entry.Path, head)
	actual, _ := r.cache.LoadOrStore(key, res)
	return actual.(Resolution)
}

// 🎯 Resolve resolves a name and content prefix without caching
func (r *Resolver) Resolve(name string, head []byte) Resolution {
	base := path.Base(name)
	for _, o := range r.overrides {
		if matchGlob(o.Glob, name, base) {
			return Resolution{Category: FromMediaType(o.MediaType), MediaType: Base(o.MediaType), Source: SourceOverride}
		}
	}

	ext := byExtension(base)
	extCat := FromMediaType(ext)

	if len(head) > 0 {
		if len(head) > SniffLimit {
			head = head[:SniffLimit]
		}
		sniffed := Base(mimetype.Detect(head).String())
		if decisive(sniffed) {
			// text sniffing is heuristic; a known text extension is more specific
			if !(strings.HasPrefix(sniffed, "text/") && extCat.IsText()) {
				if cat := FromMediaType(sniffed); cat != Unknown || extCat == Unknown {
					return Resolution{Category: cat, MediaType: sniffed, Source: SourceSniff}
				}
			}
		}
	}

	if ext != "" {
		return Resolution{Category: extCat, MediaType: ext, Source: SourceExtension}
	}
	return Resolution{Category: Unknown, MediaType: "application/octet-stream", Source: SourceNone}
}

func decisive(mt string) bool {
	return mt != "" && mt != "text/plain" && mt != "application/octet-stream"
}

func matchGlob(glob, name, base string) bool {
	if ok, _ := doublestar.Match(glob, name); ok {
		return true
	}
	ok, _ := doublestar.Match(glob, base)
	return ok
}

// extensions the runtime table does not reliably carry
var extensions = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".json":     "application/json",
	".xml":      "application/xml",
	".html":     "text/html",
	".htm":      "text/html",
	".css":      "text/css",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
	".bmp":      "image/bmp",
	".tif":      "image/tiff",
	".tiff":     "image/tiff",
	".webp":     "image/webp",
	".pdf":      "application/pdf",
}

func byExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if mt, ok := extensions[ext]; ok {
		return mt
	}
	return Base(mime.TypeByExtension(ext))
}
