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
	"slices"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// 🔧 Settings holds the per-backend configuration a factory may read
type Settings struct {
	Presidio   PresidioSettings
	OpenAI     OpenAISettings
	Comprehend ComprehendSettings
	GCPDLP     GCPDLPSettings
	Gemini     GeminiSettings

	// Timeout bounds a single backend call; it surfaces as a transient error
	Timeout time.Duration
}

type PresidioSettings struct {
	AnalyzerURL      string
	ImageRedactorURL string
}

type OpenAISettings struct {
	APIKey  string
	Model   string
	BaseURL string
}

type ComprehendSettings struct {
	Region   string
	Language string
}

type GCPDLPSettings struct {
	ProjectID string
	Location  string
	InfoTypes []string
}

// GeminiSettings authenticates with APIKey when set and with application
// default credentials billed to ProjectID otherwise
type GeminiSettings struct {
	ProjectID string
	APIKey    string
	Model     string
	BaseURL   string
}

// 🏭 Factory creates a backend from settings
type Factory func(ctx context.Context, s Settings) (Backend, error)

var (
	mu sync.RWMutex
	// 🗺️ factories maps backend names to factories
	factories = make(map[string]Factory)
)

// 📝 Register registers a backend factory under name
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Names lists registered backend names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// 🎯 New creates the backend registered as name
func New(ctx context.Context, name string, s Settings) (Backend, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown redacter %q, available: %v", name, Names())
	}
	b, err := f(ctx, s)
	if err != nil {
		return nil, errors.Errorf("creating redacter %s: %w", name, err)
	}
	return b, nil
}

// NewAll creates backends in the order named; a name may repeat
func NewAll(ctx context.Context, names []string, s Settings) ([]Backend, error) {
	out := make([]Backend, 0, len(names))
	for _, n := range names {
		b, err := New(ctx, n, s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
