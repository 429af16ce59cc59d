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
	"github.com/walteh/redacter/pkg/mediatype"
)

// 🧭 Phase is the support level a plan was selected at
type Phase int

const (
	PhaseNone Phase = iota
	PhaseNative
	PhaseConversion
)

// String returns a string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseNative:
		return "native"
	case PhaseConversion:
		return "conversion"
	default:
		return "none"
	}
}

// 🗺️ Plan is the chain of backends chosen for one category. The chain runs
// in configured order, each backend consuming the previous one's output.
type Plan struct {
	Category mediatype.Category
	Phase    Phase
	Backends []Backend
}

// Names lists the chain's backend names in order
func (p Plan) Names() []string {
	names := make([]string, len(p.Backends))
	for i, b := range p.Backends {
		names[i] = b.Descriptor().Name
	}
	return names
}

// 🧭 Plan selects the chain for cat. Every backend with native support is
// chosen; when there is none, every backend whose conversion route is
// available. The result depends only on the configured order and cat.
func (e *Engine) Plan(cat mediatype.Category) Plan {
	p := Plan{Category: cat}
	for _, b := range e.backends {
		if b.Descriptor().For(cat) == NativeSupport {
			p.Backends = append(p.Backends, b)
		}
	}
	if len(p.Backends) > 0 {
		p.Phase = PhaseNative
		return p
	}

	for _, b := range e.backends {
		d := b.Descriptor()
		if d.For(cat) == ConversionRequired && e.routeAvailable(d, cat) {
			p.Backends = append(p.Backends, b)
		}
	}
	if len(p.Backends) > 0 {
		p.Phase = PhaseConversion
	}
	return p
}

// routeAvailable reports whether the converters a conversion route needs are
// present
func (e *Engine) routeAvailable(d Descriptor, cat mediatype.Category) bool {
	text := d.For(mediatype.PlainText) == NativeSupport
	switch cat {
	case mediatype.MarkupOrStructured, mediatype.Table:
		return text
	case mediatype.Image:
		return text && e.conv.CanRecognize()
	case mediatype.Pdf:
		if !e.conv.CanRender() {
			return false
		}
		return d.For(mediatype.Image) == NativeSupport || (text && e.conv.CanRecognize())
	default:
		return false
	}
}
