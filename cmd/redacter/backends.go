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

package main

// backends register themselves with pkg/redact
import (
	_ "github.com/walteh/redacter/pkg/redact/comprehend"
	_ "github.com/walteh/redacter/pkg/redact/gcpdlp"
	_ "github.com/walteh/redacter/pkg/redact/gemini"
	_ "github.com/walteh/redacter/pkg/redact/openai"
	_ "github.com/walteh/redacter/pkg/redact/presidio"
)
