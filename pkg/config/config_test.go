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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600), "writing config")
	return path
}

// every format describes the same run
func checkFull(t *testing.T, cfg *Config) {
	assert.Equal(t, []string{"presidio", "openai-llm"}, cfg.Redact, "redact should match")
	assert.Equal(t, 4, cfg.Workers, "workers should match")
	require.NotNil(t, cfg.MaxRetries, "max retries should be set")
	assert.Equal(t, 0, *cfg.MaxRetries, "explicit zero retries survive validation")
	assert.Equal(t, "10rps", cfg.LimitDLPRequests, "limit should match")
	assert.Zero(t, cfg.DLPConcurrency, "concurrency is left unset")
	require.NotNil(t, cfg.Filter, "filter should be set")
	assert.Equal(t, []string{"*.txt"}, cfg.Filter.Filename, "filename filter should match")
	assert.Equal(t, "1KiB", cfg.Filter.MaxSize, "max size should match")
	require.NotNil(t, cfg.Presidio, "presidio should be set")
	assert.Equal(t, "http://analyzer", cfg.Presidio.AnalyzerURL, "analyzer url should match")
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "yaml",
			file: "redacter.yaml",
			body: `
redact: [presidio, openai-llm]
workers: 4
max_retries: 0
limit_dlp_requests: 10rps
filter:
  filename: ["*.txt"]
  max_size: 1KiB
presidio:
  analyzer_url: http://analyzer
`,
		},
		{
			name: "json",
			file: "redacter.json",
			body: `{
	"redact": ["presidio", "openai-llm"],
	"workers": 4,
	"max_retries": 0,
	"limit_dlp_requests": "10rps",
	"filter": {"filename": ["*.txt"], "max_size": "1KiB"},
	"presidio": {"analyzer_url": "http://analyzer"}
}`,
		},
		{
			name: "toml",
			file: "redacter.toml",
			body: `
redact = ["presidio", "openai-llm"]
workers = 4
max_retries = 0
limit_dlp_requests = "10rps"

[filter]
filename = ["*.txt"]
max_size = "1KiB"

[presidio]
analyzer_url = "http://analyzer"
`,
		},
		{
			name: "hcl",
			file: "redacter.hcl",
			body: `
redact             = ["presidio", "openai-llm"]
workers            = 4
max_retries        = 0
limit_dlp_requests = "10rps"

filter {
  filename = ["*.txt"]
  max_size = "1KiB"
}

presidio {
  analyzer_url = "http://analyzer"
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(testContext(t), writeConfig(t, tt.file, tt.body))
			require.NoError(t, err, "loading config")
			checkFull(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		body        string
		errContains string
	}{
		{name: "unknown_extension", file: "redacter.txt", body: "", errContains: "no parser found"},
		{name: "yaml_unknown_field", file: "r.yaml", body: "bogus: 1\n", errContains: "parsing YAML"},
		{name: "json_unknown_field", file: "r.json", body: `{"bogus": 1}`, errContains: "parsing JSON"},
		{name: "toml_unknown_key", file: "r.toml", body: "bogus = 1\n", errContains: "unknown keys bogus"},
		{name: "hcl_unknown_attribute", file: "r.hcl", body: "bogus = 1\n", errContains: "decoding HCL"},
		{name: "bad_limit", file: "r.yaml", body: "limit_dlp_requests: fast\n", errContains: "want <N>rps or <N>rpm"},
		{name: "bad_override", file: "r.yaml", body: "mime_overrides: [text/plain]\n", errContains: "<mime>=<glob>"},
		{name: "bad_max_size", file: "r.yaml", body: "filter:\n  max_size: lots\n", errContains: "parsing max_size"},
		{name: "bad_tail", file: "r.yaml", body: "sampling_tail: keep\n", errContains: "want copy or drop"},
		{name: "negative_retries", file: "r.yaml", body: "max_retries: -1\n", errContains: "must not be negative"},
		{name: "long_mask", file: "r.yaml", body: "mask: XX\n", errContains: "single byte"},
		{name: "quote_delimiter", file: "r.yaml", body: "csv:\n  delimiter: '\"'\n", errContains: "csv delimiter"},
		{name: "bad_timeout", file: "r.yaml", body: "backend_timeout: soon\n", errContains: "backend_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(testContext(t), writeConfig(t, tt.file, tt.body))
			require.Error(t, err, "loading should fail")
			assert.Contains(t, err.Error(), tt.errContains, "error should explain the problem")
		})
	}

	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(testContext(t), filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err, "loading should fail")
		assert.Contains(t, err.Error(), "reading config file", "error should name the read")
	})
}

func TestValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate(), "empty config is valid")

	assert.Equal(t, DefaultWorkers, cfg.Workers, "workers default")
	require.NotNil(t, cfg.MaxRetries, "retries default")
	assert.Equal(t, DefaultMaxRetries, *cfg.MaxRetries, "retries default")
	assert.Zero(t, cfg.DLPConcurrency, "concurrency is not written back")
	assert.Equal(t, DefaultPdfDPI, cfg.PdfDPI, "dpi default")
	assert.Equal(t, DefaultMask, cfg.Mask, "mask default")
	assert.Equal(t, DefaultTail, cfg.SamplingTail, "tail default")
}

func TestResolveConcurrency(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		overlay   func(cfg *Config)
		wantJobs  int
		wantLimit int
	}{
		{name: "defaults", body: "{}\n", wantJobs: DefaultWorkers, wantLimit: DefaultWorkers},
		{name: "file_workers", body: "workers: 4\n", wantJobs: 4, wantLimit: 4},
		{
			name:      "workers_overridden_after_load",
			body:      "workers: 4\n",
			overlay:   func(cfg *Config) { cfg.Workers = 16 },
			wantJobs:  16,
			wantLimit: 16,
		},
		{
			name:      "explicit_concurrency_kept",
			body:      "workers: 4\ndlp_concurrency: 2\n",
			overlay:   func(cfg *Config) { cfg.Workers = 16 },
			wantJobs:  16,
			wantLimit: 2,
		},
		{
			name:      "concurrency_overridden_after_load",
			body:      "workers: 4\n",
			overlay:   func(cfg *Config) { cfg.DLPConcurrency = 1 },
			wantJobs:  4,
			wantLimit: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(testContext(t), writeConfig(t, "redacter.yaml", tt.body))
			require.NoError(t, err, "loading")
			if tt.overlay != nil {
				tt.overlay(cfg)
			}
			require.NoError(t, cfg.Validate(), "validating after the overlay")

			run, err := cfg.Resolve()
			require.NoError(t, err, "resolving")
			assert.Equal(t, tt.wantJobs, run.Workers, "workers should match")
			assert.Equal(t, tt.wantLimit, run.Concurrency, "concurrency should match")
		})
	}
}

func TestValidateNegativeConcurrency(t *testing.T) {
	cfg := &Config{DLPConcurrency: -1}
	err := cfg.Validate()
	require.Error(t, err, "negative concurrency is rejected")
	assert.Contains(t, err.Error(), "dlp_concurrency", "error should name the field")
}

func TestResolve(t *testing.T) {
	retries := 2
	cfg := &Config{
		Redact:                 []string{"presidio"},
		AllowUnsupportedCopies: true,
		SamplingSize:           "64KiB",
		SamplingTail:           "drop",
		LimitDLPRequests:       "600rpm",
		MaxRetries:             &retries,
		MimeOverrides:          []string{"text/plain=*.bin"},
		Mask:                   "#",
		BackendTimeout:         "3s",
		Filter:                 &FilterConfig{Filename: []string{"**/*.csv"}, MaxSize: "10MB", MaxFiles: 7},
		CSV:                    &CSVConfig{HeadersDisable: true, Delimiter: ";"},
	}
	require.NoError(t, cfg.Validate(), "validating")

	run, err := cfg.Resolve()
	require.NoError(t, err, "resolving")

	assert.Equal(t, []string{"presidio"}, run.Backends, "backends should match")
	assert.Equal(t, []string{"**/*.csv"}, run.Filter.Filename, "filename filter should match")
	assert.Equal(t, int64(10_000_000), run.Filter.MaxSize, "max size is decimal megabytes")
	assert.Equal(t, 7, run.Filter.MaxFiles, "max files should match")
	assert.Equal(t, []mediatype.Override{{MediaType: "text/plain", Glob: "*.bin"}}, run.Overrides, "overrides should match")
	require.NotNil(t, run.Limit, "limit should be set")
	assert.Equal(t, redact.RequestLimit{Count: 600, Per: time.Minute}, *run.Limit, "limit should match")
	assert.Equal(t, 3*time.Second, run.Timeout, "timeout should match")
	assert.Equal(t, DefaultWorkers, run.Workers, "workers default")
	assert.Equal(t, DefaultWorkers, run.Concurrency, "concurrency default")
	assert.Equal(t, DefaultPdfDPI, run.PdfDPI, "dpi default")

	assert.True(t, run.Engine.AllowUnsupportedCopies, "unsupported copies should be allowed")
	assert.Equal(t, 65536, run.Engine.SamplingSize, "sampling size is binary kilobytes")
	assert.Equal(t, redact.TailDrop, run.Engine.SamplingTail, "tail should be drop")
	assert.Equal(t, 2, run.Engine.MaxRetries, "retries should match")
	assert.Equal(t, byte('#'), run.Engine.Mask, "mask should match")
	assert.Equal(t, redact.TableOptions{Delimiter: ';', NoHeaders: true}, run.Engine.Table, "table options should match")
}

func TestSettings(t *testing.T) {
	creds := Credentials{
		OpenAIAPIKey:        "sk-env",
		PresidioAnalyzerURL: "http://env-analyzer",
		GoogleCloudProject:  "env-project",
		AWSRegion:           "us-east-1",
	}
	cfg := &Config{
		BackendTimeout: "5s",
		Presidio:       &PresidioConfig{ImageRedactorURL: "http://file-image"},
		OpenAI:         &OpenAIConfig{Model: "gpt-4o-mini"},
		Comprehend:     &ComprehendConfig{Language: "es"},
		GCPDLP:         &GCPDLPConfig{ProjectID: "file-project", InfoTypes: []string{"EMAIL_ADDRESS"}},
		Gemini:         &GeminiConfig{Model: "gemini-1.5-pro"},
	}

	s := cfg.Settings(creds)
	assert.Equal(t, "http://env-analyzer", s.Presidio.AnalyzerURL, "env value kept when the file is silent")
	assert.Equal(t, "http://file-image", s.Presidio.ImageRedactorURL, "file value applied")
	assert.Equal(t, "sk-env", s.OpenAI.APIKey, "key only comes from env")
	assert.Equal(t, "gpt-4o-mini", s.OpenAI.Model, "model from file")
	assert.Equal(t, "us-east-1", s.Comprehend.Region, "region from env")
	assert.Equal(t, "es", s.Comprehend.Language, "language from file")
	assert.Equal(t, "file-project", s.GCPDLP.ProjectID, "file wins over env")
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, s.GCPDLP.InfoTypes, "info types from file")
	assert.Equal(t, 5*time.Second, s.Timeout, "timeout from file")
	assert.Equal(t, "file-project", s.Gemini.ProjectID, "gemini bills the dlp project")
	assert.Equal(t, "gemini-1.5-pro", s.Gemini.Model, "gemini model from file")

	cfg.Gemini.ProjectID = "gemini-project"
	assert.Equal(t, "gemini-project", cfg.Settings(creds).Gemini.ProjectID, "a gemini project wins")
}
