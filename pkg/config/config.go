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
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/enumerate"
	"github.com/walteh/redacter/pkg/mediatype"
	"github.com/walteh/redacter/pkg/redact"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	name := strings.ToLower(filepath.Base(filename))
	for _, p := range parsers {
		if p.CanParse(name) {
			return p
		}
	}
	return nil
}

// Defaults applied by Validate
const (
	DefaultWorkers    = 8
	DefaultMaxRetries = 3
	DefaultPdfDPI     = 150
	DefaultMask       = "X"
	DefaultTail       = "copy"
)

// 🔍 FilterConfig bounds the source traversal
type FilterConfig struct {
	Filename []string `json:"filename,omitempty" yaml:"filename,omitempty" toml:"filename,omitempty" hcl:"filename,optional"`
	MaxSize  string   `json:"max_size,omitempty" yaml:"max_size,omitempty" toml:"max_size,omitempty" hcl:"max_size,optional"` // bytes, "10MB" and "64KiB" work too
	MaxFiles int      `json:"max_files,omitempty" yaml:"max_files,omitempty" toml:"max_files,omitempty" hcl:"max_files,optional"`
}

// 📋 CSVConfig controls how tables are parsed
type CSVConfig struct {
	HeadersDisable bool   `json:"headers_disable,omitempty" yaml:"headers_disable,omitempty" toml:"headers_disable,omitempty" hcl:"headers_disable,optional"`
	Delimiter      string `json:"delimiter,omitempty" yaml:"delimiter,omitempty" toml:"delimiter,omitempty" hcl:"delimiter,optional"`
}

type PresidioConfig struct {
	AnalyzerURL      string `json:"analyzer_url,omitempty" yaml:"analyzer_url,omitempty" toml:"analyzer_url,omitempty" hcl:"analyzer_url,optional"`
	ImageRedactorURL string `json:"image_redactor_url,omitempty" yaml:"image_redactor_url,omitempty" toml:"image_redactor_url,omitempty" hcl:"image_redactor_url,optional"`
}

// OpenAIConfig carries no key; keys only come from the environment or flags
type OpenAIConfig struct {
	Model   string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty" hcl:"model,optional"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty" hcl:"base_url,optional"`
}

// GeminiConfig bills ProjectID, or the gcp_dlp project when empty
type GeminiConfig struct {
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty" toml:"project_id,omitempty" hcl:"project_id,optional"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty" hcl:"model,optional"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty" hcl:"base_url,optional"`
}

type ComprehendConfig struct {
	Region   string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty" hcl:"region,optional"`
	Language string `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty" hcl:"language,optional"`
}

type GCPDLPConfig struct {
	ProjectID string   `json:"project_id,omitempty" yaml:"project_id,omitempty" toml:"project_id,omitempty" hcl:"project_id,optional"`
	Location  string   `json:"location,omitempty" yaml:"location,omitempty" toml:"location,omitempty" hcl:"location,optional"`
	InfoTypes []string `json:"info_types,omitempty" yaml:"info_types,omitempty" toml:"info_types,omitempty" hcl:"info_types,optional"`
}

// 📚 Config is a run configuration. Every field mirrors a cp flag.
type Config struct {
	Redact                 []string `json:"redact,omitempty" yaml:"redact,omitempty" toml:"redact,omitempty" hcl:"redact,optional"`
	AllowUnsupportedCopies bool     `json:"allow_unsupported_copies,omitempty" yaml:"allow_unsupported_copies,omitempty" toml:"allow_unsupported_copies,omitempty" hcl:"allow_unsupported_copies,optional"`
	SamplingSize           string   `json:"sampling_size,omitempty" yaml:"sampling_size,omitempty" toml:"sampling_size,omitempty" hcl:"sampling_size,optional"`
	SamplingTail           string   `json:"sampling_tail,omitempty" yaml:"sampling_tail,omitempty" toml:"sampling_tail,omitempty" hcl:"sampling_tail,optional"`
	LimitDLPRequests       string   `json:"limit_dlp_requests,omitempty" yaml:"limit_dlp_requests,omitempty" toml:"limit_dlp_requests,omitempty" hcl:"limit_dlp_requests,optional"`
	DLPConcurrency         int      `json:"dlp_concurrency,omitempty" yaml:"dlp_concurrency,omitempty" toml:"dlp_concurrency,omitempty" hcl:"dlp_concurrency,optional"`
	MaxRetries             *int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty" hcl:"max_retries,optional"`
	MimeOverrides          []string `json:"mime_overrides,omitempty" yaml:"mime_overrides,omitempty" toml:"mime_overrides,omitempty" hcl:"mime_overrides,optional"`
	Mask                   string   `json:"mask,omitempty" yaml:"mask,omitempty" toml:"mask,omitempty" hcl:"mask,optional"`
	PdfDPI                 int      `json:"pdf_dpi,omitempty" yaml:"pdf_dpi,omitempty" toml:"pdf_dpi,omitempty" hcl:"pdf_dpi,optional"`
	Workers                int      `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty" hcl:"workers,optional"`
	BackendTimeout         string   `json:"backend_timeout,omitempty" yaml:"backend_timeout,omitempty" toml:"backend_timeout,omitempty" hcl:"backend_timeout,optional"`

	Filter     *FilterConfig     `json:"filter,omitempty" yaml:"filter,omitempty" toml:"filter,omitempty" hcl:"filter,block"`
	CSV        *CSVConfig        `json:"csv,omitempty" yaml:"csv,omitempty" toml:"csv,omitempty" hcl:"csv,block"`
	Presidio   *PresidioConfig   `json:"presidio,omitempty" yaml:"presidio,omitempty" toml:"presidio,omitempty" hcl:"presidio,block"`
	OpenAI     *OpenAIConfig     `json:"openai,omitempty" yaml:"openai,omitempty" toml:"openai,omitempty" hcl:"openai,block"`
	Comprehend *ComprehendConfig `json:"comprehend,omitempty" yaml:"comprehend,omitempty" toml:"comprehend,omitempty" hcl:"comprehend,block"`
	GCPDLP     *GCPDLPConfig     `json:"gcp_dlp,omitempty" yaml:"gcp_dlp,omitempty" toml:"gcp_dlp,omitempty" hcl:"gcp_dlp,block"`
	Gemini     *GeminiConfig     `json:"gemini,omitempty" yaml:"gemini,omitempty" toml:"gemini,omitempty" hcl:"gemini,block"`
}

// 🎯 Load loads and validates the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate fills defaults and checks that every value parses
func (cfg *Config) Validate() error {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.MaxRetries = &n
	}
	if *cfg.MaxRetries < 0 {
		return errors.Errorf("max_retries must not be negative, got %d", *cfg.MaxRetries)
	}
	if cfg.DLPConcurrency < 0 {
		return errors.Errorf("dlp_concurrency must not be negative, got %d", cfg.DLPConcurrency)
	}
	if cfg.PdfDPI <= 0 {
		cfg.PdfDPI = DefaultPdfDPI
	}
	if cfg.Mask == "" {
		cfg.Mask = DefaultMask
	}
	if cfg.SamplingTail == "" {
		cfg.SamplingTail = DefaultTail
	}

	_, err := cfg.Resolve()
	return err
}

// 🏃 Run is a configuration with every value parsed into the types the run
// consumes
type Run struct {
	Filter      enumerate.Options
	Backends    []string
	Overrides   []mediatype.Override
	Engine      redact.Options // Converter, Limiter and Images are left for the caller
	Limit       *redact.RequestLimit
	Concurrency int
	Workers     int
	PdfDPI      int
	Timeout     time.Duration
}

// 🔧 Resolve parses every value. Call Validate first to fill defaults.
func (cfg *Config) Resolve() (*Run, error) {
	run := &Run{
		Backends:    cfg.Redact,
		Concurrency: cfg.DLPConcurrency,
		Workers:     cfg.Workers,
		PdfDPI:      cfg.PdfDPI,
	}
	// left unset, concurrency follows whatever workers ends up as
	if run.Concurrency == 0 {
		run.Concurrency = cfg.Workers
	}

	if f := cfg.Filter; f != nil {
		run.Filter.Filename = f.Filename
		run.Filter.MaxFiles = f.MaxFiles
		if f.MaxFiles < 0 {
			return nil, errors.Errorf("max_files must not be negative, got %d", f.MaxFiles)
		}
		if f.MaxSize != "" {
			n, err := humanize.ParseBytes(f.MaxSize)
			if err != nil {
				return nil, errors.Errorf("parsing max_size %q: %w", f.MaxSize, err)
			}
			run.Filter.MaxSize = int64(n)
		}
	}

	for _, raw := range cfg.MimeOverrides {
		o, err := mediatype.ParseOverride(raw)
		if err != nil {
			return nil, err
		}
		run.Overrides = append(run.Overrides, o)
	}

	if cfg.LimitDLPRequests != "" {
		l, err := redact.ParseRequestLimit(cfg.LimitDLPRequests)
		if err != nil {
			return nil, err
		}
		run.Limit = &l
	}

	if cfg.BackendTimeout != "" {
		d, err := time.ParseDuration(cfg.BackendTimeout)
		if err != nil {
			return nil, errors.Errorf("parsing backend_timeout %q: %w", cfg.BackendTimeout, err)
		}
		run.Timeout = d
	}

	opts := redact.Options{AllowUnsupportedCopies: cfg.AllowUnsupportedCopies}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.SamplingSize != "" {
		n, err := humanize.ParseBytes(cfg.SamplingSize)
		if err != nil {
			return nil, errors.Errorf("parsing sampling_size %q: %w", cfg.SamplingSize, err)
		}
		opts.SamplingSize = int(n)
	}
	if cfg.SamplingTail != "" {
		tail, err := redact.ParseTailPolicy(cfg.SamplingTail)
		if err != nil {
			return nil, err
		}
		opts.SamplingTail = tail
	}
	if cfg.Mask != "" {
		if len(cfg.Mask) != 1 {
			return nil, errors.Errorf("mask must be a single byte, got %q", cfg.Mask)
		}
		opts.Mask = cfg.Mask[0]
	}
	if c := cfg.CSV; c != nil {
		opts.Table.NoHeaders = c.HeadersDisable
		if c.Delimiter != "" {
			r := []rune(c.Delimiter)
			if len(r) != 1 || r[0] == '\n' || r[0] == '"' {
				return nil, errors.Errorf("csv delimiter must be one character other than a quote or newline, got %q", c.Delimiter)
			}
			opts.Table.Delimiter = r[0]
		}
	}
	run.Engine = opts

	return run, nil
}

// 🔑 Settings merges backend settings from the file over creds
func (cfg *Config) Settings(creds Credentials) redact.Settings {
	s := creds.Settings()
	if p := cfg.Presidio; p != nil {
		s.Presidio.AnalyzerURL = or(p.AnalyzerURL, s.Presidio.AnalyzerURL)
		s.Presidio.ImageRedactorURL = or(p.ImageRedactorURL, s.Presidio.ImageRedactorURL)
	}
	if o := cfg.OpenAI; o != nil {
		s.OpenAI.Model = or(o.Model, s.OpenAI.Model)
		s.OpenAI.BaseURL = or(o.BaseURL, s.OpenAI.BaseURL)
	}
	if c := cfg.Comprehend; c != nil {
		s.Comprehend.Region = or(c.Region, s.Comprehend.Region)
		s.Comprehend.Language = or(c.Language, s.Comprehend.Language)
	}
	if g := cfg.GCPDLP; g != nil {
		s.GCPDLP.ProjectID = or(g.ProjectID, s.GCPDLP.ProjectID)
		s.GCPDLP.Location = or(g.Location, s.GCPDLP.Location)
		if len(g.InfoTypes) > 0 {
			s.GCPDLP.InfoTypes = g.InfoTypes
		}
	}
	if g := cfg.GCPDLP; g != nil {
		s.Gemini.ProjectID = or(g.ProjectID, s.Gemini.ProjectID)
	}
	if g := cfg.Gemini; g != nil {
		s.Gemini.ProjectID = or(g.ProjectID, s.Gemini.ProjectID)
		s.Gemini.Model = or(g.Model, s.Gemini.Model)
		s.Gemini.BaseURL = or(g.BaseURL, s.Gemini.BaseURL)
	}
	if d, err := time.ParseDuration(cfg.BackendTimeout); err == nil {
		s.Timeout = d
	}
	return s
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
