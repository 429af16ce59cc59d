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

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/walteh/redacter/pkg/config"
)

// 🔍 filterFlags are shared by cp and ls
type filterFlags struct {
	filename []string
	maxSize  string
	maxFiles int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filename, "filename-filter", "f", nil, "glob an entry path or name must match (repeatable)")
	cmd.Flags().StringVarP(&f.maxSize, "max-size", "s", "", "skip entries larger than this, e.g. 10MB")
	cmd.Flags().IntVarP(&f.maxFiles, "max-files-limit", "n", 0, "stop after this many entries")
}

func (f *filterFlags) apply(cfg *config.Config, changed func(string) bool) {
	if !changed("filename-filter") && !changed("max-size") && !changed("max-files-limit") {
		return
	}
	if cfg.Filter == nil {
		cfg.Filter = &config.FilterConfig{}
	}
	if changed("filename-filter") {
		cfg.Filter.Filename = f.filename
	}
	if changed("max-size") {
		cfg.Filter.MaxSize = f.maxSize
	}
	if changed("max-files-limit") {
		cfg.Filter.MaxFiles = f.maxFiles
	}
}

// ✂️ cpFlags mirror the run configuration; only flags the user sets
// override the file
type cpFlags struct {
	filterFlags

	redact                 []string
	allowUnsupportedCopies bool
	samplingSize           string
	samplingTail           string
	limitDLPRequests       string
	dlpConcurrency         int
	maxRetries             int
	mimeOverrides          []string
	csvHeadersDisable      bool
	csvDelimiter           string
	mask                   string
	pdfDPI                 int
	workers                int
	backendTimeout         string

	presidioAnalyzerURL      string
	presidioImageRedactorURL string
	openaiAPIKey             string
	openaiModel              string
	openaiBaseURL            string
	awsRegion                string
	comprehendLanguage       string
	gcpProjectID             string
	gcpLocation              string
	gcpInfoTypes             []string
	geminiAPIKey             string
	geminiModel              string
}

func (f *cpFlags) register(cmd *cobra.Command) {
	f.filterFlags.register(cmd)

	fl := cmd.Flags()
	fl.StringArrayVarP(&f.redact, "redact", "r", nil, "redaction backend to apply, in order (repeatable): presidio, openai, gemini, comprehend, gcp-dlp")
	fl.BoolVar(&f.allowUnsupportedCopies, "allow-unsupported-copies", false, "copy entries no backend can redact instead of skipping them")
	fl.StringVar(&f.samplingSize, "sampling-size", "", "send at most this many bytes of text or table content to backends, e.g. 64KiB")
	fl.StringVar(&f.samplingTail, "sampling-tail", "", "what to do with content beyond --sampling-size: copy or drop")
	fl.StringVar(&f.limitDLPRequests, "limit-dlp-requests", "", "cap backend request throughput, e.g. 10rps or 600rpm")
	fl.IntVar(&f.dlpConcurrency, "dlp-concurrency", 0, "cap on concurrent backend requests (default --workers)")
	fl.IntVar(&f.maxRetries, "max-retries", config.DefaultMaxRetries, "retries for transient storage and backend errors")
	fl.StringArrayVar(&f.mimeOverrides, "mime-override", nil, "force a media type for matching entries as <mime>=<glob> (repeatable)")
	fl.BoolVar(&f.csvHeadersDisable, "csv-headers-disable", false, "treat the first CSV record as data")
	fl.StringVar(&f.csvDelimiter, "csv-delimiter", "", "CSV field delimiter (default ,)")
	fl.StringVar(&f.mask, "mask", config.DefaultMask, "byte used to mask sensitive text")
	fl.IntVar(&f.pdfDPI, "pdf-dpi", config.DefaultPdfDPI, "resolution used when rendering pdf pages")
	fl.IntVarP(&f.workers, "workers", "w", config.DefaultWorkers, "entries processed concurrently")
	fl.StringVar(&f.backendTimeout, "backend-timeout", "", "timeout of a single backend request, e.g. 30s")

	fl.StringVar(&f.presidioAnalyzerURL, "presidio-analyzer-url", "", "presidio analyzer endpoint (env PRESIDIO_ANALYZER_URL)")
	fl.StringVar(&f.presidioImageRedactorURL, "presidio-image-redactor-url", "", "presidio image redactor endpoint (env PRESIDIO_IMAGE_REDACTOR_URL)")
	fl.StringVar(&f.openaiAPIKey, "openai-api-key", "", "openai api key (env OPENAI_API_KEY)")
	fl.StringVar(&f.openaiModel, "openai-model", "", "openai chat model (default gpt-4o-mini)")
	fl.StringVar(&f.openaiBaseURL, "openai-base-url", "", "openai compatible api base url (env OPENAI_BASE_URL)")
	fl.StringVar(&f.awsRegion, "aws-region", "", "comprehend region (env AWS_REGION)")
	fl.StringVar(&f.comprehendLanguage, "comprehend-language", "", "comprehend language code (default en)")
	fl.StringVar(&f.gcpProjectID, "gcp-project-id", "", "gcp project for DLP (env GCP_PROJECT_ID)")
	fl.StringVar(&f.gcpLocation, "gcp-location", "", "gcp DLP location (default global)")
	fl.StringArrayVar(&f.gcpInfoTypes, "gcp-info-type", nil, "gcp DLP info type to detect (repeatable)")
	fl.StringVar(&f.geminiAPIKey, "gemini-api-key", "", "gemini api key; application default credentials are used without one (env GEMINI_API_KEY)")
	fl.StringVar(&f.geminiModel, "gemini-model", "", "gemini model (default models/gemini-1.5-flash)")
}

// apply copies every flag the user set into cfg
func (f *cpFlags) apply(cfg *config.Config, changed func(string) bool) {
	f.filterFlags.apply(cfg, changed)

	if changed("redact") {
		cfg.Redact = f.redact
	}
	if changed("allow-unsupported-copies") {
		cfg.AllowUnsupportedCopies = f.allowUnsupportedCopies
	}
	setString(changed, "sampling-size", &cfg.SamplingSize, f.samplingSize)
	setString(changed, "sampling-tail", &cfg.SamplingTail, f.samplingTail)
	setString(changed, "limit-dlp-requests", &cfg.LimitDLPRequests, f.limitDLPRequests)
	setString(changed, "mask", &cfg.Mask, f.mask)
	setString(changed, "backend-timeout", &cfg.BackendTimeout, f.backendTimeout)
	if changed("dlp-concurrency") {
		cfg.DLPConcurrency = f.dlpConcurrency
	}
	if changed("max-retries") {
		n := f.maxRetries
		cfg.MaxRetries = &n
	}
	if changed("mime-override") {
		cfg.MimeOverrides = f.mimeOverrides
	}
	if changed("pdf-dpi") {
		cfg.PdfDPI = f.pdfDPI
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}

	if changed("csv-headers-disable") || changed("csv-delimiter") {
		if cfg.CSV == nil {
			cfg.CSV = &config.CSVConfig{}
		}
		if changed("csv-headers-disable") {
			cfg.CSV.HeadersDisable = f.csvHeadersDisable
		}
		setString(changed, "csv-delimiter", &cfg.CSV.Delimiter, f.csvDelimiter)
	}

	if anyChanged(changed, "presidio-") {
		if cfg.Presidio == nil {
			cfg.Presidio = &config.PresidioConfig{}
		}
		setString(changed, "presidio-analyzer-url", &cfg.Presidio.AnalyzerURL, f.presidioAnalyzerURL)
		setString(changed, "presidio-image-redactor-url", &cfg.Presidio.ImageRedactorURL, f.presidioImageRedactorURL)
	}
	if changed("openai-model") || changed("openai-base-url") {
		if cfg.OpenAI == nil {
			cfg.OpenAI = &config.OpenAIConfig{}
		}
		setString(changed, "openai-model", &cfg.OpenAI.Model, f.openaiModel)
		setString(changed, "openai-base-url", &cfg.OpenAI.BaseURL, f.openaiBaseURL)
	}
	if changed("aws-region") || changed("comprehend-language") {
		if cfg.Comprehend == nil {
			cfg.Comprehend = &config.ComprehendConfig{}
		}
		setString(changed, "aws-region", &cfg.Comprehend.Region, f.awsRegion)
		setString(changed, "comprehend-language", &cfg.Comprehend.Language, f.comprehendLanguage)
	}
	if anyChanged(changed, "gcp-") {
		if cfg.GCPDLP == nil {
			cfg.GCPDLP = &config.GCPDLPConfig{}
		}
		setString(changed, "gcp-project-id", &cfg.GCPDLP.ProjectID, f.gcpProjectID)
		setString(changed, "gcp-location", &cfg.GCPDLP.Location, f.gcpLocation)
		if changed("gcp-info-type") {
			cfg.GCPDLP.InfoTypes = f.gcpInfoTypes
		}
	}
	if changed("gemini-model") {
		if cfg.Gemini == nil {
			cfg.Gemini = &config.GeminiConfig{}
		}
		cfg.Gemini.Model = f.geminiModel
	}
}

var prefixedFlags = []string{
	"presidio-analyzer-url", "presidio-image-redactor-url",
	"gcp-project-id", "gcp-location", "gcp-info-type",
}

func anyChanged(changed func(string) bool, prefix string) bool {
	for _, name := range prefixedFlags {
		if strings.HasPrefix(name, prefix) && changed(name) {
			return true
		}
	}
	return false
}

func setString(changed func(string) bool, name string, dst *string, v string) {
	if changed(name) {
		*dst = v
	}
}
