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

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/redact"
	"gitlab.com/tozd/go/errors"
)

// 🔑 Credentials are the backend values read from the environment
type Credentials struct {
	OpenAIAPIKey             string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL            string `env:"OPENAI_BASE_URL"`
	PresidioAnalyzerURL      string `env:"PRESIDIO_ANALYZER_URL"`
	PresidioImageRedactorURL string `env:"PRESIDIO_IMAGE_REDACTOR_URL"`
	GCPProjectID             string `env:"GCP_PROJECT_ID"`
	GoogleCloudProject       string `env:"GOOGLE_CLOUD_PROJECT"`
	AWSRegion                string `env:"AWS_REGION"`
	GeminiAPIKey             string `env:"GEMINI_API_KEY"`
}

// 🌱 LoadCredentials reads credentials from the process environment after
// loading dotenv files. With no files, ./.env is loaded when present.
// Variables already set are never overwritten.
func LoadCredentials(ctx context.Context, dotenv ...string) (Credentials, error) {
	logger := zerolog.Ctx(ctx)

	if len(dotenv) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			dotenv = []string{".env"}
		}
	}
	if len(dotenv) > 0 {
		if err := godotenv.Load(dotenv...); err != nil {
			return Credentials{}, errors.Errorf("loading dotenv %v: %w", dotenv, err)
		}
		logger.Debug().Strs("files", dotenv).Msg("loaded dotenv")
	}

	return ParseCredentials(nil)
}

// ParseCredentials reads credentials from environ, or from the process
// environment when environ is nil
func ParseCredentials(environ map[string]string) (Credentials, error) {
	var opts env.Options
	if environ != nil {
		opts.Environment = environ
	}
	c, err := env.ParseAsWithOptions[Credentials](opts)
	if err != nil {
		return Credentials{}, errors.Errorf("parsing environment: %w", err)
	}
	return c, nil
}

// Settings converts credentials to backend settings
func (c Credentials) Settings() redact.Settings {
	return redact.Settings{
		Presidio: redact.PresidioSettings{
			AnalyzerURL:      c.PresidioAnalyzerURL,
			ImageRedactorURL: c.PresidioImageRedactorURL,
		},
		OpenAI: redact.OpenAISettings{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
		},
		Comprehend: redact.ComprehendSettings{
			Region: c.AWSRegion,
		},
		GCPDLP: redact.GCPDLPSettings{
			ProjectID: or(c.GCPProjectID, c.GoogleCloudProject),
		},
		Gemini: redact.GeminiSettings{
			ProjectID: or(c.GCPProjectID, c.GoogleCloudProject),
			APIKey:    c.GeminiAPIKey,
		},
	}
}
