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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentials(t *testing.T) {
	c, err := ParseCredentials(map[string]string{
		"OPENAI_API_KEY":              "sk-test",
		"PRESIDIO_ANALYZER_URL":       "http://analyzer",
		"PRESIDIO_IMAGE_REDACTOR_URL": "http://image",
		"GOOGLE_CLOUD_PROJECT":        "fallback",
		"AWS_REGION":                  "eu-west-1",
		"GEMINI_API_KEY":              "gm-test",
		"UNRELATED":                   "x",
	})
	require.NoError(t, err, "parsing credentials")

	s := c.Settings()
	assert.Equal(t, "sk-test", s.OpenAI.APIKey, "api key should match")
	assert.Equal(t, "http://analyzer", s.Presidio.AnalyzerURL, "analyzer should match")
	assert.Equal(t, "http://image", s.Presidio.ImageRedactorURL, "image redactor should match")
	assert.Equal(t, "fallback", s.GCPDLP.ProjectID, "GOOGLE_CLOUD_PROJECT is the fallback project")
	assert.Equal(t, "eu-west-1", s.Comprehend.Region, "region should match")
	assert.Equal(t, "gm-test", s.Gemini.APIKey, "gemini key should match")
	assert.Equal(t, "fallback", s.Gemini.ProjectID, "gemini shares the gcp project")

	c, err = ParseCredentials(map[string]string{"GCP_PROJECT_ID": "primary", "GOOGLE_CLOUD_PROJECT": "fallback"})
	require.NoError(t, err, "parsing credentials")
	assert.Equal(t, "primary", c.Settings().GCPDLP.ProjectID, "GCP_PROJECT_ID wins")
}

func TestLoadCredentialsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PRESIDIO_ANALYZER_URL=http://from-dotenv\nAWS_REGION=ap-south-1\n"), 0o600), "writing dotenv")

	// godotenv never overrides a variable that is already set
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("PRESIDIO_ANALYZER_URL", "")
	require.NoError(t, os.Unsetenv("PRESIDIO_ANALYZER_URL"), "unsetting")

	c, err := LoadCredentials(testContext(t), path)
	require.NoError(t, err, "loading credentials")
	assert.Equal(t, "http://from-dotenv", c.PresidioAnalyzerURL, "dotenv value should load")
	assert.Equal(t, "us-west-2", c.AWSRegion, "process env wins over dotenv")

	_, err = LoadCredentials(testContext(t), filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err, "an explicit missing dotenv fails")
}
