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

package convert

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔤 Tesseract recognizes words with the tesseract CLI in TSV mode
type Tesseract struct {
	Path     string
	Language string
}

// 🏭 NewTesseract locates tesseract on PATH
func NewTesseract() (*Tesseract, error) {
	p, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, errors.Errorf("locating tesseract: %w", err)
	}
	return &Tesseract{Path: p, Language: "eng"}, nil
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]Region, error) {
	dir, err := os.MkdirTemp("", "redacter-ocr-")
	if err != nil {
		return nil, errors.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	f, err := os.Create(in)
	if err != nil {
		return nil, errors.Errorf("creating image file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, errors.Errorf("encoding image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Errorf("closing image file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, in, "stdout", "-l", t.Language, "tsv")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Errorf("running tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// tesseract reports boxes relative to the encoded image, which starts at 0,0
	return ParseTSV(&stdout)
}

// 📋 ParseTSV reads word-level (level 5) rows of tesseract TSV output
func ParseTSV(r io.Reader) ([]Region, error) {
	var regions []Region
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	header := true
	for sc.Scan() {
		line := sc.Text()
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		cols := strings.SplitN(line, "\t", 12)
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		var nums [4]int
		for i := range nums {
			n, err := strconv.Atoi(cols[6+i])
			if err != nil {
				return nil, errors.Errorf("parsing tsv box column %d %q: %w", 6+i, cols[6+i], err)
			}
			nums[i] = n
		}
		left, top, width, height := nums[0], nums[1], nums[2], nums[3]
		regions = append(regions, Region{
			Bounds: image.Rect(left, top, left+width, top+height),
			Text:   text,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Errorf("reading tsv: %w", err)
	}
	return regions, nil
}
