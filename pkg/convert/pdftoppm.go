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
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📄 Pdftoppm rasterizes PDFs with poppler's pdftoppm
type Pdftoppm struct {
	Path string
}

// 🏭 NewPdftoppm locates pdftoppm on PATH
func NewPdftoppm() (*Pdftoppm, error) {
	p, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, errors.Errorf("locating pdftoppm: %w", err)
	}
	return &Pdftoppm{Path: p}, nil
}

func (p *Pdftoppm) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	dir, err := os.MkdirTemp("", "redacter-pdf-")
	if err != nil {
		return nil, errors.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, errors.Errorf("writing pdf: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Path, "-r", strconv.Itoa(dpi), "-png", in, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Errorf("running pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}

	pages := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := decodePNG(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}

	zerolog.Ctx(ctx).Debug().Int("pages", len(pages)).Msg("pdftoppm finished")
	return pages, nil
}

// pageFiles returns page-N.png files ordered by N; pdftoppm zero-pads N to the
// width of the page count, so lexical order is not enough
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, errors.Errorf("listing pages: %w", err)
	}

	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "page-"), ".png")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening page: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Errorf("decoding page %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
