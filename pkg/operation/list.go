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

package operation

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/redacter/pkg/enumerate"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// 📂 Listing is the outcome of a list run, sorted by path
type Listing struct {
	Entries  []storage.Entry
	Bytes    int64
	Filtered int
}

// 📂 List enumerates src with the given filters and reads nothing
func List(ctx context.Context, src storage.Provider, filter enumerate.Options) (*Listing, error) {
	enum, err := enumerate.New(src, filter)
	if err != nil {
		return nil, errors.Errorf("configuring filters: %w", err)
	}

	out := &Listing{}
	for entry, err := range enum.Entries(ctx) {
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, entry)
		out.Bytes += entry.Size
	}
	out.Filtered = enum.Filtered()
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Path < out.Entries[j].Path })

	zerolog.Ctx(ctx).Debug().Int("entries", len(out.Entries)).Int("filtered", out.Filtered).Msg("listing finished")
	return out, nil
}
