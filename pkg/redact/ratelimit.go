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
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ⏱️ RequestLimit is a throughput cap such as 10rps or 600rpm
type RequestLimit struct {
	Count int
	Per   time.Duration
}

// ParseRequestLimit parses "<N>rps" or "<N>rpm"
func ParseRequestLimit(s string) (RequestLimit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var per time.Duration
	var num string
	switch {
	case strings.HasSuffix(s, "rps"):
		per, num = time.Second, strings.TrimSuffix(s, "rps")
	case strings.HasSuffix(s, "rpm"):
		per, num = time.Minute, strings.TrimSuffix(s, "rpm")
	default:
		return RequestLimit{}, errors.Errorf("request limit %q: want <N>rps or <N>rpm", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return RequestLimit{}, errors.Errorf("request limit %q: count must be a positive integer", s)
	}
	return RequestLimit{Count: n, Per: per}, nil
}

func (l RequestLimit) String() string {
	if l.Per == time.Minute {
		return strconv.Itoa(l.Count) + "rpm"
	}
	return strconv.Itoa(l.Count) + "rps"
}

// Limit converts the cap to a token rate
func (l RequestLimit) Limit() rate.Limit {
	return rate.Every(l.Per / time.Duration(l.Count))
}

// 🚥 RateLimiter is shared by every worker of a run. It caps the number of
// outstanding backend calls and, optionally, their rate. A nil *RateLimiter
// allows everything.
type RateLimiter struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	inflight atomic.Int64
	peak     atomic.Int64
}

// 🏭 NewRateLimiter builds a limiter; concurrency <= 0 means no cap on
// outstanding calls and a nil limit means no throughput cap
func NewRateLimiter(concurrency int, limit *RequestLimit) *RateLimiter {
	r := &RateLimiter{}
	if concurrency > 0 {
		r.sem = semaphore.NewWeighted(int64(concurrency))
	}
	if limit != nil {
		r.limiter = rate.NewLimiter(limit.Limit(), 1)
	}
	return r
}

// Acquire blocks until a call may start. The returned release must be
// called once the call completes, whatever its outcome.
func (r *RateLimiter) Acquire(ctx context.Context) (func(), error) {
	if r == nil {
		return func() {}, nil
	}
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, errors.Errorf("waiting for backend slot: %w", err)
		}
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			if r.sem != nil {
				r.sem.Release(1)
			}
			return nil, errors.Errorf("waiting for request budget: %w", err)
		}
	}

	n := r.inflight.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		r.inflight.Add(-1)
		if r.sem != nil {
			r.sem.Release(1)
		}
	}, nil
}

// Peak returns the highest number of calls that were outstanding at once
func (r *RateLimiter) Peak() int {
	if r == nil {
		return 0
	}
	return int(r.peak.Load())
}
