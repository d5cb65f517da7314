// Copyright 2018 The gVisor Authors.
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

package log

import (
	"golang.org/x/time/rate"
)

// RateLimited drops messages beyond a configured rate. Used for
// diagnostics that can fire on every tick or every syscall, where
// unbounded output would drown the log.
type RateLimited struct {
	limiter *rate.Limiter
}

// NewRateLimited returns a logger that emits at most r messages per
// second with the given burst.
func NewRateLimited(r rate.Limit, burst int) *RateLimited {
	return &RateLimited{limiter: rate.NewLimiter(r, burst)}
}

// Debugf logs a debug message, subject to the rate limit.
func (l *RateLimited) Debugf(format string, args ...any) {
	if l.limiter.Allow() {
		Debugf(format, args...)
	}
}

// Warningf logs a warning, subject to the rate limit.
func (l *RateLimited) Warningf(format string, args ...any) {
	if l.limiter.Allow() {
		Warningf(format, args...)
	}
}
