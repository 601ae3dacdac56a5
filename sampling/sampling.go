// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package sampling

import (
	"math/rand"
	"sync"

	"github.com/elastic/beats/v7/libbeat/monitoring"
)

var (
	monitoringRegistry = monitoring.Default.NewRegistry("rum.sampling")
	sessionsSampled    = monitoring.NewInt(monitoringRegistry, "sessions_sampled")
	sessionsDropped    = monitoring.NewInt(monitoringRegistry, "sessions_dropped")
)

// RateSampler keeps a fraction of sessions, chosen at random.
type RateSampler struct {
	rate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRateSampler returns a RateSampler keeping the given fraction of
// sessions. Rates are clamped to [0, 1].
func NewRateSampler(rate float64, seed int64) *RateSampler {
	if rate < 0 {
		rate = 0
	} else if rate > 1 {
		rate = 1
	}
	return &RateSampler{rate: rate, rnd: rand.New(rand.NewSource(seed))}
}

// Sample returns true if the session should be kept.
func (s *RateSampler) Sample() bool {
	var keep bool
	switch s.rate {
	case 0:
	case 1:
		keep = true
	default:
		s.mu.Lock()
		keep = s.rnd.Float64() < s.rate
		s.mu.Unlock()
	}
	if keep {
		sessionsSampled.Inc()
	} else {
		sessionsDropped.Inc()
	}
	return keep
}

// Rate returns the sample rate.
func (s *RateSampler) Rate() float64 {
	return s.rate
}
