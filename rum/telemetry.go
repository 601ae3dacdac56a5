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

package rum

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/elastic/apm-rum/config"
	logs "github.com/elastic/apm-rum/log"
)

// Telemetry receives diagnostics about conditions which should never happen.
// The scope tree always recovers from these by taking a safe default path.
type Telemetry interface {
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// LogTelemetry is a Telemetry which logs diagnostics, limiting the rate at
// which each distinct message is reported.
type LogTelemetry struct {
	logger   *logp.Logger
	interval time.Duration
	burst    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLogTelemetry returns a new LogTelemetry. If logger is nil, a logger
// with the telemetry selector is used.
func NewLogTelemetry(cfg config.TelemetryConfig, logger *logp.Logger) *LogTelemetry {
	if logger == nil {
		logger = logp.NewLogger(logs.Telemetry)
	}
	return &LogTelemetry{
		logger:   logger,
		interval: cfg.Interval,
		burst:    cfg.Burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Error logs msg at error level, unless it was reported too often.
func (t *LogTelemetry) Error(msg string, keysAndValues ...interface{}) {
	if t.allow(msg) {
		t.logger.Errorw(msg, keysAndValues...)
	}
}

// Debug logs msg at debug level, unless it was reported too often.
func (t *LogTelemetry) Debug(msg string, keysAndValues ...interface{}) {
	if t.allow(msg) {
		t.logger.Debugw(msg, keysAndValues...)
	}
}

func (t *LogTelemetry) allow(msg string) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.limiters[msg]
	if !ok {
		burst := t.burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(t.interval), burst)
		t.limiters[msg] = limiter
	}
	return limiter.Allow()
}
