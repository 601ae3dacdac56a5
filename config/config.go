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

package config

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/elastic/apm-rum/log"
)

const (
	defaultSessionTimeout        = 15 * time.Minute
	defaultSessionMaxDuration    = 4 * time.Hour
	defaultDiscreteActionTimeout = 100 * time.Millisecond
	defaultContinuousActionMax   = 10 * time.Second
	defaultFirstPartyCacheSize   = 256
	defaultQueueSize             = 1024
	defaultTelemetryBurst        = 10
	defaultTelemetryInterval     = time.Second
)

// Config holds the configuration of the RUM scope tree.
type Config struct {
	ApplicationID string `config:"application_id"`

	Session SessionConfig `config:"session"`
	Action  ActionConfig  `config:"action"`

	// TrackBackgroundEvents controls whether events arriving while the
	// application is in the background, and no view is active, are
	// attributed to a synthetic background view instead of being dropped.
	TrackBackgroundEvents bool `config:"track_background_events"`

	// TrackFrustrations controls whether frustration signals are computed
	// for user actions.
	TrackFrustrations bool `config:"track_frustrations"`

	// FirstPartyHosts holds host names, or glob patterns of host names,
	// whose resources are annotated as first party.
	FirstPartyHosts     []string `config:"first_party_hosts"`
	FirstPartyCacheSize int      `config:"first_party_cache_size" validate:"min=1"`

	Queue     QueueConfig     `config:"queue"`
	Telemetry TelemetryConfig `config:"telemetry"`
}

// SessionConfig holds configuration related to sessions.
type SessionConfig struct {
	// SampleRate holds the fraction of sessions which are kept.
	SampleRate float64 `config:"sample_rate" validate:"min=0, max=1"`

	// Timeout holds the duration of user inactivity after which a
	// session expires.
	Timeout time.Duration `config:"timeout" validate:"min=1s"`

	// MaxDuration holds the maximum duration of a session.
	MaxDuration time.Duration `config:"max_duration" validate:"min=1s"`
}

// ActionConfig holds configuration related to user actions.
type ActionConfig struct {
	DiscreteTimeout       time.Duration `config:"discrete_timeout"`
	ContinuousMaxDuration time.Duration `config:"continuous_max_duration"`
}

// QueueConfig holds configuration for the command queue.
type QueueConfig struct {
	Size int `config:"size" validate:"min=1"`
}

// TelemetryConfig holds configuration for internal diagnostics reporting.
type TelemetryConfig struct {
	// Interval and Burst limit the rate at which identical diagnostics
	// are reported.
	Interval time.Duration `config:"interval"`
	Burst    int           `config:"burst" validate:"min=1"`
}

// NewConfig creates a Config struct based on the default config and the given input params.
func NewConfig(ucfg *common.Config) (*Config, error) {
	logger := logp.NewLogger(logs.Config)
	c := DefaultConfig()
	if ucfg != nil {
		if err := ucfg.Unpack(c); err != nil {
			return nil, errors.Wrap(err, "Error processing configuration")
		}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if c.ApplicationID == "" {
		logger.Warn("application_id is not set, events will not be attributed to an application")
	}
	if c.Session.SampleRate == 0 {
		logger.Warn("session.sample_rate is 0, no events will be recorded")
	}
	return c, nil
}

// Validate checks the consistency of settings which cannot be expressed
// with field validators.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Session.MaxDuration < c.Session.Timeout {
		result = multierror.Append(result, errors.Errorf(
			"session.max_duration (%s) must not be smaller than session.timeout (%s)",
			c.Session.MaxDuration, c.Session.Timeout,
		))
	}
	if c.Action.DiscreteTimeout <= 0 {
		result = multierror.Append(result, errors.New("action.discrete_timeout must be positive"))
	}
	if c.Action.ContinuousMaxDuration < c.Action.DiscreteTimeout {
		result = multierror.Append(result, errors.New(
			"action.continuous_max_duration must not be smaller than action.discrete_timeout",
		))
	}
	if c.Telemetry.Interval < 0 {
		result = multierror.Append(result, errors.New("telemetry.interval must not be negative"))
	}
	return result.ErrorOrNil()
}

// DefaultConfig returns a config with default settings.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			SampleRate:  1,
			Timeout:     defaultSessionTimeout,
			MaxDuration: defaultSessionMaxDuration,
		},
		Action: ActionConfig{
			DiscreteTimeout:       defaultDiscreteActionTimeout,
			ContinuousMaxDuration: defaultContinuousActionMax,
		},
		FirstPartyCacheSize: defaultFirstPartyCacheSize,
		Queue:               QueueConfig{Size: defaultQueueSize},
		Telemetry: TelemetryConfig{
			Interval: defaultTelemetryInterval,
			Burst:    defaultTelemetryBurst,
		},
	}
}
