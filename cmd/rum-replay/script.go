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

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.elastic.co/apm"
	"gopkg.in/yaml.v3"

	"github.com/elastic/beats/v7/libbeat/common"

	"github.com/elastic/apm-rum/rum/command"
)

// script is a recorded command stream. Command timestamps are offsets
// from the time the replay starts.
type script struct {
	Name     string          `yaml:"name"`
	Commands []scriptCommand `yaml:"commands"`
}

type scriptCommand struct {
	At         time.Duration          `yaml:"at"`
	Type       string                 `yaml:"type"`
	Attributes map[string]interface{} `yaml:"attributes"`

	// Views.
	Identity string `yaml:"identity"`
	Path     string `yaml:"path"`
	Name     string `yaml:"name"`

	// Lifecycle.
	State string `yaml:"state"`

	// Resources.
	Key          string         `yaml:"key"`
	URL          string         `yaml:"url"`
	Method       string         `yaml:"method"`
	Kind         string         `yaml:"kind"`
	StatusCode   int            `yaml:"status_code"`
	Size         *int64         `yaml:"size"`
	NetworkError bool           `yaml:"network_error"`
	SpanContext  *spanContext   `yaml:"span_context"`
	Metrics      *scriptMetrics `yaml:"metrics"`

	// Actions, errors and view metrics.
	ActionType string        `yaml:"action"`
	Message    string        `yaml:"message"`
	ErrorType  string        `yaml:"error_type"`
	Source     string        `yaml:"source"`
	Stack      string        `yaml:"stack"`
	Crash      bool          `yaml:"crash"`
	Value      interface{}   `yaml:"value"`
	Duration   time.Duration `yaml:"duration"`
}

type spanContext struct {
	TraceID string `yaml:"trace_id"`
	SpanID  string `yaml:"span_id"`
}

type scriptInterval struct {
	Start time.Duration `yaml:"start"`
	End   time.Duration `yaml:"end"`
}

type scriptMetrics struct {
	Fetch        scriptInterval  `yaml:"fetch"`
	DNS          *scriptInterval `yaml:"dns"`
	Connect      *scriptInterval `yaml:"connect"`
	SSL          *scriptInterval `yaml:"ssl"`
	FirstByte    *scriptInterval `yaml:"first_byte"`
	Download     *scriptInterval `yaml:"download"`
	ResponseSize *int64          `yaml:"response_size"`
}

func decodeScript(r io.Reader) (*script, error) {
	var s script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "failed to decode script")
	}
	return &s, nil
}

// commands converts the script to commands, timed relative to base.
func (s *script) commands(base time.Time) ([]command.Command, error) {
	out := make([]command.Command, 0, len(s.Commands))
	for i, c := range s.Commands {
		cmd, err := c.command(base)
		if err != nil {
			return nil, errors.Wrapf(err, "command %d", i)
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (c *scriptCommand) command(base time.Time) (command.Command, error) {
	b := command.Base{Timestamp: base.Add(c.At)}
	if len(c.Attributes) > 0 {
		b.Attributes = common.MapStr(c.Attributes)
	}
	switch c.Type {
	case "sdk_init":
		return command.SDKInit{Base: b}, nil
	case "application_start":
		return command.ApplicationStart{Base: b}, nil
	case "app_lifecycle":
		state, err := parseAppState(c.State)
		if err != nil {
			return nil, err
		}
		return command.AppLifecycle{Base: b, State: state}, nil
	case "keep_alive":
		return command.KeepAlive{Base: b}, nil
	case "stop_session":
		return command.StopSession{Base: b}, nil
	case "start_view":
		path := c.Path
		if path == "" {
			path = c.Identity
		}
		return command.StartView{Base: b, Identity: c.Identity, Path: path, Name: c.Name}, nil
	case "stop_view":
		return command.StopView{Base: b, Identity: c.Identity}, nil
	case "add_view_timing":
		return command.AddViewTiming{Base: b, Name: c.Name}, nil
	case "add_feature_flag":
		return command.AddFeatureFlag{Base: b, Name: c.Name, Value: c.Value}, nil
	case "add_performance_metric":
		value, ok := toFloat(c.Value)
		if !ok {
			return nil, fmt.Errorf("performance metric %q has a non-numeric value", c.Name)
		}
		return command.AddPerformanceMetric{Base: b, Name: c.Name, Value: value}, nil
	case "start_resource":
		cmd := command.StartResource{
			Base: b, Key: c.Key, URL: c.URL, Method: c.Method,
			Kind: command.ResourceKind(c.Kind),
		}
		if c.SpanContext != nil {
			traceContext, err := c.SpanContext.traceContext()
			if err != nil {
				return nil, err
			}
			cmd.SpanContext = traceContext
		}
		return cmd, nil
	case "add_resource_metrics":
		if c.Metrics == nil {
			return nil, errors.New("add_resource_metrics requires metrics")
		}
		return command.AddResourceMetrics{Base: b, Key: c.Key, Metrics: c.Metrics.resourceMetrics(base)}, nil
	case "stop_resource":
		return command.StopResource{
			Base: b, Key: c.Key, Kind: command.ResourceKind(c.Kind),
			StatusCode: c.StatusCode, Size: c.Size,
		}, nil
	case "stop_resource_with_error":
		return command.StopResourceWithError{
			Base: b, Key: c.Key, Message: c.Message, Type: c.ErrorType,
			Source: command.ErrorSource(c.Source), StatusCode: c.StatusCode,
			IsNetworkError: c.NetworkError,
		}, nil
	case "start_action":
		return command.StartAction{Base: b, Type: command.ActionType(c.ActionType), Name: c.Name}, nil
	case "stop_action":
		return command.StopAction{Base: b, Type: command.ActionType(c.ActionType), Name: c.Name}, nil
	case "add_action":
		return command.AddAction{Base: b, Type: command.ActionType(c.ActionType), Name: c.Name}, nil
	case "add_error":
		return command.AddError{
			Base: b, Message: c.Message, Type: c.ErrorType,
			Source: command.ErrorSource(c.Source), Stack: c.Stack, IsCrash: c.Crash,
		}, nil
	case "add_long_task":
		return command.AddLongTask{Base: b, Duration: c.Duration}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", c.Type)
}

func parseAppState(s string) (command.AppState, error) {
	switch s {
	case "active":
		return command.AppStateActive, nil
	case "inactive":
		return command.AppStateInactive, nil
	case "background":
		return command.AppStateBackground, nil
	}
	return 0, fmt.Errorf("unknown application state %q", s)
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (s *spanContext) traceContext() (*apm.TraceContext, error) {
	var out apm.TraceContext
	if err := decodeHex(out.Trace[:], s.TraceID); err != nil {
		return nil, errors.Wrap(err, "invalid trace_id")
	}
	if err := decodeHex(out.Span[:], s.SpanID); err != nil {
		return nil, errors.Wrap(err, "invalid span_id")
	}
	return &out, nil
}

func decodeHex(out []byte, s string) error {
	if hex.DecodedLen(len(s)) != len(out) {
		return fmt.Errorf("expected %d hex characters, got %d", hex.EncodedLen(len(out)), len(s))
	}
	_, err := hex.Decode(out, []byte(s))
	return err
}

func (i *scriptInterval) interval(base time.Time) *command.Interval {
	if i == nil {
		return nil
	}
	return &command.Interval{Start: base.Add(i.Start), End: base.Add(i.End)}
}

func (m *scriptMetrics) resourceMetrics(base time.Time) command.ResourceMetrics {
	return command.ResourceMetrics{
		Fetch:        *m.Fetch.interval(base),
		DNS:          m.DNS.interval(base),
		Connect:      m.Connect.interval(base),
		SSL:          m.SSL.interval(base),
		FirstByte:    m.FirstByte.interval(base),
		Download:     m.Download.interval(base),
		ResponseSize: m.ResponseSize,
	}
}
