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

// Package command defines the instrumentation commands processed by the
// RUM scope tree.
//
// Command is a closed union: every concrete command embeds Base, which
// carries the unexported marker method, so only this package can add new
// kinds. Scopes match on the concrete type with a type switch.
package command

import (
	"time"

	"github.com/elastic/beats/v7/libbeat/common"
	"go.elastic.co/apm"
)

// Command is an instrumentation event delivered to the scope tree.
type Command interface {
	// Time returns the device timestamp of the command.
	Time() time.Time

	// Attrs returns the user attributes attached to the command.
	Attrs() common.MapStr

	isCommand()
}

// Base holds the fields shared by every command.
type Base struct {
	Timestamp  time.Time
	Attributes common.MapStr
}

// Time returns b.Timestamp.
func (b Base) Time() time.Time { return b.Timestamp }

// Attrs returns b.Attributes.
func (b Base) Attrs() common.MapStr { return b.Attributes }

func (Base) isCommand() {}

// At returns a Base for the given time, with no attributes.
func At(t time.Time) Base {
	return Base{Timestamp: t}
}

// SDKInit is sent once, when the SDK is initialized.
type SDKInit struct {
	Base
}

// ApplicationStart is sent when the application has finished launching.
type ApplicationStart struct {
	Base
}

// AppLifecycle reports a transition of the application state.
type AppLifecycle struct {
	Base
	State AppState
}

// KeepAlive advances time without carrying any user activity. It may be
// used to flush time-based transitions when no other command arrives.
type KeepAlive struct {
	Base
}

// StopSession stops the current session.
type StopSession struct {
	Base
}

// StartView starts the view with the given identity.
type StartView struct {
	Base
	Identity string
	Path     string
	Name     string
}

// StopView stops the view with the given identity.
type StopView struct {
	Base
	Identity string
}

// AddViewTiming records a custom timing on the active view, measured from
// the view start until the command time.
type AddViewTiming struct {
	Base
	Name string
}

// AddFeatureFlag records a feature flag evaluation on the active view.
type AddFeatureFlag struct {
	Base
	Name  string
	Value interface{}
}

// AddPerformanceMetric records a named performance metric on the active view.
type AddPerformanceMetric struct {
	Base
	Name  string
	Value float64
}

// StartResource starts loading a resource identified by Key.
type StartResource struct {
	Base
	Key    string
	URL    string
	Method string
	Kind   ResourceKind

	// SpanContext optionally holds the trace context injected into the
	// outgoing request, for correlating the resource with backend traces.
	SpanContext *apm.TraceContext
}

// AddResourceMetrics supplies detailed timing metrics for a resource.
type AddResourceMetrics struct {
	Base
	Key     string
	Metrics ResourceMetrics
}

// StopResource completes a resource successfully.
type StopResource struct {
	Base
	Key        string
	Kind       ResourceKind
	StatusCode int
	Size       *int64
}

// StopResourceWithError completes a resource with an error.
type StopResourceWithError struct {
	Base
	Key            string
	Message        string
	Type           string
	Source         ErrorSource
	StatusCode     int
	IsNetworkError bool
}

// StartAction starts a continuous user action, such as a scroll.
type StartAction struct {
	Base
	Type ActionType
	Name string
}

// StopAction stops the active continuous user action.
type StopAction struct {
	Base
	Type ActionType

	// Name, if non-empty, replaces the name given when the action started.
	Name string
}

// AddAction records a discrete user action, such as a tap.
type AddAction struct {
	Base
	Type ActionType
	Name string
}

// AddError records an error on the active view.
type AddError struct {
	Base
	Message string
	Type    string
	Source  ErrorSource
	Stack   string
	IsCrash bool
}

// AddLongTask records a long task (a stalled main thread) which ended at
// the command time.
type AddLongTask struct {
	Base
	Duration time.Duration
}

// ResourceMetrics holds detailed timings of a resource load.
type ResourceMetrics struct {
	Fetch     Interval
	DNS       *Interval
	Connect   *Interval
	SSL       *Interval
	FirstByte *Interval
	Download  *Interval

	// ResponseSize holds the size of the response body, if known.
	ResponseSize *int64
}

// Interval is a closed time interval.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
