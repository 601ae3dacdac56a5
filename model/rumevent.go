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

package model

import (
	"time"

	"github.com/elastic/beats/v7/libbeat/beat"
	"github.com/elastic/beats/v7/libbeat/common"
)

// Processor identifies the kind of a RUM event.
type Processor struct {
	Name  string
	Event string
}

var (
	// ViewProcessor is the Processor value that should be assigned to view update events.
	ViewProcessor = Processor{Name: "rum", Event: "view"}

	// ResourceProcessor is the Processor value that should be assigned to resource events.
	ResourceProcessor = Processor{Name: "rum", Event: "resource"}

	// ActionProcessor is the Processor value that should be assigned to action events.
	ActionProcessor = Processor{Name: "rum", Event: "action"}

	// ErrorProcessor is the Processor value that should be assigned to error events.
	ErrorProcessor = Processor{Name: "rum", Event: "error"}

	// LongTaskProcessor is the Processor value that should be assigned to long task events.
	LongTaskProcessor = Processor{Name: "rum", Event: "long_task"}
)

// RUMEvent holds the details of a finalized RUM event.
//
// Processor determines the kind of the event. View and Session are set for
// every event; exactly one of the kind-specific fields (Resource, Error,
// LongTask, or a fully populated Action) is set, except for view events
// where View carries the payload. Action may also be set with only its ID,
// to attribute a resource, error, or long task to the active action.
type RUMEvent struct {
	Processor Processor

	// Timestamp holds the event time, already corrected by the server time offset.
	Timestamp time.Time

	Application   Application
	Session       Session
	View          View
	Action        *Action
	Resource      *Resource
	Error         *Error
	LongTask      *LongTask
	Trace         *Trace
	Configuration Configuration

	// FeatureFlags holds the feature flag evaluations of the view at the
	// time the event was built.
	FeatureFlags common.MapStr

	// Context holds user attributes.
	Context common.MapStr
}

// Application holds the identity of the monitored application.
type Application struct {
	ID string
}

// Configuration holds SDK configuration values recorded on every event.
type Configuration struct {
	SessionSampleRate float64
}

// Trace holds identifiers correlating a resource with a backend trace.
type Trace struct {
	TraceID    string
	SpanID     string
	SampleRate *float64
}

// BeatEvent returns a beat.Event for e.
func (e *RUMEvent) BeatEvent() beat.Event {
	return beat.Event{
		Timestamp: e.Timestamp,
		Fields:    e.fields(),
	}
}

func (e *RUMEvent) fields() common.MapStr {
	var fields mapStr
	fields.set("processor", common.MapStr{"name": e.Processor.Name, "event": e.Processor.Event})
	fields.set("type", e.Processor.Event)

	var application mapStr
	application.maybeSetString("id", e.Application.ID)
	fields.maybeSetMapStr("application", common.MapStr(application))
	fields.maybeSetMapStr("session", e.Session.fields())

	if e.Processor == ViewProcessor {
		fields.maybeSetMapStr("view", e.View.fields())
	} else {
		fields.maybeSetMapStr("view", e.View.refFields())
	}
	if e.Action != nil {
		fields.maybeSetMapStr("action", e.Action.fields())
	}
	if e.Resource != nil {
		fields.maybeSetMapStr("resource", e.Resource.fields())
	}
	if e.Error != nil {
		fields.maybeSetMapStr("error", e.Error.fields())
	}
	if e.LongTask != nil {
		fields.maybeSetMapStr("long_task", e.LongTask.fields())
	}
	if e.Trace != nil {
		var trace mapStr
		trace.maybeSetString("id", e.Trace.TraceID)
		trace.maybeSetString("span_id", e.Trace.SpanID)
		trace.maybeSetFloat64ptr("sample_rate", e.Trace.SampleRate)
		fields.maybeSetMapStr("trace", common.MapStr(trace))
	}
	fields.maybeSetMapStr("feature_flags", e.FeatureFlags)
	fields.maybeSetMapStr("context", e.Context)
	fields.set("configuration", common.MapStr{"session_sample_rate": e.Configuration.SessionSampleRate})
	return common.MapStr(fields)
}
