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
	"github.com/elastic/beats/v7/libbeat/monitoring"

	"github.com/elastic/apm-rum/model"
)

var (
	monitoringRegistry = monitoring.Default.NewRegistry("rum.events")
	eventsWritten      = monitoring.NewInt(monitoringRegistry, "written")
	eventsDropped      = monitoring.NewInt(monitoringRegistry, "dropped")
)

// EventBuilder finalizes events before they are written. Build returns nil
// if the event must be dropped.
type EventBuilder interface {
	Build(event *model.RUMEvent) *model.RUMEvent
}

// MapperFunc modifies an event, or returns nil to drop it.
type MapperFunc func(event *model.RUMEvent) *model.RUMEvent

// Mappers is an EventBuilder applying one user supplied mapper per event
// kind. Events of a kind with a nil mapper are passed through unchanged.
type Mappers struct {
	View     MapperFunc
	Resource MapperFunc
	Action   MapperFunc
	Error    MapperFunc
	LongTask MapperFunc
}

// Build applies the mapper for the kind of event.
func (m Mappers) Build(event *model.RUMEvent) *model.RUMEvent {
	var mapper MapperFunc
	switch event.Processor {
	case model.ViewProcessor:
		mapper = m.View
	case model.ResourceProcessor:
		mapper = m.Resource
	case model.ActionProcessor:
		mapper = m.Action
	case model.ErrorProcessor:
		mapper = m.Error
	case model.LongTaskProcessor:
		mapper = m.LongTask
	}
	if mapper == nil {
		return event
	}
	return mapper(event)
}

// write builds event and hands it to w. It returns false if the event was
// dropped by the builder.
func (d *Dependencies) write(event *model.RUMEvent, w Writer) bool {
	built := d.Builder.Build(event)
	if built == nil {
		eventsDropped.Inc()
		d.Logger.Debugw("event dropped by mapper", "event.kind", event.Processor.Event)
		return false
	}
	w.Write(built)
	eventsWritten.Inc()
	return true
}
