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

	"github.com/elastic/beats/v7/libbeat/common"
)

// View holds values for view.* fields. The identity fields are set on every
// event; the remaining fields are only set on view update events.
type View struct {
	ID   string
	Name string
	URL  string

	// IsActive records whether the view was active, or still had resources
	// loading, when the update was built.
	IsActive *bool

	// DocumentVersion holds the version of the view update. Versions start
	// at 1 and only increase by one with each accepted update.
	DocumentVersion int

	// TimeSpent holds the time elapsed since the view started.
	TimeSpent time.Duration

	ActionCount      int
	ResourceCount    int
	ErrorCount       int
	LongTaskCount    int
	FrozenFrameCount int
	FrustrationCount int

	// CustomTimings holds custom timings, measured from the view start.
	CustomTimings map[string]time.Duration

	// PerformanceMetrics holds named performance metrics.
	PerformanceMetrics map[string]float64

	// Vitals holds vitals sampled while the view was active, if any.
	Vitals *Vitals
}

// Vitals holds aggregated vitals for a view.
type Vitals struct {
	CPUTicksCount     float64
	CPUTicksPerSecond *float64
	MemoryAverage     float64
	MemoryMax         float64
}

// refFields returns the fields identifying the view, for events other than
// view updates.
func (v *View) refFields() common.MapStr {
	var fields mapStr
	fields.maybeSetString("id", v.ID)
	fields.maybeSetString("name", v.Name)
	fields.maybeSetString("url", v.URL)
	return common.MapStr(fields)
}

func (v *View) fields() common.MapStr {
	fields := mapStr(v.refFields())
	fields.maybeSetBool("is_active", v.IsActive)
	fields.set("time_spent", v.TimeSpent.Nanoseconds())
	fields.set("action", common.MapStr{"count": v.ActionCount})
	fields.set("resource", common.MapStr{"count": v.ResourceCount})
	fields.set("error", common.MapStr{"count": v.ErrorCount})
	fields.set("long_task", common.MapStr{"count": v.LongTaskCount})
	fields.set("frozen_frame", common.MapStr{"count": v.FrozenFrameCount})
	if v.FrustrationCount > 0 {
		fields.set("frustration", common.MapStr{"count": v.FrustrationCount})
	}
	if len(v.CustomTimings) > 0 {
		timings := make(common.MapStr, len(v.CustomTimings))
		for name, d := range v.CustomTimings {
			timings[name] = d.Nanoseconds()
		}
		fields.set("custom_timings", timings)
	}
	if len(v.PerformanceMetrics) > 0 {
		metrics := make(common.MapStr, len(v.PerformanceMetrics))
		for name, value := range v.PerformanceMetrics {
			metrics[name] = value
		}
		fields.set("performance", metrics)
	}
	if v.Vitals != nil {
		var vitals mapStr
		vitals.set("cpu_ticks_count", v.Vitals.CPUTicksCount)
		vitals.maybeSetFloat64ptr("cpu_ticks_per_second", v.Vitals.CPUTicksPerSecond)
		vitals.set("memory_average", v.Vitals.MemoryAverage)
		vitals.set("memory_max", v.Vitals.MemoryMax)
		fields.set("vitals", common.MapStr(vitals))
	}
	fields.set("document_version", v.DocumentVersion)
	return common.MapStr(fields)
}
