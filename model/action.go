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

// FrustrationErrorTap is recorded on a tap action which caused an error.
const FrustrationErrorTap = "error_tap"

// Action holds values for action.* fields. This may be used in action
// events, as well as in resource, error, and long task events (i.e.
// action.id) to attribute them to the active action.
type Action struct {
	ID   string
	Type string
	Name string

	// LoadingTime holds the time between the action start and its end.
	LoadingTime *time.Duration

	ResourceCount int
	ErrorCount    int
	LongTaskCount int

	// Frustrations holds the frustration signals detected for the action.
	Frustrations []string
}

func (a *Action) fields() common.MapStr {
	var fields mapStr
	fields.maybeSetString("id", a.ID)
	if !fields.maybeSetString("type", a.Type) {
		// Only the identity of the action is recorded for
		// events attributed to the action.
		return common.MapStr(fields)
	}
	fields.maybeSetString("name", a.Name)
	if a.LoadingTime != nil {
		fields.set("loading_time", a.LoadingTime.Nanoseconds())
	}
	fields.set("resource", common.MapStr{"count": a.ResourceCount})
	fields.set("error", common.MapStr{"count": a.ErrorCount})
	fields.set("long_task", common.MapStr{"count": a.LongTaskCount})
	if len(a.Frustrations) > 0 {
		fields.set("frustration", common.MapStr{"type": a.Frustrations})
	}
	return common.MapStr(fields)
}
