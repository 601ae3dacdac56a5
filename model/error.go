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

const (
	// ErrorCategoryException is the category of errors raised by code.
	ErrorCategoryException = "exception"

	// ErrorCategoryNetwork is the category of errors caused by the network
	// layer, such as a connection failure.
	ErrorCategoryNetwork = "network"
)

type Error struct {
	ID       string
	Message  string
	Type     string
	Source   string
	Stack    string
	Category string
	IsCrash  bool

	// Resource is set for errors completing a resource load.
	Resource *ErrorResource
}

// ErrorResource holds the resource which failed, for resource errors.
type ErrorResource struct {
	Method     string
	URL        string
	StatusCode int
	Provider   *Provider
}

func (e *Error) fields() common.MapStr {
	var fields mapStr
	fields.maybeSetString("id", e.ID)
	fields.maybeSetString("message", e.Message)
	fields.maybeSetString("type", e.Type)
	fields.maybeSetString("source", e.Source)
	fields.maybeSetString("stack", e.Stack)
	fields.maybeSetString("category", e.Category)
	if e.IsCrash {
		fields.set("is_crash", true)
	}
	if e.Resource != nil {
		var resource mapStr
		resource.maybeSetString("method", e.Resource.Method)
		resource.maybeSetString("url", e.Resource.URL)
		if e.Resource.StatusCode > 0 {
			resource.set("status_code", e.Resource.StatusCode)
		}
		resource.maybeSetMapStr("provider", e.Resource.Provider.fields())
		fields.maybeSetMapStr("resource", common.MapStr(resource))
	}
	return common.MapStr(fields)
}

// LongTask holds values for long_task.* fields.
type LongTask struct {
	ID            string
	Duration      time.Duration
	IsFrozenFrame bool
}

func (t *LongTask) fields() common.MapStr {
	var fields mapStr
	fields.maybeSetString("id", t.ID)
	fields.set("duration", t.Duration.Nanoseconds())
	if t.IsFrozenFrame {
		fields.set("is_frozen_frame", true)
	}
	return common.MapStr(fields)
}
