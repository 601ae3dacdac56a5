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

// Resource holds values for resource.* fields.
type Resource struct {
	ID         string
	Type       string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Size       *int64

	// Timing breakdown, relative to the resource start. Only set when
	// detailed metrics were supplied.
	DNS       *Timing
	Connect   *Timing
	SSL       *Timing
	FirstByte *Timing
	Download  *Timing

	Provider *Provider
}

// Timing holds a phase of a resource load.
type Timing struct {
	// Start holds the offset of the phase from the resource start.
	Start    time.Duration
	Duration time.Duration
}

// Provider describes the party serving a resource.
type Provider struct {
	Domain string
	Type   string
}

// FirstPartyProvider is the Provider.Type of first party resources.
const FirstPartyProvider = "first_party"

func (r *Resource) fields() common.MapStr {
	var fields mapStr
	fields.maybeSetString("id", r.ID)
	fields.maybeSetString("type", r.Type)
	fields.maybeSetString("method", r.Method)
	fields.maybeSetString("url", r.URL)
	if r.StatusCode > 0 {
		fields.set("status_code", r.StatusCode)
	}
	fields.set("duration", r.Duration.Nanoseconds())
	fields.maybeSetInt64ptr("size", r.Size)
	fields.maybeSetMapStr("dns", r.DNS.fields())
	fields.maybeSetMapStr("connect", r.Connect.fields())
	fields.maybeSetMapStr("ssl", r.SSL.fields())
	fields.maybeSetMapStr("first_byte", r.FirstByte.fields())
	fields.maybeSetMapStr("download", r.Download.fields())
	fields.maybeSetMapStr("provider", r.Provider.fields())
	return common.MapStr(fields)
}

func (t *Timing) fields() common.MapStr {
	if t == nil {
		return nil
	}
	return common.MapStr{"start": t.Start.Nanoseconds(), "duration": t.Duration.Nanoseconds()}
}

func (p *Provider) fields() common.MapStr {
	if p == nil {
		return nil
	}
	var fields mapStr
	fields.maybeSetString("domain", p.Domain)
	fields.maybeSetString("type", p.Type)
	return common.MapStr(fields)
}
