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

// Package firstparty decides whether resources are served by first party
// hosts.
package firstparty

import (
	"net/url"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/elastic/apm-rum/log"
)

// Matcher matches URLs against a list of first party hosts.
//
// A host pattern matches the host itself and all of its subdomains; a
// pattern containing '*' is matched as a glob against the host name.
// Decisions are cached per host.
type Matcher struct {
	hosts    []string
	patterns []string
	logger   *logp.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

// NewMatcher returns a Matcher for the given host patterns, caching up to
// cacheSize decisions.
func NewMatcher(hosts []string, cacheSize int) (*Matcher, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create first party host cache")
	}
	m := &Matcher{
		cache:  cache,
		logger: logp.NewLogger(logs.FirstParty),
	}
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		switch {
		case host == "":
			continue
		case strings.Contains(host, "*"):
			m.patterns = append(m.patterns, host)
		default:
			m.hosts = append(m.hosts, strings.TrimSuffix(host, "."))
		}
	}
	return m, nil
}

// IsFirstParty reports whether the host of rawurl is a first party host.
func (m *Matcher) IsFirstParty(rawurl string) bool {
	if len(m.hosts) == 0 && len(m.patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		m.logger.Debugw("failed to parse resource URL", "url.original", rawurl, "error", err)
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(host); ok {
		return v.(bool)
	}
	match := m.match(host)
	m.cache.Add(host, match)
	return match
}

func (m *Matcher) match(host string) bool {
	for _, h := range m.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	for _, pattern := range m.patterns {
		if glob.Glob(pattern, host) {
			return true
		}
	}
	return false
}
