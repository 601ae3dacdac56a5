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

// rum-replay replays recorded RUM command scripts through the scope tree,
// printing the resulting events as newline-delimited JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.elastic.co/apm"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/elastic/apm-rum/config"
	"github.com/elastic/apm-rum/firstparty"
	logs "github.com/elastic/apm-rum/log"
	"github.com/elastic/apm-rum/publish"
	"github.com/elastic/apm-rum/rum"
	"github.com/elastic/apm-rum/rum/command"
	"github.com/elastic/apm-rum/sampling"
	"github.com/elastic/apm-rum/vitals"
)

type replayOptions struct {
	configFile string
	settings   []string
	seed       int64
	vitals     bool
	trace      bool
	debug      bool
	start      string
	summary    bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "rum-replay script.yml...",
		Short: "Replay RUM command scripts",
		Long: `Replay RUM command scripts through the session, view, action and resource scopes.
Each script is sent by its own producer, so commands of different scripts
interleave. Resulting events are printed to stdout as newline-delimited JSON.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(opts.debug); err != nil {
				return err
			}
			return replay(cmd.Context(), opts, args, stdout, stderr)
		},
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringArrayVarP(&opts.settings, "set", "E", nil, "configuration overwrite, as key=value")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "session sampling seed (default: current time)")
	cmd.Flags().BoolVar(&opts.vitals, "vitals", false, "record vitals of the replay process on views")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "trace the processing of commands")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	cmd.Flags().StringVar(&opts.start, "start", "", "RFC 3339 time the scripts start at (default: now)")
	cmd.Flags().BoolVar(&opts.summary, "summary", true, "print a summary to stderr")
	cmd.Flags().SortFlags = false
	return cmd
}

func setupLogging(debug bool) error {
	level := logp.InfoLevel
	if debug {
		level = logp.DebugLevel
	}
	return logp.Configure(logp.Config{
		Beat:      "rum-replay",
		Level:     level,
		ToStderr:  true,
		Selectors: []string{"*"},
	})
}

// loadConfig reads the configuration file, if any, and applies the
// overwrites on top of it.
func loadConfig(file string, settings []string) (*config.Config, error) {
	rawCfg := common.NewConfig()
	if file != "" {
		var err error
		if rawCfg, err = common.LoadFile(file); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", file)
		}
	}
	for _, setting := range settings {
		key, value, ok := strings.Cut(setting, "=")
		if !ok {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", setting)
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return nil, errors.Wrapf(err, "invalid value for %s", key)
		}
		overwrite, err := common.NewConfigFrom(map[string]interface{}{key: v})
		if err != nil {
			return nil, err
		}
		if err := rawCfg.Merge(overwrite); err != nil {
			return nil, err
		}
	}
	return config.NewConfig(rawCfg)
}

func loadScripts(paths []string, base time.Time) ([]*scriptCommands, error) {
	out := make([]*scriptCommands, len(paths))
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s, err := decodeScript(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		commands, err := s.commands(base)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		name := s.Name
		if name == "" {
			name = path
		}
		out[i] = &scriptCommands{name: name, commands: commands}
	}
	return out, nil
}

func replay(ctx context.Context, opts replayOptions, paths []string, stdout, stderr io.Writer) error {
	logger := logp.NewLogger(logs.Replay)
	cfg, err := loadConfig(opts.configFile, opts.settings)
	if err != nil {
		return err
	}

	base := time.Now()
	if opts.start != "" {
		if base, err = time.Parse(time.RFC3339, opts.start); err != nil {
			return errors.Wrap(err, "invalid start time")
		}
	}
	scripts, err := loadScripts(paths, base)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	matcher, err := firstparty.NewMatcher(cfg.FirstPartyHosts, cfg.FirstPartyCacheSize)
	if err != nil {
		return err
	}
	deps := rum.Dependencies{
		Config:     cfg,
		Sampler:    sampling.NewRateSampler(cfg.Session.SampleRate, seed),
		FirstParty: matcher,
		Telemetry:  rum.NewLogTelemetry(cfg.Telemetry, nil),
		SessionListener: func(id string, discarded bool) {
			logger.Infow("session started", "session.id", id, "session.discarded", discarded)
		},
	}
	if opts.vitals {
		reader, err := vitals.NewProcessReader()
		if err != nil {
			return err
		}
		deps.Vitals = reader
	}
	scope := &lifecycleScope{}
	deps.AppState = scope
	scope.app = rum.NewApplication(deps)

	var tracer *apm.Tracer
	if opts.trace {
		if tracer, err = apm.NewTracer("rum-replay", ""); err != nil {
			return err
		}
		defer tracer.Close()
	}

	writer := newNDJSONWriter(stdout)
	processor, err := publish.NewProcessor(scope, writer, tracer, cfg.Queue)
	if err != nil {
		return err
	}

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range scripts {
		s := s
		g.Go(func() error {
			for _, cmd := range s.commands {
				if err := processor.Send(gctx, cmd); err != nil {
					return errors.Wrapf(err, "%s: failed to send command", s.name)
				}
			}
			logger.Debugw("script sent", "script", s.name, "commands", len(s.commands))
			return nil
		})
	}
	sendErr := g.Wait()
	if err := processor.Stop(ctx); err != nil {
		return err
	}
	if sendErr != nil {
		return sendErr
	}

	if opts.summary {
		var total int
		for _, s := range scripts {
			total += len(s.commands)
		}
		printSummary(stderr, total, len(scripts), time.Since(started), writer)
	}
	return nil
}

type scriptCommands struct {
	name     string
	commands []command.Command
}

func printSummary(w io.Writer, commands, scripts int, took time.Duration, writer *ndjsonWriter) {
	counts := writer.Counts()
	kinds := make([]string, 0, len(counts))
	var events int64
	for kind, n := range counts {
		kinds = append(kinds, kind)
		events += n
	}
	sort.Strings(kinds)

	fmt.Fprintf(w, "replayed %s commands from %s scripts in %s\n",
		humanize.Comma(int64(commands)), humanize.Comma(int64(scripts)), took.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "wrote %s events (%s)\n", humanize.Comma(events), humanize.Bytes(writer.Bytes()))
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-10s %s\n", kind, humanize.Comma(counts[kind]))
	}
}
