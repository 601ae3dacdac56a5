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

package publish

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.elastic.co/apm"
	"go.uber.org/atomic"

	"github.com/elastic/beats/v7/libbeat/logp"
	"github.com/elastic/beats/v7/libbeat/monitoring"

	"github.com/elastic/apm-rum/config"
	logs "github.com/elastic/apm-rum/log"
	"github.com/elastic/apm-rum/rum"
	"github.com/elastic/apm-rum/rum/command"
)

var (
	monitoringRegistry = monitoring.Default.NewRegistry("rum.queue")
	commandsAccepted   = monitoring.NewInt(monitoringRegistry, "accepted")
	commandsRejected   = monitoring.NewInt(monitoringRegistry, "rejected")
	commandsProcessed  = monitoring.NewInt(monitoringRegistry, "processed")
)

var (
	ErrFull              = errors.New("queue is full")
	ErrInvalidBufferSize = errors.New("queue size must be > 0")
	ErrChannelClosed     = errors.New("can't send command, processor is being stopped")
)

// sendTimeout bounds the time Send waits for room in a full queue.
const sendTimeout = time.Second

// Processor funnels commands from concurrent producers onto a single
// goroutine, which processes them one at a time through the scope tree.
//
// The scope tree is only ever accessed from that goroutine, so scopes need
// no locking: the whole tree mutation for one command completes before the
// next command is admitted. Functions passed to Do run on the same
// goroutine, in order with the commands.
type Processor struct {
	pending chan pendingCommand
	scope   rum.Scope
	writer  rum.Writer
	tracer  *apm.Tracer
	logger  *logp.Logger

	m       sync.RWMutex
	stopped bool
	queued  *atomic.Int64
	done    chan struct{}
}

type pendingCommand struct {
	cmd command.Command
	fn  func()
}

// NewProcessor returns a new Processor processing commands through scope,
// usually a *rum.Application, and writing finalized events to w. If tracer
// is non-nil, the processing of each command is traced.
//
// Stop must be called to stop the processing goroutine.
func NewProcessor(scope rum.Scope, w rum.Writer, tracer *apm.Tracer, cfg config.QueueConfig) (*Processor, error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidBufferSize
	}
	p := &Processor{
		// One command will be actively processed by the
		// worker, while the others are buffered in the queue.
		pending: make(chan pendingCommand, cfg.Size),
		scope:   scope,
		writer:  w,
		tracer:  tracer,
		logger:  logp.NewLogger(logs.Queue),
		queued:  atomic.NewInt64(0),
		done:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Send enqueues cmd. If the queue stays full for too long, ErrFull is
// returned. Calling Send after Stop returns ErrChannelClosed.
func (p *Processor) Send(ctx context.Context, cmd command.Command) error {
	if err := p.enqueue(ctx, pendingCommand{cmd: cmd}); err != nil {
		commandsRejected.Inc()
		return err
	}
	commandsAccepted.Inc()
	return nil
}

// Do runs fn on the processing goroutine, after all previously sent
// commands were processed, and waits for it to return. Do may be used to
// read the state of the scope tree safely.
func (p *Processor) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := p.enqueue(ctx, pendingCommand{fn: func() {
		defer close(done)
		fn()
	}}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Flush waits until all previously sent commands were processed.
func (p *Processor) Flush(ctx context.Context) error {
	return p.Do(ctx, func() {})
}

// Pending returns the number of commands waiting to be processed.
func (p *Processor) Pending() int64 {
	return p.queued.Load()
}

func (p *Processor) enqueue(ctx context.Context, req pendingCommand) error {
	p.m.RLock()
	defer p.m.RUnlock()
	if p.stopped {
		return ErrChannelClosed
	}
	p.queued.Inc()
	select {
	case <-ctx.Done():
		p.queued.Dec()
		return ctx.Err()
	case p.pending <- req:
		return nil
	case <-time.After(sendTimeout):
		p.queued.Dec()
		return ErrFull
	}
}

// Stop stops accepting commands, and waits for the queued commands to be
// processed or for ctx to be done.
func (p *Processor) Stop(ctx context.Context) error {
	p.m.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.pending)
	}
	p.m.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return nil
	}
}

func (p *Processor) run() {
	defer close(p.done)
	for req := range p.pending {
		p.queued.Dec()
		if req.fn != nil {
			req.fn()
			continue
		}
		p.process(req.cmd)
	}
}

func (p *Processor) process(cmd command.Command) {
	if p.tracer != nil {
		tx := p.tracer.StartTransaction("ProcessCommand", "rum")
		tx.Context.SetLabel("command", command.Name(cmd))
		defer tx.End()
	}
	p.scope.Process(cmd, rum.Context{}, p.writer)
	commandsProcessed.Inc()
}
