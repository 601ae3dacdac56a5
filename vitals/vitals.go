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

// Package vitals provides readers of process vitals, such as CPU usage and
// memory footprint, which are aggregated per view.
package vitals

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// clockTicksPerSecond converts CPU time to clock ticks.
const clockTicksPerSecond = 100

// Snapshot holds the vitals of the process at one point in time.
type Snapshot struct {
	// CPUTicks holds the CPU time consumed by the process since it
	// started, in clock ticks.
	CPUTicks float64

	// MemoryBytes holds the resident memory of the process.
	MemoryBytes float64
}

// Reader reads the current vitals.
type Reader interface {
	Read() (Snapshot, error)
}

// ReaderFunc is a function type that implements Reader.
type ReaderFunc func() (Snapshot, error)

// Read calls f().
func (f ReaderFunc) Read() (Snapshot, error) {
	return f()
}

// ProcessReader reads the vitals of a process from the operating system.
type ProcessReader struct {
	mu   sync.Mutex
	proc *process.Process
}

// NewProcessReader returns a ProcessReader for the current process.
func NewProcessReader() (*ProcessReader, error) {
	return NewProcessReaderForPID(int32(os.Getpid()))
}

// NewProcessReaderForPID returns a ProcessReader for the process with the
// given pid.
func NewProcessReaderForPID(pid int32) (*ProcessReader, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open process %d", pid)
	}
	return &ProcessReader{proc: proc}, nil
}

// Read returns the current vitals of the process.
func (r *ProcessReader) Read() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	times, err := r.proc.Times()
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to read CPU times")
	}
	mem, err := r.proc.MemoryInfo()
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to read memory info")
	}
	return Snapshot{
		CPUTicks:    (times.User + times.System) * clockTicksPerSecond,
		MemoryBytes: float64(mem.RSS),
	}, nil
}
