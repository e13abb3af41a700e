/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package coordinator schedules analysis units onto isolated minion
// processes: it spawns one minion per unit session, ships the unit's
// mutants over the control socket, reconciles streamed reports against the
// unit's bookkeeping, and recovers from abnormal minion exits by re-running
// whatever never started.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/hako/durafmt"

	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/discovery"
	"github.com/go-gremlins/gremlins-research/internal/engine/workerpool"
	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

// Unit is one scheduling unit: a package-scoped group of mutants executed
// sequentially inside a single minion at a time.
type Unit struct {
	Name       string
	Packages   []string
	Candidates []protocol.MutationCandidate
}

// Result is the coordinator's final verdict on one mutant.
type Result struct {
	CandidateID string
	Status      mutator.Status
	Report      *protocol.Report
}

// Interceptor observes each mutant's report on the coordinator thread, in
// arrival order. Artifact emission hangs off this seam.
type Interceptor func(unit Unit, res Result)

// Options configures a coordinator run.
type Options struct {
	ResearchMode       bool
	FullMutationMatrix bool
	ReportDir          string
	BuildTags          string
	TestCPU            int
	TimeoutFactor      float64
	TimeoutConstant    int64
	MemoryLimitMB      int
	Verbosity          string

	// TestClassCount drives the research-mode batch-size formula.
	TestClassCount int

	// Baseline is serialised into every minion's arguments in research
	// mode; the table is read-only once the run starts.
	Baseline []baseline.TestCaseMetadata
}

// Coordinator owns the bounded worker pool and the minion launcher.
type Coordinator struct {
	launcher    Launcher
	opts        Options
	interceptor Interceptor

	mu      sync.Mutex
	results map[string]Result
}

// New builds a Coordinator. A nil interceptor is allowed.
func New(launcher Launcher, opts Options, interceptor Interceptor) *Coordinator {
	return &Coordinator{
		launcher:    launcher,
		opts:        opts,
		interceptor: interceptor,
		results:     make(map[string]Result),
	}
}

// Run schedules every unit on the pool and blocks until all have
// completed, returning the per-mutant results keyed by candidate id.
func (c *Coordinator) Run(ctx context.Context, units []Unit) map[string]Result {
	start := time.Now()
	pool := workerpool.Initialize("coordinator")
	pool.Start()

	wg := &sync.WaitGroup{}
	for _, u := range units {
		u := u
		wg.Add(1)
		pool.AppendExecutor(&unitExecutor{coordinator: c, ctx: ctx, unit: u, wg: wg})
	}
	wg.Wait()
	pool.Stop()

	log.Infof("Mutation testing completed in %s\n", durafmt.Parse(time.Since(start)).LimitFirstN(2))

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}

	return out
}

func (c *Coordinator) record(unit Unit, res Result) {
	c.mu.Lock()
	c.results[res.CandidateID] = res
	c.mu.Unlock()

	if c.interceptor != nil {
		c.interceptor(unit, res)
	}
}

// unitExecutor adapts one Unit to the worker pool.
type unitExecutor struct {
	coordinator *Coordinator
	ctx         context.Context
	unit        Unit
	wg          *sync.WaitGroup
}

// Start drives one unit to completion: it partitions the unit into batches
// and keeps spawning minions until every mutant has a terminal status.
func (e *unitExecutor) Start(_ *workerpool.Worker) {
	defer e.wg.Done()
	c := e.coordinator

	queue := make([]protocol.MutationCandidate, 0, len(e.unit.Candidates))
	for _, cand := range e.unit.Candidates {
		if !c.opts.ResearchMode && len(cand.Covering) == 0 {
			c.record(e.unit, Result{CandidateID: cand.ID, Status: mutator.NoCoverage})

			continue
		}
		queue = append(queue, cand)
	}

	batchSize := len(queue)
	if c.opts.ResearchMode {
		batchSize = discovery.BatchSize(c.opts.TestClassCount)
	}
	if batchSize < 1 {
		batchSize = 1
	}

	for len(queue) > 0 {
		if e.ctx.Err() != nil {
			for _, cand := range queue {
				c.record(e.unit, Result{CandidateID: cand.ID, Status: mutator.RunError})
			}

			return
		}

		batch := queue
		if len(batch) > batchSize {
			batch = batch[:batchSize]
		}

		reported, fault, attributed := c.runSession(e.ctx, e.unit, batch)

		var remaining []protocol.MutationCandidate
		for i, cand := range queue {
			if _, ok := reported[cand.ID]; ok {
				continue
			}
			if i < len(batch) {
				// Batch members the session never finished.
				switch {
				case fault == protocol.OK:
					// A clean exit must report everything it was sent;
					// anything missing is a protocol violation.
					c.record(e.unit, Result{CandidateID: cand.ID, Status: mutator.RunError})

					continue
				case !attributed && i == firstUnreported(batch, reported):
					// The mutant the minion was working on when it died
					// takes the fault status and is not retried.
					c.record(e.unit, Result{CandidateID: cand.ID, Status: faultStatus(fault)})

					continue
				}
			}
			remaining = append(remaining, cand)
		}
		queue = remaining
	}
}

func firstUnreported(batch []protocol.MutationCandidate, reported map[string]bool) int {
	for i, cand := range batch {
		if !reported[cand.ID] {
			return i
		}
	}

	return -1
}

// faultStatus maps a minion exit code onto the status bulk-assigned to the
// mutant it was executing.
func faultStatus(code protocol.ExitCode) mutator.Status {
	switch code {
	case protocol.Timeout:
		return mutator.TimedOut
	case protocol.OutOfMemory:
		return mutator.MemoryError
	case protocol.MinionDied, protocol.UnknownError:
		return mutator.RunError
	default:
		return mutator.RunError
	}
}
