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

package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/engine/workerpool"
	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/report"
	"github.com/go-gremlins/gremlins-research/internal/workdir"

	"github.com/go-gremlins/gremlins-research/internal/configuration"
	"github.com/go-gremlins/gremlins-research/internal/gomodule"
)

// baseTestTimeout is the test timeout used for a package before the
// adaptive Timeout has observed a run for it.
const baseTestTimeout = 30 * time.Second

// ExecutorDealer is the initializer for new workerpool.Executor.
type ExecutorDealer interface {
	NewExecutor(mut mutator.Mutator, outCh chan<- mutator.Mutator, wg *sync.WaitGroup) workerpool.Executor
}

// MutantExecutorDealer is a ExecutorDealer for the initialisation of a mutantExecutor.
//
// By default, it sets uses exec.Command to perform the tests on the source
// code. This can be overridden, for example in tests.
type MutantExecutorDealer struct {
	wdDealer        workdir.Dealer
	execContext     execContext
	timeouts        *Timeout
	mod             gomodule.GoModule
	buildTags       string
	dryRun          bool
	integrationMode bool
	testCPU         int
}

// ExecutorDealerOption is the defining option for the initialisation of a ExecutorDealer.
type ExecutorDealerOption func(j MutantExecutorDealer) MutantExecutorDealer

// WithExecContext overrides the default exec.Command with a custom executor.
func WithExecContext(c execContext) ExecutorDealerOption {
	return func(m MutantExecutorDealer) MutantExecutorDealer {
		m.execContext = c

		return m
	}
}

// NewExecutorDealer initialises a MutantExecutorDealer.
func NewExecutorDealer(mod gomodule.GoModule, wdd workdir.Dealer, opts ...ExecutorDealerOption) *MutantExecutorDealer {
	buildTags := configuration.Get[string](configuration.UnleashTagsKey)
	dryRun := configuration.Get[bool](configuration.UnleashDryRunKey)
	integrationMode := configuration.Get[bool](configuration.UnleashIntegrationMode)
	testCPU := configuration.Get[int](configuration.UnleashTestCPUKey)

	if testCPU != 0 && integrationMode {
		testCPU /= 2
		if testCPU < 1 {
			testCPU = 1
		}
	}

	jd := MutantExecutorDealer{
		mod:             mod,
		wdDealer:        wdd,
		buildTags:       buildTags,
		dryRun:          dryRun,
		integrationMode: integrationMode,
		testCPU:         testCPU,
		timeouts:        NewTimeout(),
		execContext:     exec.CommandContext,
	}

	for _, opt := range opts {
		jd = opt(jd)
	}

	return &jd
}

// NewExecutor returns a new workerpool.Executor for the given mutator.Mutator.
// It gets an output channel of mutator.Mutator and a sync.WaitGroup. The channel
// will stream the results of the executor, and the wait group will be done when the
// executor is complete.
func (m MutantExecutorDealer) NewExecutor(mut mutator.Mutator, outCh chan<- mutator.Mutator, wg *sync.WaitGroup) workerpool.Executor {
	mj := mutantExecutor{
		mutant:          mut,
		outCh:           outCh,
		wg:              wg,
		wdDealer:        m.wdDealer,
		module:          m.mod,
		dryRun:          m.dryRun,
		integrationMode: m.integrationMode,
		buildTags:       m.buildTags,
		execContext:     m.execContext,
		testCPU:         m.testCPU,
		timeouts:        m.timeouts,
	}

	return &mj
}

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

type mutantExecutor struct {
	mutant          mutator.Mutator
	wdDealer        workdir.Dealer
	outCh           chan<- mutator.Mutator
	wg              *sync.WaitGroup
	execContext     execContext
	timeouts        *Timeout
	module          gomodule.GoModule
	buildTags       string
	dryRun          bool
	integrationMode bool
	testCPU         int
}

// Start is the implementation of the workerpool.Executor definition and is the
// method responsible for performing the actual mutation testing.
// The executor runs on its mutator.Mutator.
// If it is RUNNABLE, and it is not in dry-run mode, it will apply the mutation,
// run the tests and mark the mutant as either KILLED or LIVED depending
// on the result. The timeout of the test is managed outside the run of the
// test, using a context with timeout, because the Go test command doesn't
// make it easy to distinguish failures from timeouts.
func (m *mutantExecutor) Start(w *workerpool.Worker) {
	defer m.wg.Done()
	workerName := fmt.Sprintf("%s-%d", w.Name, w.ID)
	rootDir, err := m.wdDealer.Get(workerName)
	if err != nil {
		log.Errorf("impossible to get a working directory: %v", err)
		m.mutant.SetStatus(mutator.RunError)
		m.outCh <- m.mutant

		return
	}

	workingDir := filepath.Join(rootDir, m.module.CallingDir)
	m.mutant.SetWorkdir(workingDir)

	if m.mutant.Status() == mutator.NotCovered || m.dryRun {
		m.outCh <- m.mutant
		report.Mutant(m.mutant)

		return
	}

	if err := m.mutant.Apply(); err != nil {
		log.Errorf("failed to apply mutation at %s - %s\n\t%v", m.mutant.Position(), m.mutant.Status(), err)

		return
	}

	m.mutant.SetStatus(m.runTests(m.mutant.Pkg()))

	if err := m.mutant.Rollback(); err != nil {
		// What should we do now?
		log.Errorf("failed to restore mutation at %s - %s\n\t%v", m.mutant.Position(), m.mutant.Status(), err)
	}

	m.outCh <- m.mutant
	report.Mutant(m.mutant)
}

func (m *mutantExecutor) runTests(pkg string) mutator.Status {
	timeout, ok := m.timeouts.Of(pkg)
	if !ok {
		timeout = baseTestTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m.downloadModules(ctx)

	start := time.Now()
	cmd := m.execContext(ctx, "go", m.getTestArgs(pkg, timeout)...)
	cmd.Dir = m.mutant.Workdir()

	rel, err := run(cmd)
	defer rel()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return mutator.TimedOut
	}
	m.timeouts.SetTo(pkg, time.Since(start))

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return getTestFailedStatus(exitErr.ExitCode())
	}

	return mutator.Lived
}

// downloadModules primes the module cache of the working copy. A failure
// is not fatal: the test run itself surfaces any unresolved dependency.
func (m *mutantExecutor) downloadModules(ctx context.Context) {
	cmd := m.execContext(ctx, "go", "mod", "download")
	cmd.Dir = m.mutant.Workdir()
	if err := cmd.Run(); err != nil {
		log.Errorf("go mod download failed in %s: %v", m.mutant.Workdir(), err)
	}
}

func (m *mutantExecutor) getTestArgs(pkg string, timeout time.Duration) []string {
	args := []string{"test"}
	if m.buildTags != "" {
		args = append(args, "-tags", m.buildTags)
	}
	// Here we add some seconds to the timeout to be sure it's gremlins that catches the test
	// timeout and not the test itself. The timeout on the test prevents the test.* processes
	// from hanging forever.
	args = append(args, "-timeout", (2*time.Second + timeout).String())
	args = append(args, "-count=1")
	args = append(args, "-failfast")

	if m.testCPU != 0 {
		args = append(args, fmt.Sprintf("-cpu %d", m.testCPU))
	}

	path := pkg
	if m.integrationMode {
		path = "./..."
		if m.module.CallingDir != "." {
			path = fmt.Sprintf("./%s/...", m.module.CallingDir)
		}
	}
	args = append(args, path)

	return args
}

func run(cmd *exec.Cmd) (func(), error) {
	if err := cmd.Run(); err != nil {

		return func() {}, err
	}

	return func() {
		err := cmd.Process.Release()
		if err != nil {
			_ = cmd.Process.Kill()
		}
	}, nil
}

func getTestFailedStatus(exitCode int) mutator.Status {
	switch exitCode {
	case 1:
		return mutator.Killed
	case 2:
		return mutator.NotViable
	default:
		return mutator.Lived
	}
}
