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

// Package minion implements the isolated, one-shot executor process: it
// dials the coordinator's control socket, takes one package-scoped batch of
// mutants, and for each one swaps in the coordinator-supplied mutated
// source, "hot-swaps" by rebuilding the package, runs the relevant tests
// under a watchdog, and streams back a per-test verdict. It is the analogue
// of an isolated child runtime performing class redefinition: a mutated
// source tree that no longer compiles is the non-viable case a bytecode
// verifier would reject.
package minion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/artifact"
	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

// execContext mirrors the engine package's override point for exec.Command,
// so tests can substitute a fake without touching a real go toolchain.
type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// minimumTestTimeout bounds the percent-of-baseline strategy from below, so
// a near-instant baseline does not produce a timeout no test could meet.
const minimumTestTimeout = 2 * time.Second

// Minion runs one control-socket session end to end.
type Minion struct {
	execContext execContext
	workDir     string
	module      string
}

// New builds a Minion rooted at workDir (the coordinator-provided private
// copy of the module for this unit). The module path is used to keep only
// module frames when filtering stack traces.
func New(workDir, module string) *Minion {
	return &Minion{execContext: exec.CommandContext, workDir: workDir, module: module}
}

// Run dials addr, executes the received batch, and streams results back
// until Done.
func (m *Minion) Run(ctx context.Context, addr string) protocol.ExitCode {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Errorf("minion: failed to dial coordinator at %s: %v", addr, err)

		return protocol.UnknownError
	}
	defer func() { _ = conn.Close() }()

	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)

	args, err := r.ReadArguments()
	if err != nil {
		log.Errorf("minion: failed to read arguments: %v", err)

		return protocol.UnknownError
	}

	bctx, ok := m.baselineContext(ctx, args)
	if !ok {
		return protocol.UnknownError
	}
	timeout := m.testTimeout(args, bctx)

	watchdog := newWatchdog(args.MemoryLimitMB)
	stopWatchdog := watchdog.start()
	defer stopWatchdog()

	for _, c := range args.Candidates {
		select {
		case <-ctx.Done():
			return protocol.MinionDied
		case <-watchdog.tripped:
			return protocol.OutOfMemory
		default:
		}

		report, timedOut := m.runOne(ctx, args, bctx, c, timeout)
		if err := w.WriteReport(report); err != nil {
			log.Errorf("minion: failed to stream report for %s: %v", c.ID, err)

			return protocol.UnknownError
		}
		if timedOut {
			// The timeout side effect terminates the whole process; the
			// coordinator re-spawns for the batch remainder.
			return protocol.Timeout
		}
	}

	if err := w.WriteDone(); err != nil {
		log.Errorf("minion: failed to write done frame: %v", err)

		return protocol.UnknownError
	}

	return protocol.OK
}

// CaptureBaseline runs one unmutated `go test -json` pass over the whole
// module and returns the baseline table with TCIDs assigned. The
// coordinator calls this once per run before scheduling; research-mode
// minions then receive the table instead of recomputing it.
func CaptureBaseline(ctx context.Context, workDir, module, buildTags string) ([]baseline.TestCaseMetadata, error) {
	m := New(workDir, module)
	args := protocol.MinionArguments{BuildTags: buildTags, Packages: []string{"./..."}}
	details, timedOut := m.runTests(ctx, args, nil, 0)
	if timedOut {
		return nil, context.DeadlineExceeded
	}
	if len(details) == 0 {
		return nil, errors.New("baseline pass produced no test results")
	}

	return toBaseline(details), nil
}

// baselineContext either adopts the coordinator-provided baseline table or
// captures one locally with a single unmutated test pass.
func (m *Minion) baselineContext(ctx context.Context, args protocol.MinionArguments) (*baseline.Context, bool) {
	if len(args.Baseline) > 0 {
		return baseline.NewContext(args.Baseline), true
	}

	details, timedOut := m.runTests(ctx, args, nil, 0)
	if timedOut {
		log.Errorf("minion: baseline capture timed out")

		return nil, false
	}

	return baseline.NewContext(toBaseline(details)), true
}

// testTimeout implements the percent-of-baseline-plus-constant strategy:
// the configured factor scales the baseline suite duration, the constant
// absorbs fixed process overhead.
func (m *Minion) testTimeout(args protocol.MinionArguments, bctx *baseline.Context) time.Duration {
	var baselineMS int64
	for _, tc := range bctx.Tests() {
		baselineMS += tc.DurationMS
	}

	t := time.Duration(args.TimeoutFactor*float64(baselineMS))*time.Millisecond +
		time.Duration(args.TimeoutConstant)*time.Millisecond
	if t < minimumTestTimeout {
		t = minimumTestTimeout
	}

	return t
}

func (m *Minion) runOne(
	ctx context.Context,
	args protocol.MinionArguments,
	bctx *baseline.Context,
	c protocol.MutationCandidate,
	timeout time.Duration,
) (protocol.Report, bool) {
	path := filepath.Join(m.workDir, filepath.FromSlash(c.File))

	//nolint:gosec // path is coordinator-controlled, derived from module source tree
	original, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("minion: cannot read %s: %v", path, err)

		return protocol.Report{CandidateID: c.ID, Status: mutator.RunError}, false
	}
	defer func() { _ = os.WriteFile(path, original, 0o600) }()

	if err := os.WriteFile(path, c.MutatedSource, 0o600); err != nil {
		log.Errorf("minion: cannot write mutated %s: %v", path, err)

		return protocol.Report{CandidateID: c.ID, Status: mutator.RunError}, false
	}

	if args.FullMutationMatrix && args.ReportDir != "" {
		m.dumpMutant(args.ReportDir, c)
	}

	if !m.builds(ctx, args, c.Pkg) {
		return protocol.Report{CandidateID: c.ID, Status: mutator.NonViable, Covered: c.Covering}, false
	}

	testFilter := c.Covering
	if args.ResearchMode {
		// Research mode runs the whole baseline suite against every
		// mutant so the transition matrix is dense.
		testFilter = nil
	}
	details, timedOut := m.runTests(ctx, args, testFilter, timeout)
	if timedOut {
		return protocol.Report{CandidateID: c.ID, Status: mutator.TimedOut, Covered: c.Covering}, true
	}

	report := classify(bctx, args.ResearchMode, details)
	report.CandidateID = c.ID
	report.Covered = c.Covering

	return report, false
}

func (m *Minion) dumpMutant(reportDir string, c protocol.MutationCandidate) {
	dumper := artifact.NewClassDumper(reportDir)
	fn := strings.TrimSuffix(filepath.Base(c.File), ".go")
	info := fmt.Sprintf("%s at %s:%d:%d", c.Type, c.File, c.Line, c.Col)
	if err := dumper.WriteMutant(c.Pkg, fn, c.Line, c.Col, c.Type, info, c.MutatedSource); err != nil {
		log.Errorf("minion: cannot dump mutant %s: %v", c.ID, err)
	}
}

func (m *Minion) builds(ctx context.Context, args protocol.MinionArguments, pkg string) bool {
	buildArgs := []string{"build"}
	if args.BuildTags != "" {
		buildArgs = append(buildArgs, "-tags", args.BuildTags)
	}
	buildArgs = append(buildArgs, pkg)

	cmd := m.execContext(ctx, "go", buildArgs...)
	cmd.Dir = m.workDir

	return cmd.Run() == nil
}

// runTests executes the selected tests with `go test -json` and decodes the
// stream into per-test results. A nil filter runs every test of the unit's
// packages. The zero timeout disables the deadline (used for the baseline
// capture pass).
func (m *Minion) runTests(
	ctx context.Context,
	args protocol.MinionArguments,
	filter []string,
	timeout time.Duration,
) ([]protocol.DetailedResult, bool) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	testArgs := []string{"test", "-json"}
	if args.BuildTags != "" {
		testArgs = append(testArgs, "-tags", args.BuildTags)
	}
	if timeout > 0 {
		// A slightly larger inner timeout keeps the go test processes from
		// hanging forever while leaving the outer context the authority on
		// what counts as timed out.
		testArgs = append(testArgs, "-timeout", (timeout + 2*time.Second).String())
	}
	if args.TestCPU > 0 {
		testArgs = append(testArgs, fmt.Sprintf("-cpu=%d", args.TestCPU))
	}
	if len(filter) > 0 {
		testArgs = append(testArgs, "-run", runPattern(filter))
	}
	testArgs = append(testArgs, args.Packages...)

	cmd := m.execContext(runCtx, "go", testArgs...)
	cmd.Dir = m.workDir
	var out bytes.Buffer
	cmd.Stdout = &out

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, true
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		log.Errorf("minion: go test did not run: %v", err)

		return nil, false
	}

	return decodeTestOutput(&out, m.module), false
}

// runPattern anchors every selected test name so that -run never matches
// tests whose names merely share a prefix.
func runPattern(tests []string) string {
	quoted := make([]string, len(tests))
	for i, t := range tests {
		quoted[i] = regexp.QuoteMeta(t)
	}

	return "^(" + strings.Join(quoted, "|") + ")$"
}

// classify derives the mutant's status and killing/surviving partition. In
// research mode a mutant is killed iff at least one test flipped outcome
// against the baseline; in classical mode any failing test kills.
func classify(bctx *baseline.Context, research bool, details []protocol.DetailedResult) protocol.Report {
	var killers, survivors []string
	for _, d := range details {
		flipped := !d.Passed
		if research {
			if tc, ok := bctx.ByName(d.TestName); ok {
				flipped = tc.Passed != d.Passed
			}
		}
		if flipped {
			killers = append(killers, d.TestName)
		} else {
			survivors = append(survivors, d.TestName)
		}
	}

	status := mutator.Survived
	if len(killers) > 0 {
		status = mutator.Killed
	}

	return protocol.Report{
		Status:    status,
		Killers:   killers,
		Survivors: survivors,
		Details:   details,
	}
}
