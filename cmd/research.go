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

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"github.com/go-gremlins/gremlins-research/cmd/internal/flags"
	"github.com/go-gremlins/gremlins-research/internal/artifact"
	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/configuration"
	"github.com/go-gremlins/gremlins-research/internal/coordinator"
	"github.com/go-gremlins/gremlins-research/internal/coverage"
	"github.com/go-gremlins/gremlins-research/internal/discovery"
	"github.com/go-gremlins/gremlins-research/internal/engine"
	"github.com/go-gremlins/gremlins-research/internal/exclusion"
	"github.com/go-gremlins/gremlins-research/internal/execution"
	"github.com/go-gremlins/gremlins-research/internal/gomodule"
	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/minion"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
	"github.com/go-gremlins/gremlins-research/internal/report"
	"github.com/go-gremlins/gremlins-research/internal/workdir"
)

type researchCmd struct {
	cmd *cobra.Command
}

const (
	researchCommandName = "research"

	paramReportDir        = "report-dir"
	paramThreads          = "threads"
	paramUnitSize         = "mutation-unit-size"
	paramTimeoutConstant  = "timeout-constant"
	paramTimeoutFactor    = "timeout-factor"
	paramOperators        = "operators"
	paramFullMatrix       = "full-mutation-matrix"
	paramMeasureTime      = "measure-expected-time"
	paramVerbosity        = "verbosity"
	paramMemoryLimit      = "memory-limit-mb"
	paramFailingTestsOnly = "failing-lines-only"
	paramHistoryFile      = "history-file"
)

func newResearchCmd(ctx context.Context) (*researchCmd, error) {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [path]", researchCommandName),
		Args:  cobra.MaximumNArgs(1),
		Short: "Run mutation testing with a full per-test transition matrix",
		Long:  researchExplainer(),
		RunE:  runResearch(ctx),
	}

	if err := setResearchFlags(cmd); err != nil {
		return nil, err
	}

	return &researchCmd{cmd: cmd}, nil
}

func researchExplainer() string {
	return heredoc.Doc(`
		Research mode runs every baseline test against every mutant and records, per
		(test, mutant) pair, whether the outcome flipped against the baseline and
		whether the failure detail (exception type, message, filtered stack trace)
		changed. The resulting transition matrix and per-test artifacts feed
		fault-localisation research.

		Mutants are executed in isolated minion processes, one analysis unit per
		package, with crash, timeout and memory-pressure recovery handled by the
		coordinator.
	`)
}

//nolint:gocognit // the orchestration sequence reads better in one piece
func runResearch(ctx context.Context) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := flags.Rebind(cmd); err != nil {
			return err
		}
		configuration.Set(configuration.ResearchModeKey, true)

		log.Infoln("Starting research run...")
		path, _ := os.Getwd()
		if len(args) > 0 {
			path = args[0]
		}
		mod, err := gomodule.Init(path)
		if err != nil {
			return fmt.Errorf("not in a Go module: %w", err)
		}

		workDir, err := os.MkdirTemp(os.TempDir(), "gremlins-")
		if err != nil {
			return fmt.Errorf("impossible to create the workdir: %w", err)
		}
		defer cleanUp(workDir)

		if err := enableSelectedOperators(); err != nil {
			return err
		}

		cov, err := coverage.New(workDir, mod).Run()
		if err != nil {
			return fmt.Errorf("failed to gather coverage: %w", err)
		}

		excl, err := exclusion.New()
		if err != nil {
			return err
		}

		eng := engine.New(mod, engine.CodeData{Cov: cov.Profile, Exclusion: excl}, nil)
		mutants := eng.Discover(ctx)
		if len(mutants) == 0 {
			return execution.NewExitErr(execution.NoMutations)
		}

		wdDealer := workdir.NewCachedDealer(workDir, mod.Root)
		defer wdDealer.Clean()

		baselineTable, err := captureBaseline(ctx, wdDealer, mod)
		if err != nil {
			return fmt.Errorf("failed to capture baseline: %w", err)
		}
		bctx := baseline.NewContext(baselineTable)

		db := collectDatabase(workDir, mod, bctx)

		units, byID, err := buildUnits(mutants, wdDealer, mod, bctx, db)
		if err != nil {
			return err
		}

		emit, closeArtifacts, err := newArtifactSink(bctx, byID, db)
		if err != nil {
			return err
		}
		defer closeArtifacts()

		launcher, err := newMinionLauncher(wdDealer, mod)
		if err != nil {
			return err
		}

		if configuration.Get[bool](configuration.ResearchMeasureExpectedTime) {
			logExpectedTime(units, bctx)
		}

		opts := coordinator.Options{
			ResearchMode:       true,
			FullMutationMatrix: configuration.Get[bool](configuration.ResearchFullMatrixKey),
			ReportDir:          configuration.Get[string](configuration.ResearchReportDirKey),
			BuildTags:          configuration.Get[string](configuration.UnleashTagsKey),
			TestCPU:            configuration.Get[int](configuration.UnleashTestCPUKey),
			TimeoutFactor:      configuration.Get[float64](configuration.ResearchTimeoutFactorKey),
			TimeoutConstant:    int64(configuration.Get[int](configuration.ResearchTimeoutConstantKey)),
			MemoryLimitMB:      configuration.Get[int](configuration.ResearchMemoryLimitKey),
			Verbosity:          configuration.Get[string](configuration.ResearchVerbosityKey),
			TestClassCount:     bctx.Len(),
			Baseline:           bctx.Tests(),
		}

		results := coordinator.New(launcher, opts, emit).Run(ctx, units)
		logRunTotals(results)

		return nil
	}
}

// enableSelectedOperators resolves the operator selection into per-type
// enablement flags so discovery honours the catalog names.
func enableSelectedOperators() error {
	raw := configuration.Get[string](configuration.ResearchOperatorSelectionKey)
	var names []string
	if raw != "" {
		names = strings.Split(raw, ",")
	}
	selected, err := configuration.ResolveOperatorSelection(names)
	if err != nil {
		return err
	}
	for _, mt := range selected {
		configuration.Set(configuration.MutantTypeEnabledKey(mt), true)
	}

	return nil
}

// captureBaseline runs the unmutated suite once in a private working copy.
func captureBaseline(ctx context.Context, wdDealer workdir.Dealer, mod gomodule.GoModule) ([]baseline.TestCaseMetadata, error) {
	wd, err := wdDealer.Get("baseline")
	if err != nil {
		return nil, err
	}
	tags := configuration.Get[string](configuration.UnleashTagsKey)

	return minion.CaptureBaseline(ctx, wd, mod.Name, tags)
}

// buildUnits renders each mutant's mutated source once, runs the filter
// pipeline, assigns dense ids, and groups survivors into per-package
// analysis units. It returns the units plus a lookup from mutant id to its
// discovery record for artifact emission.
func buildUnits(
	mutants []mutator.Mutator,
	wdDealer workdir.Dealer,
	mod gomodule.GoModule,
	bctx *baseline.Context,
	db *coverage.Database,
) ([]coordinator.Unit, map[string]discovery.MutationDetails, error) {
	renderDir, err := wdDealer.Get("render")
	if err != nil {
		return nil, nil, err
	}
	renderRoot := filepath.Join(renderDir, mod.CallingDir)

	var details []discovery.MutationDetails
	sources := make(map[string][]byte)

	// Research mode runs every baseline test against every mutant; the
	// per-test database still records the true covering sets for the
	// artifacts when it is available.
	covering := make([]string, 0, bctx.Len())
	for _, tc := range bctx.Tests() {
		covering = append(covering, tc.Name)
	}

	for _, m := range mutants {
		if m.Status() == mutator.Skipped || m.Status() == mutator.NotCovered {
			continue
		}
		m.SetWorkdir(renderRoot)
		if err := m.Apply(); err != nil {
			log.Errorf("failed to render mutation at %s: %v", m.Position(), err)

			continue
		}
		src, readErr := os.ReadFile(filepath.Join(renderRoot, m.Position().Filename))
		if rbErr := m.Rollback(); rbErr != nil {
			return nil, nil, fmt.Errorf("cannot restore working copy after %s: %w", m.Position(), rbErr)
		}
		if readErr != nil {
			log.Errorf("failed to read rendered mutation at %s: %v", m.Position(), readErr)

			continue
		}

		id := m.ID()
		d := discovery.MutationDetails{
			ID:       id.ID(),
			Pkg:      m.Pkg(),
			File:     m.Position().Filename,
			Func:     id.Func,
			Line:     m.Position().Line,
			Col:      m.Position().Column,
			Type:     m.Type(),
			Covering: covering,
		}
		if db != nil {
			d.TrueCovering = db.CoveringTests(m.Position())
		}
		if lv, ok := m.(interface{ LiteralValue() string }); ok {
			d.LiteralValue = lv.LiteralValue()
		}
		if tt, ok := m.(interface{ TokenText() string }); ok {
			d.OperatorToken = tt.TokenText()
		}
		sources[d.ID] = src
		details = append(details, d)
	}

	details = discovery.RunPipeline(details, researchFilters(db)...)

	// Re-key sources by the dense ids assigned after filtering.
	withIDs := discovery.AssignIDs(details)
	renumbered := make(map[string][]byte, len(withIDs))
	byID := make(map[string]discovery.MutationDetails, len(withIDs))
	for i, d := range withIDs {
		renumbered[d.ID] = sources[details[i].ID]
		byID[d.ID] = d
	}

	unitSize := configuration.Get[int](configuration.ResearchMutationUnitSizeKey)

	var units []coordinator.Unit
	for _, u := range discovery.GroupByPackage(withIDs) {
		candidates := make([]protocol.MutationCandidate, 0, len(u.Candidates))
		for _, d := range u.Candidates {
			candidates = append(candidates, protocol.MutationCandidate{
				ID:            d.ID,
				Type:          d.Type,
				Pkg:           d.Pkg,
				File:          d.File,
				Line:          d.Line,
				Col:           d.Col,
				Covering:      d.Covering,
				MutatedSource: renumbered[d.ID],
			})
		}
		units = append(units, splitUnit(u.Package, candidates, unitSize)...)
	}

	return units, byID, nil
}

// splitUnit caps a package's mutant group at the configured unit size, so
// one oversized package doesn't serialise the whole run behind a single
// minion session chain.
func splitUnit(pkg string, candidates []protocol.MutationCandidate, size int) []coordinator.Unit {
	if size < 1 || len(candidates) <= size {
		return []coordinator.Unit{{Name: pkg, Packages: []string{pkg}, Candidates: candidates}}
	}

	var out []coordinator.Unit
	for i := 0; i < len(candidates); i += size {
		end := i + size
		if end > len(candidates) {
			end = len(candidates)
		}
		out = append(out, coordinator.Unit{
			Name:       fmt.Sprintf("%s#%d", pkg, len(out)),
			Packages:   []string{pkg},
			Candidates: candidates[i:end],
		})
	}

	return out
}

// collectDatabase gathers the per-test coverage database when a research
// feature needs it: the failing-lines filter or the full-matrix line
// artifacts. The per-test sweep runs the instrumented suite once per
// baseline test against the unmutated tree; workDir only holds the profile
// files.
func collectDatabase(workDir string, mod gomodule.GoModule, bctx *baseline.Context) *coverage.Database {
	needed := configuration.Get[bool](configuration.ResearchFailingLinesOnlyKey) ||
		configuration.Get[bool](configuration.ResearchFullMatrixKey)
	if !needed || bctx.Len() == 0 {
		return nil
	}

	log.Infoln("Gathering per-test coverage...")
	var names, failing []string
	for _, tc := range bctx.Tests() {
		names = append(names, tc.Name)
		if !tc.Passed {
			failing = append(failing, tc.Name)
		}
	}
	profiles := coverage.CollectPerTest(workDir, mod, names)

	return coverage.NewDatabase(profiles, failing)
}

func researchFilters(db *coverage.Database) []discovery.Filter {
	fls := []discovery.Filter{
		discovery.NewInlineConsolidationFilter(),
		discovery.EquivalentMutantFilter{},
	}

	if configuration.Get[bool](configuration.ResearchFailingLinesOnlyKey) {
		// Fault-localisation runs only mutate lines the failing tests
		// exercise; the coverage database supplies the partition.
		if db != nil && len(db.FailingTests()) > 0 {
			fls = append(fls, &discovery.FailingTestsOnlyFilter{FailingLines: db.FailingLines()})
		} else {
			log.Infoln("No failing baseline tests; the failing-lines filter is inactive.")
		}
	}

	if path := configuration.Get[string](configuration.ResearchHistoryFileKey); path != "" {
		hf, err := discovery.LoadHistory(path)
		if err != nil {
			log.Errorf("ignoring unreadable history file %s: %v", path, err)
		} else {
			fls = append(fls, hf)
		}
	}

	return fls
}

// newArtifactSink wires the research artifacts behind a coordinator
// interceptor. Outside full-matrix mode it only logs progress.
func newArtifactSink(bctx *baseline.Context, byID map[string]discovery.MutationDetails, db *coverage.Database) (coordinator.Interceptor, func(), error) {
	logger := report.NewLogger()
	noop := func() {}

	if !configuration.Get[bool](configuration.ResearchFullMatrixKey) {
		return func(_ coordinator.Unit, res coordinator.Result) {
			logMutantResult(logger, byID[res.CandidateID], res)
		}, noop, nil
	}

	reportDir := configuration.Get[string](configuration.ResearchReportDirKey)
	if reportDir == "" {
		reportDir = "gremlins-report"
	}

	matrix, err := artifact.NewMatrixWriter(reportDir)
	if err != nil {
		return nil, noop, err
	}
	mutations, err := artifact.NewMutationResultWriter(reportDir)
	if err != nil {
		_ = matrix.Close()

		return nil, noop, err
	}

	if err := artifact.WriteBaselineResults(reportDir, bctx, perTestLineBits(bctx, db), time.Now()); err != nil {
		log.Errorf("failed to write baseline artifacts: %v", err)
	}
	writeLineInfo(reportDir, db)

	closer := func() {
		_ = matrix.Close()
		_ = mutations.Close()
	}

	emit := func(_ coordinator.Unit, res coordinator.Result) {
		d := byID[res.CandidateID]
		logMutantResult(logger, d, res)

		bits := baseline.TransitionBits{}
		var detailCount int
		if res.Report != nil {
			current := make(map[string]baseline.DetailedResult, len(res.Report.Details))
			for _, dr := range res.Report.Details {
				current[dr.TestName] = baseline.DetailedResult{
					Passed:           dr.Passed,
					ExceptionType:    dr.ExceptionType,
					ExceptionMessage: dr.ExceptionMessage,
					FilteredStack:    dr.FilteredStack,
				}
			}
			bits = baseline.Transitions(bctx, current)
			detailCount = len(res.Report.Details)
		} else {
			bits = baseline.Transitions(bctx, nil)
		}

		method := d.Func
		if method == "" {
			method = d.File
		}
		matrix.WriteRow(artifact.MutationRow{
			MutantID:    res.CandidateID,
			Pkg:         d.Pkg,
			Method:      method,
			Line:        d.Line,
			Operator:    d.Type,
			Transitions: bits,
			Status:      res.Status,
			NumTests:    detailCount,
		})

		if res.Report != nil {
			mutations.Write(artifact.MutationResult{
				MutantID:    res.CandidateID,
				Description: fmt.Sprintf("%s at %s:%d", d.Type, d.File, d.Line),
				Pkg:         d.Pkg,
				Operator:    d.Type,
				Status:      res.Status,
				Details:     res.Report.Details,
			}, time.Now())
			mutations.Release(res.CandidateID)
		}
	}

	return emit, closer, nil
}

// perTestLineBits renders each baseline test's line-coverage bit sequence
// over the database's line index.
func perTestLineBits(bctx *baseline.Context, db *coverage.Database) map[string]string {
	if db == nil {
		return map[string]string{}
	}

	index := db.LineIndex()
	out := make(map[string]string, bctx.Len())
	for _, tc := range bctx.Tests() {
		out[tc.Name] = db.LineBits(tc.Name, index)
	}

	return out
}

// writeLineInfo maps each line-coverage bit position onto its file and
// line, so the baseline bit sequences stay interpretable offline. The line
// index records no function names, so the function column holds file:line
// rather than a function signature.
func writeLineInfo(reportDir string, db *coverage.Database) {
	if db == nil {
		return
	}
	lw, err := artifact.NewLineInfoWriter(reportDir)
	if err != nil {
		log.Errorf("failed to open line_info.csv: %v", err)

		return
	}
	defer func() { _ = lw.Close() }()

	for i, ref := range db.LineIndex() {
		lw.WriteLine(i, ref.File, fmt.Sprintf("%s:%d", ref.File, ref.Line), ref.Line)
	}
}

func newMinionLauncher(wdDealer workdir.Dealer, mod gomodule.GoModule) (coordinator.Launcher, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot locate own executable for minion spawning: %w", err)
	}

	return coordinator.MinionLauncher{
		Binary: self,
		Args:   []string{minionCommandName},
		Dealer: wdDealer,
		Subdir: mod.CallingDir,
		Module: mod.Name,
	}, nil
}

func logMutantResult(logger report.MutantLogger, d discovery.MutationDetails, res coordinator.Result) {
	logger.Research(d.Type, d.File, d.Line, res.Status)
}

// logExpectedTime prints a rough duration estimate before the run: every
// mutant re-runs the whole baseline suite, scaled down by the pool size.
func logExpectedTime(units []coordinator.Unit, bctx *baseline.Context) {
	var suiteMS int64
	for _, tc := range bctx.Tests() {
		suiteMS += tc.DurationMS
	}
	mutants := 0
	for _, u := range units {
		mutants += len(u.Candidates)
	}
	threads := configuration.Get[int](configuration.ResearchThreadsKey)
	if threads < 1 {
		threads = 1
	}

	total := time.Duration(suiteMS*int64(mutants)/int64(threads)) * time.Millisecond
	log.Infof("Expected execution time: about %s for %d mutants\n", durafmt.Parse(total).LimitFirstN(2), mutants)
}

func logRunTotals(results map[string]coordinator.Result) {
	totals := make(map[mutator.Status]int)
	for _, res := range results {
		totals[res.Status]++
	}
	log.Infof("Killed: %d, Survived: %d\n", totals[mutator.Killed], totals[mutator.Survived])
	if n := totals[mutator.NonViable]; n > 0 {
		log.Infof("Non viable: %d\n", n)
	}
	if n := totals[mutator.TimedOut]; n > 0 {
		log.Infof("Timed out: %d\n", n)
	}
	if n := totals[mutator.MemoryError] + totals[mutator.RunError]; n > 0 {
		log.Infof("Faulted: %d\n", n)
	}
}

func setResearchFlags(cmd *cobra.Command) error {
	fls := []*flags.Flag{
		{Name: paramReportDir, CfgKey: configuration.ResearchReportDirKey, Shorthand: "r", DefaultV: "gremlins-report", Usage: "directory for matrix and artifact output"},
		{Name: paramThreads, CfgKey: configuration.ResearchThreadsKey, DefaultV: 0, Usage: "number of analysis units to run in parallel"},
		{Name: paramUnitSize, CfgKey: configuration.ResearchMutationUnitSizeKey, DefaultV: 0, Usage: "maximum number of mutants per analysis unit"},
		{Name: paramTimeoutConstant, CfgKey: configuration.ResearchTimeoutConstantKey, DefaultV: 4000, Usage: "constant test-timeout term in milliseconds"},
		{Name: paramTimeoutFactor, CfgKey: configuration.ResearchTimeoutFactorKey, DefaultV: 1.25, Usage: "baseline-duration multiplier for test timeouts"},
		{Name: paramOperators, CfgKey: configuration.ResearchOperatorSelectionKey, DefaultV: "COMPREHENSIVE", Usage: "comma-separated operator selection (AOR_1, ROR_ALL, COMPREHENSIVE, ...)"},
		{Name: paramFullMatrix, CfgKey: configuration.ResearchFullMatrixKey, DefaultV: true, Usage: "emit the full per-test transition matrix and artifacts"},
		{Name: paramMeasureTime, CfgKey: configuration.ResearchMeasureExpectedTime, DefaultV: false, Usage: "estimate the run duration before executing"},
		{Name: paramVerbosity, CfgKey: configuration.ResearchVerbosityKey, DefaultV: "default", Usage: "output verbosity: default, verbose or silent"},
		{Name: paramMemoryLimit, CfgKey: configuration.ResearchMemoryLimitKey, DefaultV: 0, Usage: "minion heap budget in MB (0 disables the watchdog)"},
		{Name: paramFailingTestsOnly, CfgKey: configuration.ResearchFailingLinesOnlyKey, DefaultV: false, Usage: "only mutate lines covered by failing baseline tests"},
		{Name: paramHistoryFile, CfgKey: configuration.ResearchHistoryFileKey, DefaultV: "", Usage: "skip mutants with a terminal verdict in this history file"},
		{Name: paramWorkers, CfgKey: configuration.UnleashWorkersKey, DefaultV: 0, Usage: "the number of workers to use in mutation testing"},
		{Name: paramBuildTags, CfgKey: configuration.UnleashTagsKey, Shorthand: "t", DefaultV: "", Usage: "a comma-separated list of build tags"},
		{Name: paramTestCPU, CfgKey: configuration.UnleashTestCPUKey, DefaultV: 0, Usage: "the number of CPUs to allow each test run to use"},
	}

	for _, f := range fls {
		if err := flags.Set(cmd, f); err != nil {
			return err
		}
	}

	return nil
}
