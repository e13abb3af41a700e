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

// Package baseline captures the unmutated behaviour of a test suite and
// classifies each mutant's test run against it: the P2F/F2P/P2P/F2F
// transition engine.
package baseline

import (
	"sort"
	"strings"
)

// TestCaseMetadata is the baseline record for one test, assigned a stable
// TCID by lexicographic sort of test names so bit-sequence artifacts stay
// column-stable across runs.
type TestCaseMetadata struct {
	TCID             int
	Name             string
	Passed           bool
	ExceptionType    string
	ExceptionMessage string
	FilteredStack    []string
	DurationMS       int64
}

// Context is the read-only, explicitly-passed baseline for one analysis
// unit. It is built once by the coordinator and serialised whole into each
// minion's arguments, rather than living behind a process-wide singleton.
type Context struct {
	tests []TestCaseMetadata
	byTC  map[string]int
}

// NewContext builds a Context from the set of baseline test results, fixing
// the TCID assignment by sorting test names lexicographically.
func NewContext(tests []TestCaseMetadata) *Context {
	sorted := make([]TestCaseMetadata, len(tests))
	copy(sorted, tests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := range sorted {
		sorted[i].TCID = i
	}

	byTC := make(map[string]int, len(sorted))
	for i, tc := range sorted {
		byTC[tc.Name] = i
	}

	return &Context{tests: sorted, byTC: byTC}
}

// Tests returns the baseline test set in TCID order.
func (c *Context) Tests() []TestCaseMetadata { return c.tests }

// Len returns the number of baseline tests.
func (c *Context) Len() int { return len(c.tests) }

// ByName looks up the baseline record for a test name.
func (c *Context) ByName(name string) (TestCaseMetadata, bool) {
	i, ok := c.byTC[name]
	if !ok {
		return TestCaseMetadata{}, false
	}

	return c.tests[i], true
}

// FailingTests returns the names of every baseline test that already fails
// without any mutation applied (used by fault-localisation filtering).
func (c *Context) FailingTests() []string {
	var out []string
	for _, tc := range c.tests {
		if !tc.Passed {
			out = append(out, tc.Name)
		}
	}

	return out
}

// Transition is the four-way classification of one test's before/after
// outcome, plus the auxiliary diff bits the spec tracks alongside it.
type Transition int

const (
	PassToPass Transition = iota
	PassToFail
	FailToPass
	FailToFail
)

func (t Transition) String() string {
	switch t {
	case PassToPass:
		return "P2P"
	case PassToFail:
		return "P2F"
	case FailToPass:
		return "F2P"
	case FailToFail:
		return "F2F"
	default:
		return "UNKNOWN"
	}
}

// Result is the classification of one current DetailedResult against its
// TestCaseMetadata baseline.
type Result struct {
	Transition          Transition
	ExceptionTypeDiffers  bool
	ExceptionMsgDiffers   bool
	FilteredStackDiffers  bool
}

// DetailedResult is the minimal current-run shape Classify needs; callers
// adapt protocol.DetailedResult (or a direct go test -json observation)
// into this.
type DetailedResult struct {
	Passed           bool
	ExceptionType    string
	ExceptionMessage string
	FilteredStack    []string
}

// Classify compares a test's current result against its baseline and
// returns the transition plus the three auxiliary diff bits. Absent
// exception type/message/stack on both sides count as equal, not as a
// diff - a passing test has no exception on either side.
func Classify(tc TestCaseMetadata, cur DetailedResult) Result {
	var tr Transition
	switch {
	case tc.Passed && cur.Passed:
		tr = PassToPass
	case tc.Passed && !cur.Passed:
		tr = PassToFail
	case !tc.Passed && cur.Passed:
		tr = FailToPass
	default:
		tr = FailToFail
	}

	return Result{
		Transition:           tr,
		ExceptionTypeDiffers: tc.ExceptionType != cur.ExceptionType,
		ExceptionMsgDiffers:  tc.ExceptionMessage != cur.ExceptionMessage,
		FilteredStackDiffers: strings.Join(tc.FilteredStack, "\n") != strings.Join(cur.FilteredStack, "\n"),
	}
}

// BitSequence renders one mutant's per-test pass/fail outcome as a string
// of '0'/'1' in TCID order, '1' meaning the test failed against the
// mutant. This is the classical-mode sequence: with an all-passing
// baseline it coincides with the result-transition sequence.
func BitSequence(ctx *Context, results map[string]DetailedResult) string {
	bits := make([]byte, ctx.Len())
	for i, tc := range ctx.Tests() {
		bits[i] = '0'
		if r, ok := results[tc.Name]; ok && !r.Passed {
			bits[i] = '1'
		}
	}

	return string(bits)
}

// TransitionBits carries the four per-mutant bit sequences emitted into the
// mutation matrix, each with one bit per baseline test in TCID order. A
// test that did not run against the mutant contributes '0' to every
// sequence.
type TransitionBits struct {
	Result           string
	ExceptionType    string
	ExceptionMessage string
	Stack            string
}

// Transitions classifies every baseline test against a mutant's results.
// The result bit is '1' iff the test's outcome flipped (P2F or F2P); the
// three auxiliary bits are '1' iff the exception type, message or filtered
// stack differ from baseline.
func Transitions(ctx *Context, results map[string]DetailedResult) TransitionBits {
	n := ctx.Len()
	res := make([]byte, n)
	exT := make([]byte, n)
	exM := make([]byte, n)
	stk := make([]byte, n)

	for i, tc := range ctx.Tests() {
		res[i], exT[i], exM[i], stk[i] = '0', '0', '0', '0'
		cur, ok := results[tc.Name]
		if !ok {
			continue
		}
		r := Classify(tc, cur)
		if r.Transition == PassToFail || r.Transition == FailToPass {
			res[i] = '1'
		}
		if r.ExceptionTypeDiffers {
			exT[i] = '1'
		}
		if r.ExceptionMsgDiffers {
			exM[i] = '1'
		}
		if r.FilteredStackDiffers {
			stk[i] = '1'
		}
	}

	return TransitionBits{
		Result:           string(res),
		ExceptionType:    string(exT),
		ExceptionMessage: string(exM),
		Stack:            string(stk),
	}
}

// Killed reports whether a result-transition sequence indicates the mutant
// was caught: at least one test flipped its outcome.
func Killed(bits string) bool {
	return strings.ContainsRune(bits, '1')
}
