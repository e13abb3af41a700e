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

package minion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

// testEvent is the decoded form of one line of `go test -json` output.
type testEvent struct {
	Action  string
	Package string
	Test    string
	Output  string
	Elapsed float64
}

// testOutcome accumulates the events of one test until its terminal
// pass/fail action arrives.
type testOutcome struct {
	name    string
	passed  bool
	done    bool
	elapsed time.Duration
	output  []string
}

// decodeTestOutput consumes a `go test -json` stream and produces one
// DetailedResult per executed test, sorted by test name so that downstream
// TCID alignment never depends on scheduling order. Lines that are not
// JSON (toolchain noise, build errors) are skipped.
func decodeTestOutput(r io.Reader, modulePrefix string) []protocol.DetailedResult {
	outcomes := make(map[string]*testOutcome)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var ev testEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Test == "" {
			continue
		}

		oc, ok := outcomes[ev.Test]
		if !ok {
			oc = &testOutcome{name: ev.Test}
			outcomes[ev.Test] = oc
		}

		switch ev.Action {
		case "output":
			oc.output = append(oc.output, strings.TrimRight(ev.Output, "\n"))
		case "pass":
			oc.passed = true
			oc.done = true
			oc.elapsed = time.Duration(ev.Elapsed * float64(time.Second))
		case "fail":
			oc.passed = false
			oc.done = true
			oc.elapsed = time.Duration(ev.Elapsed * float64(time.Second))
		}
	}

	names := make([]string, 0, len(outcomes))
	for name, oc := range outcomes {
		if oc.done {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	results := make([]protocol.DetailedResult, 0, len(names))
	for _, name := range names {
		oc := outcomes[name]
		dr := protocol.DetailedResult{
			TestName:   name,
			Passed:     oc.passed,
			DurationMS: oc.elapsed.Milliseconds(),
		}
		if !oc.passed {
			dr.ExceptionType, dr.ExceptionMessage = exceptionOf(oc.output)
			dr.FilteredStack = baseline.FilterStack(oc.output, modulePrefix)
		}
		results = append(results, dr)
	}

	return results
}

// exceptionOf derives the exception type/message pair from a failed test's
// output: a panicking test reports the panic header, a plain assertion
// failure reports the first failure line emitted by the test itself.
func exceptionOf(output []string) (string, string) {
	for _, line := range output {
		trimmed := strings.TrimSpace(line)
		if msg, ok := strings.CutPrefix(trimmed, "panic: "); ok {
			msg = strings.TrimSuffix(msg, " [recovered]")

			return "panic", msg
		}
	}

	for _, line := range output {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "=== ") || strings.HasPrefix(trimmed, "--- ") {
			continue
		}

		return "test.Failure", trimmed
	}

	return "test.Failure", ""
}

// toBaseline converts an unmutated run's detailed results into the
// test-case metadata table, assigning TCIDs lexicographically.
func toBaseline(details []protocol.DetailedResult) []baseline.TestCaseMetadata {
	tests := make([]baseline.TestCaseMetadata, 0, len(details))
	for _, d := range details {
		tests = append(tests, baseline.TestCaseMetadata{
			Name:             d.TestName,
			Passed:           d.Passed,
			ExceptionType:    d.ExceptionType,
			ExceptionMessage: d.ExceptionMessage,
			FilteredStack:    d.FilteredStack,
			DurationMS:       d.DurationMS,
		})
	}

	ctx := baseline.NewContext(tests)

	return ctx.Tests()
}
