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

package artifact

import "time"

// formatVersion stamps every JSON artifact so downstream research tooling
// can detect layout changes.
const formatVersion = "1.0"

// testInfo identifies one baseline test and its outcome.
type testInfo struct {
	TestID          int    `json:"test_id"`
	TestName        string `json:"test_name"`
	Result          string `json:"result"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// exceptionInfo carries the failure detail of a test, empty fields for a
// passing one.
type exceptionInfo struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stack_trace"`
}

// coverageInfo is the test's line-coverage bit sequence over the run's
// line index.
type coverageInfo struct {
	LineCoverageBitSequence string `json:"line_coverage_bit_sequence"`
	BitSequenceLength       int    `json:"bit_sequence_length"`
}

// metadata stamps an artifact with its format version and creation time.
type metadata struct {
	FormatVersion string `json:"format_version"`
	Timestamp     string `json:"timestamp"`
}

func newMetadata(now time.Time) metadata {
	return metadata{FormatVersion: formatVersion, Timestamp: now.UTC().Format(time.RFC3339)}
}

// baselineTestJSON is the per-test baseline artifact,
// baselineTestResults/<tcID>_test_results.json.
type baselineTestJSON struct {
	TestInfo  testInfo      `json:"test_info"`
	Exception exceptionInfo `json:"exception"`
	Coverage  coverageInfo  `json:"coverage"`
	Metadata  metadata      `json:"metadata"`
}

// mutationInfo identifies one mutant inside its JSON artifact.
type mutationInfo struct {
	MutationID       string `json:"mutation_id"`
	Description      string `json:"description"`
	NumTestsExecuted int    `json:"num_tests_executed"`
}

// mutationTestJSON is one test's outcome against one mutant.
type mutationTestJSON struct {
	TestName        string   `json:"test_name"`
	Result          string   `json:"result"`
	ExceptionType   string   `json:"exception_type"`
	ExceptionMsg    string   `json:"exception_message"`
	StackTrace      []string `json:"stack_trace"`
	ExecutionTimeMS int64    `json:"execution_time_ms"`
}

// mutationSummary rolls a mutant's test outcomes up into totals.
type mutationSummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

// mutationResultJSON is the per-mutant artifact,
// mutationResults/<mutant_id>_mutation_test_results.json.
type mutationResultJSON struct {
	MutationInfo mutationInfo       `json:"mutation_info"`
	TestResults  []mutationTestJSON `json:"test_results"`
	Summary      mutationSummary    `json:"summary"`
	Metadata     metadata           `json:"metadata"`
}

func resultString(passed bool) string {
	if passed {
		return "PASS"
	}

	return "FAIL"
}
