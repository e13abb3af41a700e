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

// Package artifact writes the research-mode matrix and per-mutant/per-test
// CSV and JSON outputs, and dumps mutated/original source when the full
// mutation matrix is requested. It only ever appends to its own files and
// never aborts a run on a write failure - failures are logged and the run
// continues, matching the teacher's report package policy.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// MutationRow is one line of the full mutation matrix: the mutant's
// coordinates plus the four per-test transition sequences in TCID order.
// Method is the enclosing function name; callers fall back to the file
// name for mutation points outside any function.
type MutationRow struct {
	MutantID    string
	Pkg         string
	Method      string
	Line        int
	Operator    mutator.Type
	Transitions baseline.TransitionBits
	Status      mutator.Status
	NumTests    int
}

// MatrixWriter serialises every row write behind a single mutex onto one
// encoding/csv.Writer, matching the "CSV writer serialises on a single
// thread" concurrency rule. Rows are flushed as soon as they are written,
// so a crashed run still leaves a usable matrix behind.
type MatrixWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

var matrixHeader = []string{
	"mutant_id", "class", "method", "line", "mutator",
	"result_transition", "exception_type_transition",
	"exception_msg_transition", "stacktrace_transition",
	"status", "num_tests_run",
}

// NewMatrixWriter opens (creating parent directories as needed) the
// full_mutation_matrix.csv file under dir and writes the header.
func NewMatrixWriter(dir string) (*MatrixWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, "full_mutation_matrix.csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(matrixHeader); err != nil {
		_ = f.Close()

		return nil, err
	}
	w.Flush()

	return &MatrixWriter{f: f, w: w}, nil
}

// WriteRow appends and flushes one mutation row.
func (mw *MatrixWriter) WriteRow(r MutationRow) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	row := []string{
		r.MutantID, r.Pkg, r.Method, itoa(r.Line), r.Operator.String(),
		r.Transitions.Result, r.Transitions.ExceptionType,
		r.Transitions.ExceptionMessage, r.Transitions.Stack,
		r.Status.String(), itoa(r.NumTests),
	}
	if err := mw.w.Write(row); err != nil {
		log.Errorf("failed to write mutation matrix row for %s: %v", r.MutantID, err)
	}
	mw.w.Flush()
}

// Close flushes and closes the underlying file.
func (mw *MatrixWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.w.Flush()

	return mw.f.Close()
}

// LineInfoWriter writes line_info.csv, mapping a baseline bit position to
// the (file, function, line) it corresponds to. The function column is
// written as the caller supplies it; the research command fills it with
// file:line.
type LineInfoWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewLineInfoWriter opens line_info.csv under dir.
func NewLineInfoWriter(dir string) (*LineInfoWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, "line_info.csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"bit_position", "file", "function", "line"})
	w.Flush()

	return &LineInfoWriter{f: f, w: w}, nil
}

// WriteLine appends one bit-position mapping.
func (lw *LineInfoWriter) WriteLine(bitPos int, file, fn string, line int) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if err := lw.w.Write([]string{itoa(bitPos), file, fn, itoa(line)}); err != nil {
		log.Errorf("failed to write line_info row: %v", err)
	}
	lw.w.Flush()
}

// Close flushes and closes the underlying file.
func (lw *LineInfoWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.w.Flush()

	return lw.f.Close()
}

// WriteBaselineResults writes baselineTestResults/<TCID>_test_results.json
// and the accompanying tcs_outcome.csv summary. lineBits supplies each
// test's line-coverage bit sequence; a missing entry yields an empty
// sequence of length zero.
func WriteBaselineResults(dir string, ctx *baseline.Context, lineBits map[string]string, now time.Time) error {
	sub := filepath.Join(dir, "baselineTestResults")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(sub, "tcs_outcome.csv"))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"tcid", "name", "passed"})

	for _, tc := range ctx.Tests() {
		doc := baselineTestJSON{
			TestInfo: testInfo{
				TestID:          tc.TCID,
				TestName:        tc.Name,
				Result:          resultString(tc.Passed),
				ExecutionTimeMS: tc.DurationMS,
			},
			Exception: exceptionInfo{
				Type:       tc.ExceptionType,
				Message:    tc.ExceptionMessage,
				StackTrace: tc.FilteredStack,
			},
			Coverage: coverageInfo{
				LineCoverageBitSequence: lineBits[tc.Name],
				BitSequenceLength:       len(lineBits[tc.Name]),
			},
			Metadata: newMetadata(now),
		}

		path := filepath.Join(sub, itoa(tc.TCID)+"_test_results.json")
		data, jerr := json.MarshalIndent(doc, "", "  ")
		if jerr != nil {
			log.Errorf("failed to marshal baseline result for %s: %v", tc.Name, jerr)

			continue
		}
		if werr := os.WriteFile(path, data, 0o600); werr != nil {
			log.Errorf("failed to write baseline result for %s: %v", tc.Name, werr)

			continue
		}
		_ = w.Write([]string{itoa(tc.TCID), tc.Name, boolStr(tc.Passed)})
	}
	w.Flush()

	return w.Error()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func boolStr(b bool) string {
	return strconv.FormatBool(b)
}
