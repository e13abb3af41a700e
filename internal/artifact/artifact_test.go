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

package artifact_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-gremlins/gremlins-research/internal/artifact"
	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

func TestMatrixLayout(t *testing.T) {
	dir := t.TempDir()
	mw, err := artifact.NewMatrixWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	mw.WriteRow(artifact.MutationRow{
		MutantID: "0",
		Pkg:      "example.com/calc",
		Method:   "Add",
		Line:     12,
		Operator: mutator.AOR1,
		Transitions: baseline.TransitionBits{
			Result:           "10",
			ExceptionType:    "10",
			ExceptionMessage: "00",
			Stack:            "10",
		},
		Status:   mutator.Killed,
		NumTests: 2,
	})
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "full_mutation_matrix.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	wantHeader := []string{
		"mutant_id", "class", "method", "line", "mutator",
		"result_transition", "exception_type_transition",
		"exception_msg_transition", "stacktrace_transition",
		"status", "num_tests_run",
	}
	if !cmp.Equal(rows[0], wantHeader) {
		t.Error(cmp.Diff(rows[0], wantHeader))
	}

	wantRow := []string{
		"0", "example.com/calc", "Add", "12", "AOR_1",
		"10", "10", "00", "10",
		"KILLED", "2",
	}
	if !cmp.Equal(rows[1], wantRow) {
		t.Error(cmp.Diff(rows[1], wantRow))
	}
}

func TestMatrixBitLengthsMatchBaseline(t *testing.T) {
	ctx := baseline.NewContext([]baseline.TestCaseMetadata{
		{Name: "t0", Passed: true},
		{Name: "t1", Passed: true},
		{Name: "t2", Passed: false},
	})
	bits := baseline.Transitions(ctx, map[string]baseline.DetailedResult{
		"t0": {Passed: false},
	})

	for _, seq := range []string{bits.Result, bits.ExceptionType, bits.ExceptionMessage, bits.Stack} {
		if len(seq) != ctx.Len() {
			t.Errorf("sequence %q has length %d, want %d", seq, len(seq), ctx.Len())
		}
	}
}

func TestWriteBaselineResults(t *testing.T) {
	dir := t.TempDir()
	ctx := baseline.NewContext([]baseline.TestCaseMetadata{
		{Name: "TestB", Passed: true, DurationMS: 7},
		{Name: "TestA", Passed: false, ExceptionType: "panic", ExceptionMessage: "boom"},
	})
	lineBits := map[string]string{"TestA": "110", "TestB": "011"}

	err := artifact.WriteBaselineResults(dir, ctx, lineBits, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatal(err)
	}

	// TestA sorts first, so its TCID is 0.
	data, err := os.ReadFile(filepath.Join(dir, "baselineTestResults", "0_test_results.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	ti, _ := doc["test_info"].(map[string]any)
	if ti["test_name"] != "TestA" || ti["result"] != "FAIL" {
		t.Errorf("test_info: %+v", ti)
	}
	ex, _ := doc["exception"].(map[string]any)
	if ex["type"] != "panic" || ex["message"] != "boom" {
		t.Errorf("exception: %+v", ex)
	}
	cov, _ := doc["coverage"].(map[string]any)
	if cov["line_coverage_bit_sequence"] != "110" || cov["bit_sequence_length"] != float64(3) {
		t.Errorf("coverage: %+v", cov)
	}
	md, _ := doc["metadata"].(map[string]any)
	if md["format_version"] != "1.0" {
		t.Errorf("metadata: %+v", md)
	}

	outcome, err := os.ReadFile(filepath.Join(dir, "baselineTestResults", "tcs_outcome.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(outcome)), "\n")
	if len(lines) != 3 {
		t.Fatalf("tcs_outcome.csv: expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[1] != "0,TestA,false" || lines[2] != "1,TestB,true" {
		t.Errorf("tcs_outcome rows: %v", lines[1:])
	}
}

func TestMutationResultWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := artifact.NewMutationResultWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	w.Write(artifact.MutationResult{
		MutantID:    "4",
		Description: "AOR_1 at calc.go:12:9",
		Pkg:         "example.com/calc",
		Operator:    mutator.AOR1,
		Status:      mutator.Killed,
		Details: []protocol.DetailedResult{
			{TestName: "TestAdd", Passed: false, ExceptionType: "test.Failure", DurationMS: 3},
			{TestName: "TestZero", Passed: true, DurationMS: 1},
		},
	}, time.Unix(1700000000, 0))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "mutationResults", "4_mutation_test_results.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	mi, _ := doc["mutation_info"].(map[string]any)
	if mi["mutation_id"] != "4" || mi["num_tests_executed"] != float64(2) {
		t.Errorf("mutation_info: %+v", mi)
	}
	sum, _ := doc["summary"].(map[string]any)
	if sum["total"] != float64(2) || sum["passed"] != float64(1) || sum["failed"] != float64(1) {
		t.Errorf("summary: %+v", sum)
	}
	if sum["pass_rate"] != float64(0.5) {
		t.Errorf("pass_rate: %v", sum["pass_rate"])
	}

	summary, err := os.ReadFile(filepath.Join(dir, "mutationResults", "mutation_summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	if lines[0] != "mutation_id,description,num_tests,status" {
		t.Errorf("summary header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "4,") || !strings.HasSuffix(lines[1], "KILLED") {
		t.Errorf("summary row: %s", lines[1])
	}
}

func TestClassDumperWritesSidecars(t *testing.T) {
	dir := t.TempDir()
	d := artifact.NewClassDumper(dir)

	err := d.WriteMutant("example.com/calc", "calc", 12, 9, mutator.ROR5, "ROR_5 at calc.go:12:9", []byte("package calc\n"))
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "mutants", "example.com", "calc", "calc", "Line_12_Index_9_ROR_5")
	if _, err := os.Stat(base + ".go"); err != nil {
		t.Errorf("mutated source missing: %v", err)
	}
	info, err := os.ReadFile(base + ".info")
	if err != nil {
		t.Fatalf("info sidecar missing: %v", err)
	}
	if !strings.Contains(string(info), "ROR_5") {
		t.Errorf("info content: %s", info)
	}

	err = d.WriteOriginal("example.com/calc", "calc", "original of calc.go", []byte("package calc\n"))
	if err != nil {
		t.Fatal(err)
	}
	orig := filepath.Join(dir, "original", "example.com", "calc", "ORIGINAL_calc")
	if _, err := os.Stat(orig + ".go"); err != nil {
		t.Errorf("original source missing: %v", err)
	}
	if _, err := os.Stat(orig + ".info"); err != nil {
		t.Errorf("original info missing: %v", err)
	}
}

func TestLineInfoWriter(t *testing.T) {
	dir := t.TempDir()
	lw, err := artifact.NewLineInfoWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	lw.WriteLine(0, "calc.go", "Add#add:12", 12)
	lw.WriteLine(1, "calc.go", "Add#add:13", 13)
	if err := lw.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "line_info.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(lines))
	}
	if lines[1] != "0,calc.go,Add#add:12,12" {
		t.Errorf("row: %s", lines[1])
	}
}
