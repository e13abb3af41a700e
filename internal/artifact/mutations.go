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

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

// MutationResult is the full per-mutant, per-test detail written once to
// disk and then released from memory.
type MutationResult struct {
	MutantID    string
	Description string
	Pkg         string
	Operator    mutator.Type
	Status      mutator.Status
	Details     []protocol.DetailedResult
}

// Summary is the compact record MutationResultWriter keeps in memory after
// Release, so the run can still report totals without retaining every
// DetailedResult for every mutant.
type Summary struct {
	MutantID string
	Status   mutator.Status
	NumKilling int
	NumTests   int
}

// MutationResultWriter writes mutationResults/<id>_mutation_test_results.json
// and the mutation_summary.csv rollup, releasing per-test detail from
// memory once each mutant's JSON has been written.
type MutationResultWriter struct {
	mu       sync.Mutex
	dir      string
	csv      *csv.Writer
	f        *os.File
	summary  map[string]Summary
}

// NewMutationResultWriter opens mutationResults/mutation_summary.csv under dir.
func NewMutationResultWriter(dir string) (*MutationResultWriter, error) {
	sub := filepath.Join(dir, "mutationResults")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(sub, "mutation_summary.csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"mutation_id", "description", "num_tests", "status"})
	w.Flush()

	return &MutationResultWriter{dir: sub, csv: w, f: f, summary: make(map[string]Summary)}, nil
}

// Write persists a MutationResult's full detail to its own JSON file in the
// fixed-field layout, then records a compact Summary; callers Release the
// detail afterwards so memory use stays flat across a long run.
func (w *MutationResultWriter) Write(r MutationResult, now time.Time) {
	passed := 0
	tests := make([]mutationTestJSON, 0, len(r.Details))
	for _, d := range r.Details {
		if d.Passed {
			passed++
		}
		tests = append(tests, mutationTestJSON{
			TestName:        d.TestName,
			Result:          resultString(d.Passed),
			ExceptionType:   d.ExceptionType,
			ExceptionMsg:    d.ExceptionMessage,
			StackTrace:      d.FilteredStack,
			ExecutionTimeMS: d.DurationMS,
		})
	}

	rate := 0.0
	if len(r.Details) > 0 {
		rate = float64(passed) / float64(len(r.Details))
	}
	doc := mutationResultJSON{
		MutationInfo: mutationInfo{
			MutationID:       r.MutantID,
			Description:      r.Description,
			NumTestsExecuted: len(r.Details),
		},
		TestResults: tests,
		Summary: mutationSummary{
			Total:    len(r.Details),
			Passed:   passed,
			Failed:   len(r.Details) - passed,
			PassRate: rate,
		},
		Metadata: newMetadata(now),
	}

	path := filepath.Join(w.dir, r.MutantID+"_mutation_test_results.json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Errorf("failed to marshal mutation result %s: %v", r.MutantID, err)
	} else if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Errorf("failed to write mutation result %s: %v", r.MutantID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	s := Summary{MutantID: r.MutantID, Status: r.Status, NumKilling: len(r.Details) - passed, NumTests: len(r.Details)}
	w.summary[r.MutantID] = s
	if err := w.csv.Write([]string{r.MutantID, r.Description, itoa(len(r.Details)), r.Status.String()}); err != nil {
		log.Errorf("failed to write mutation summary row for %s: %v", r.MutantID, err)
	}
	w.csv.Flush()
}

// Release is called once a mutant's JSON has been written. Write retains no
// DetailedResult, so there is no detail left to drop; the mutant's compact
// Summary stays in memory.
func (w *MutationResultWriter) Release(_ string) {}

// Close flushes and closes the summary CSV.
func (w *MutationResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()

	return w.f.Close()
}

// ClassDumper writes the mutated and original source of a mutant to the
// report directory when the full mutation matrix is requested: the
// source-level analogue of dumping the mutated/original class bytes.
type ClassDumper struct {
	dir string
}

// NewClassDumper returns a ClassDumper rooted at dir.
func NewClassDumper(dir string) *ClassDumper {
	return &ClassDumper{dir: dir}
}

// WriteMutant writes the mutated source of pkg/fn at line/candidateIndex,
// plus a .info sidecar describing the mutation.
func (c *ClassDumper) WriteMutant(pkg, fn string, line, candidateIndex int, op mutator.Type, info string, source []byte) error {
	sub := filepath.Join(c.dir, "mutants", filepath.FromSlash(pkg), fn)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return err
	}
	name := "Line_" + itoa(line) + "_Index_" + itoa(candidateIndex) + "_" + op.String()
	if err := os.WriteFile(filepath.Join(sub, name+".go"), source, 0o600); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(sub, name+".info"), []byte(info+"\n"), 0o600)
}

// WriteOriginal writes the unmutated source of pkg/fn, once per function,
// with a .info sidecar naming its origin.
func (c *ClassDumper) WriteOriginal(pkg, fn, info string, source []byte) error {
	sub := filepath.Join(c.dir, "original", filepath.FromSlash(pkg))
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return err
	}
	name := "ORIGINAL_" + fn
	if err := os.WriteFile(filepath.Join(sub, name+".go"), source, 0o600); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(sub, name+".info"), []byte(info+"\n"), 0o600)
}
