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

package discovery

import (
	"encoding/json"
	"os"

	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// HistoryEntry is one persisted verdict from a previous run, keyed by the
// reproducible mutation identifier digest (not the run-local dense id,
// which is only stable within a run).
type HistoryEntry struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// terminalStatuses are the verdicts worth skipping a re-run for: faults
// (timeouts, crashes) are not terminal and get retried on the next run.
var terminalStatuses = map[string]bool{
	mutator.Killed.String():    true,
	mutator.Survived.String():  true,
	mutator.NonViable.String(): true,
}

// LoadHistory reads a history file and returns a HistoryFilter that skips
// every mutant with a recorded terminal verdict.
func LoadHistory(path string) (*HistoryFilter, error) {
	//nolint:gosec // the history path is operator-configured
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		if terminalStatuses[e.Status] {
			ids[e.ID] = true
		}
	}

	return &HistoryFilter{TerminalIDs: ids}, nil
}

// SaveHistory writes the verdicts of a completed run for future
// HistoryFilter use.
func SaveHistory(path string, entries []HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
