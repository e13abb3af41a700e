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
	"fmt"

	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// InlineConsolidationFilter drops mutants whose (Pkg, File, Line, Col,
// Type) identity has already been seen, the discovery-time equivalent of
// the mutator package's per-file mutation lock: multiple AST nodes folding
// onto the same reported position only need to be tested once.
type InlineConsolidationFilter struct {
	seen map[string]bool
}

// NewInlineConsolidationFilter builds an InlineConsolidationFilter.
func NewInlineConsolidationFilter() *InlineConsolidationFilter {
	return &InlineConsolidationFilter{seen: make(map[string]bool)}
}

func (f *InlineConsolidationFilter) IncludeInPrescan() bool { return false }

func (f *InlineConsolidationFilter) Accept(m MutationDetails) bool {
	key := identityKey(m)
	if f.seen[key] {
		return false
	}
	f.seen[key] = true

	return true
}

func (f *InlineConsolidationFilter) Rewrite(m MutationDetails) MutationDetails { return m }

func identityKey(m MutationDetails) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", m.Pkg, m.File, m.Line, m.Col, m.Type)
}

// FailingTestsOnlyFilter keeps only mutants whose reported line is among
// the lines exercised by at least one already-failing baseline test,
// for fault-localisation runs.
type FailingTestsOnlyFilter struct {
	FailingLines map[string]map[int]bool // file -> line -> true
}

func (f *FailingTestsOnlyFilter) IncludeInPrescan() bool { return false }

func (f *FailingTestsOnlyFilter) Accept(m MutationDetails) bool {
	lines, ok := f.FailingLines[m.File]
	if !ok {
		return false
	}

	return lines[m.Line]
}

func (f *FailingTestsOnlyFilter) Rewrite(m MutationDetails) MutationDetails { return m }

// EquivalentMutantFilter drops mutants that are conservatively known to be
// semantically identical to the original source, so an executor never
// wastes a run on a mutation that cannot change behavior. It only rejects
// candidates it is certain about; anything it cannot prove equivalent is
// passed through for the executor to decide.
type EquivalentMutantFilter struct{}

func (EquivalentMutantFilter) IncludeInPrescan() bool { return false }

func (EquivalentMutantFilter) Accept(m MutationDetails) bool {
	switch m.Type {
	case mutator.CRCR1:
		// CRCR_1 replaces a numeric literal with 1; a literal already
		// equal to 1 produces an identical program.
		return m.LiteralValue != "1"
	case mutator.CRCR2:
		// CRCR_2 replaces a numeric literal with 0.
		return m.LiteralValue != "0"
	case mutator.OBBN1:
		// The reversal table maps ^ onto itself.
		return m.OperatorToken != "^"
	default:
		return true
	}
}

func (EquivalentMutantFilter) Rewrite(m MutationDetails) MutationDetails { return m }

// HistoryFilter skips mutants whose ID already has a terminal verdict
// (Killed/Survived/NonViable) recorded from a previous run.
type HistoryFilter struct {
	TerminalIDs map[string]bool
}

func (f *HistoryFilter) IncludeInPrescan() bool { return false }

func (f *HistoryFilter) Accept(m MutationDetails) bool {
	return !f.TerminalIDs[m.ID]
}

func (f *HistoryFilter) Rewrite(m MutationDetails) MutationDetails { return m }
