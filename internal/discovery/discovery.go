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

// Package discovery runs the filter pipeline over freshly-found mutants and
// groups the survivors into AnalysisUnits for the coordinator.
package discovery

import (
	"strconv"

	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// MutationDetails is the discovery-time record a Filter inspects; it
// carries just enough to decide inclusion without needing the live
// mutator.Mutator (whose AST is shared and not safe to retain).
type MutationDetails struct {
	ID       string
	Pkg      string
	File     string
	Func     string
	Line     int
	Col      int
	Type     mutator.Type
	Covering []string

	// TrueCovering is the coverage-derived covering set, kept for
	// reporting when Covering has been widened to the whole suite.
	TrueCovering []string

	// LiteralValue is the textual value of the literal operand a mutation
	// acts on, when applicable (e.g. "1" for a CRCR candidate on the
	// literal 1). Left empty when the mutation point has no single
	// literal operand. EquivalentMutantFilter uses it to spot mutations
	// that are syntactically distinct but semantically identical to the
	// original source.
	LiteralValue string

	// OperatorToken is the textual form of the operator at the mutation
	// point ("^", "<", "+", ...), when the mutation acts on an operator.
	OperatorToken string
}

// Filter decides whether a discovered mutation point survives into the
// scheduled set, and may rewrite it (e.g. to prune its covering-test list).
type Filter interface {
	// IncludeInPrescan reports whether this Filter needs to see every
	// candidate before any are accepted, as opposed to deciding each one
	// independently as it is discovered.
	IncludeInPrescan() bool
	Accept(MutationDetails) bool
	Rewrite(MutationDetails) MutationDetails
}

// RunPipeline applies every Filter, in order, to the candidate set and
// returns the survivors.
func RunPipeline(candidates []MutationDetails, filters ...Filter) []MutationDetails {
	out := candidates
	for _, f := range filters {
		next := make([]MutationDetails, 0, len(out))
		for _, c := range out {
			if !f.Accept(c) {
				continue
			}
			next = append(next, f.Rewrite(c))
		}
		out = next
	}

	return out
}

// AnalysisUnit is a package-scoped batch of mutants assigned to a single
// minion session.
type AnalysisUnit struct {
	Package    string
	Candidates []MutationDetails
}

// GroupByPackage partitions the survivors into one AnalysisUnit per
// package, preserving discovery order within each package.
func GroupByPackage(candidates []MutationDetails) []AnalysisUnit {
	order := make([]string, 0)
	byPkg := make(map[string][]MutationDetails)
	for _, c := range candidates {
		if _, ok := byPkg[c.Pkg]; !ok {
			order = append(order, c.Pkg)
		}
		byPkg[c.Pkg] = append(byPkg[c.Pkg], c)
	}

	units := make([]AnalysisUnit, 0, len(order))
	for _, pkg := range order {
		units = append(units, AnalysisUnit{Package: pkg, Candidates: byPkg[pkg]})
	}

	return units
}

// BatchSize implements the research-mode batch-sizing formula: the number
// of mutants handed to a single minion invocation shrinks as the covering
// test-class count for the unit grows, so that a misbehaving batch doesn't
// tie up a minion for too long.
func BatchSize(testClassCount int) int {
	switch {
	case testClassCount > 1000:
		return 5
	case testClassCount > 500:
		return 10
	case testClassCount > 100:
		return 25
	default:
		return 50
	}
}

// AssignIDs overwrites each candidate's ID with a dense, zero-based integer
// assigned in discovery order, rendered as a decimal string. It runs after
// the filter pipeline so ids stay contiguous regardless of how many
// candidates were dropped.
func AssignIDs(candidates []MutationDetails) []MutationDetails {
	out := make([]MutationDetails, len(candidates))
	for i, c := range candidates {
		c.ID = strconv.Itoa(i)
		out[i] = c
	}

	return out
}

// Batches splits an AnalysisUnit's candidates into BatchSize-sized chunks.
func Batches(unit AnalysisUnit, testClassCount int) [][]MutationDetails {
	size := BatchSize(testClassCount)
	var out [][]MutationDetails
	for i := 0; i < len(unit.Candidates); i += size {
		end := i + size
		if end > len(unit.Candidates) {
			end = len(unit.Candidates)
		}
		out = append(out, unit.Candidates[i:end])
	}

	return out
}
