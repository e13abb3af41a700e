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

package coverage

import (
	"go/token"
	"sort"
)

// Database is the per-test refinement of a Profile: it knows, for every
// test, which blocks that test alone exercises, and which tests are failing
// at baseline. It backs covering-test attachment during discovery, the
// failing/passing line partition used by fault-localisation filtering, and
// the line_info bit-position index.
type Database struct {
	byTest  map[string]Profile
	failing map[string]bool
}

// NewDatabase builds a Database from one Profile per test name and the set
// of baseline-failing test names.
func NewDatabase(byTest map[string]Profile, failingTests []string) *Database {
	failing := make(map[string]bool, len(failingTests))
	for _, name := range failingTests {
		failing[name] = true
	}

	return &Database{byTest: byTest, failing: failing}
}

// Tests returns every known test name in lexicographic order.
func (db *Database) Tests() []string {
	out := make([]string, 0, len(db.byTest))
	for name := range db.byTest {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// FailingTests returns the baseline-failing test names in lexicographic
// order.
func (db *Database) FailingTests() []string {
	out := make([]string, 0, len(db.failing))
	for name := range db.failing {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// IsFailing reports whether a test fails at baseline.
func (db *Database) IsFailing(test string) bool {
	return db.failing[test]
}

// CoveringTests returns, in lexicographic order, the tests whose coverage
// includes pos.
func (db *Database) CoveringTests(pos token.Position) []string {
	var out []string
	for name, profile := range db.byTest {
		if profile.IsCovered(pos) {
			out = append(out, name)
		}
	}
	sort.Strings(out)

	return out
}

// LineSet maps file name to the set of covered lines in that file.
type LineSet map[string]map[int]bool

func (ls LineSet) add(file string, from, to int) {
	lines, ok := ls[file]
	if !ok {
		lines = make(map[int]bool)
		ls[file] = lines
	}
	for l := from; l <= to; l++ {
		lines[l] = true
	}
}

// Has reports whether file:line is in the set.
func (ls LineSet) Has(file string, line int) bool {
	return ls[file][line]
}

// FailingLines returns every line exercised by at least one failing test.
func (db *Database) FailingLines() LineSet {
	return db.lines(true)
}

// PassingLines returns every line exercised by at least one passing test.
func (db *Database) PassingLines() LineSet {
	return db.lines(false)
}

func (db *Database) lines(failing bool) LineSet {
	out := make(LineSet)
	for name, profile := range db.byTest {
		if db.failing[name] != failing {
			continue
		}
		for file, blocks := range profile {
			for _, b := range blocks {
				out.add(file, b.StartLine, b.EndLine)
			}
		}
	}

	return out
}

// LineRef addresses one bit position of a line-coverage bit sequence.
type LineRef struct {
	File string
	Line int
}

// LineIndex returns the deterministic bit-position ordering of every line
// any test covers: files sorted lexicographically, lines ascending within a
// file. Bit position i of a line-coverage sequence refers to LineIndex()[i].
func (db *Database) LineIndex() []LineRef {
	merged := make(LineSet)
	for _, profile := range db.byTest {
		for file, blocks := range profile {
			for _, b := range blocks {
				merged.add(file, b.StartLine, b.EndLine)
			}
		}
	}

	files := make([]string, 0, len(merged))
	for file := range merged {
		files = append(files, file)
	}
	sort.Strings(files)

	var out []LineRef
	for _, file := range files {
		lines := make([]int, 0, len(merged[file]))
		for l := range merged[file] {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		for _, l := range lines {
			out = append(out, LineRef{File: file, Line: l})
		}
	}

	return out
}

// LineBits renders a test's line coverage as a '0'/'1' sequence over the
// given index.
func (db *Database) LineBits(test string, index []LineRef) string {
	profile, ok := db.byTest[test]
	if !ok {
		return zeros(len(index))
	}

	covered := make(LineSet)
	for file, blocks := range profile {
		for _, b := range blocks {
			covered.add(file, b.StartLine, b.EndLine)
		}
	}

	bits := make([]byte, len(index))
	for i, ref := range index {
		bits[i] = '0'
		if covered.Has(ref.File, ref.Line) {
			bits[i] = '1'
		}
	}

	return string(bits)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}

	return string(b)
}
