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

package mutator

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"
)

// StmtMutant mutates a whole statement rather than a token or an
// expression: it rewrites a simple assignment `x = <expr>` into the
// increment `x++` (UOI_3) or the decrement `x--` (UOI_4). The type of x is
// not checked at discovery time; a non-numeric target fails to compile in
// the executor and surfaces as a non-viable mutant.
//
// StmtMutant shares the per-file lock cache with TokenMutant, since all
// three mutant kinds write the same shared AST back to disk.
type StmtMutant struct {
	pkg        string
	fs         *token.FileSet
	file       *ast.File
	block      *ast.BlockStmt
	idx        int
	stmt       *ast.AssignStmt
	workDir    string
	origFile   []byte
	status     Status
	mutantType Type
}

// NewStmtMutant initialises a StmtMutant for the statement at block.List[idx].
func NewStmtMutant(pkg string, set *token.FileSet, file *ast.File, block *ast.BlockStmt, idx int, stmt *ast.AssignStmt) *StmtMutant {
	return &StmtMutant{
		pkg:   pkg,
		fs:    set,
		file:  file,
		block: block,
		idx:   idx,
		stmt:  stmt,
	}
}

// EligibleStmt reports whether stmt is a target for statement-level
// unary insertion: a plain single assignment to an identifier.
func EligibleStmt(stmt ast.Stmt) (*ast.AssignStmt, bool) {
	as, ok := stmt.(*ast.AssignStmt)
	if !ok {
		return nil, false
	}
	if as.Tok != token.ASSIGN || len(as.Lhs) != 1 || len(as.Rhs) != 1 {
		return nil, false
	}
	ident, ok := as.Lhs[0].(*ast.Ident)
	if !ok || ident.Name == "_" {
		return nil, false
	}

	return as, true
}

// Type returns the Type of the mutant.
func (m *StmtMutant) Type() Type {
	return m.mutantType
}

// SetType sets the Type of the mutant.
func (m *StmtMutant) SetType(mt Type) {
	m.mutantType = mt
}

// Status returns the Status of the mutant.
func (m *StmtMutant) Status() Status {
	return m.status
}

// SetStatus sets the Status of the mutant.
func (m *StmtMutant) SetStatus(s Status) {
	m.status = s
}

// Position returns the token.Position where the StmtMutant resides.
func (m *StmtMutant) Position() token.Position {
	return m.fs.Position(m.stmt.Pos())
}

// Pos returns the token.Pos where the StmtMutant resides.
func (m *StmtMutant) Pos() token.Pos {
	return m.stmt.Pos()
}

// Pkg returns the package name to which the mutant belongs.
func (m *StmtMutant) Pkg() string {
	return m.pkg
}

// ID returns the stable Identifier of this mutation point.
func (m *StmtMutant) ID() Identifier {
	pos := m.Position()

	return Identifier{
		Package:        m.pkg,
		File:           pos.Filename,
		Func:           funcNameAt(m.file, m.Pos()),
		Line:           pos.Line,
		CandidateIndex: pos.Column,
		Operator:       m.mutantType,
		Description:    m.Description(),
	}
}

// Description returns a short human-readable description of the mutation.
func (m *StmtMutant) Description() string {
	return fmt.Sprintf("%s at %s", m.mutantType, m.Position())
}

// Workdir returns the current working dir in which the Mutator will apply
// its mutations.
func (m *StmtMutant) Workdir() string {
	return m.workDir
}

// SetWorkdir sets the base path on which to Apply and Rollback operations.
func (m *StmtMutant) SetWorkdir(path string) {
	m.workDir = path
}

// Apply swaps the assignment for its increment/decrement form, writes the
// mutated file, and immediately restores the shared AST, mirroring
// TokenMutant's atomicity approach.
func (m *StmtMutant) Apply() error {
	fileLock(m.Position().Filename).Lock()
	defer fileLock(m.Position().Filename).Unlock()

	filename := filepath.Join(m.workDir, m.Position().Filename)
	var err error
	//nolint:gosec // filename is internally constructed, not user input
	m.origFile, err = os.ReadFile(filename)
	if err != nil {
		return err
	}

	tok := token.INC
	if m.mutantType == UOI4 {
		tok = token.DEC
	}
	m.block.List[m.idx] = &ast.IncDecStmt{
		X:      m.stmt.Lhs[0],
		TokPos: m.stmt.Pos(),
		Tok:    tok,
	}

	err = m.writeMutatedFile(filename)

	// Restore the AST regardless of the write outcome.
	m.block.List[m.idx] = m.stmt
	if err != nil {
		return err
	}

	return nil
}

func (m *StmtMutant) writeMutatedFile(filename string) error {
	w := &bytes.Buffer{}
	if err := printer.Fprint(w, m.fs, m.file); err != nil {
		return err
	}

	if err := os.RemoveAll(filename); err != nil {
		return err
	}

	return os.WriteFile(filename, w.Bytes(), 0600)
}

// Rollback puts back the original file after the test and cleans up the
// StmtMutant to free memory.
func (m *StmtMutant) Rollback() error {
	defer func() { m.origFile = nil }()
	filename := filepath.Join(m.workDir, m.Position().Filename)

	return os.WriteFile(filename, m.origFile, 0600)
}
