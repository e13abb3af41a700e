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

// ExprMutator is a Mutator for expression-level mutations.
//
// Unlike TokenMutant which swaps tokens, ExprMutator performs AST
// reconstruction to create new expression structures. This enables
// mutations like wrapping (!x → !!x) that cannot be done by token swapping.
//
// ExprMutator uses the same file locking mechanism as TokenMutant to
// ensure safe concurrent mutations.
type ExprMutator struct {
	pkg        string
	fs         *token.FileSet
	file       *ast.File
	exprNode   *NodeExpr
	workDir    string
	origFile   []byte
	status     Status
	mutantType Type

	// origExpr stores a reference to the original expression for AST restoration
	origExpr ast.Expr

	// parentNode and replaceFunc handle the mutation application
	parentNode  ast.Node
	replaceFunc func(newExpr ast.Expr) error
}

// NewExprMutant initializes an ExprMutator with parent tracking.
func NewExprMutant(
	pkg string,
	set *token.FileSet,
	file *ast.File,
	node *NodeExpr,
	parentNode ast.Node,
	replaceFunc func(newExpr ast.Expr) error,
) *ExprMutator {
	return &ExprMutator{
		pkg:         pkg,
		fs:          set,
		file:        file,
		exprNode:    node,
		origExpr:    node.Expr(),
		parentNode:  parentNode,
		replaceFunc: replaceFunc,
	}
}

// Type returns the Type of the mutant.
func (m *ExprMutator) Type() Type {
	return m.mutantType
}

// SetType sets the Type of the mutant.
func (m *ExprMutator) SetType(mt Type) {
	m.mutantType = mt
}

// Status returns the Status of the mutant.
func (m *ExprMutator) Status() Status {
	return m.status
}

// SetStatus sets the Status of the mutant.
func (m *ExprMutator) SetStatus(s Status) {
	m.status = s
}

// Position returns the token.Position where the ExprMutator resides.
func (m *ExprMutator) Position() token.Position {
	return m.fs.Position(m.exprNode.Pos())
}

// Pos returns the token.Pos where the ExprMutator resides.
func (m *ExprMutator) Pos() token.Pos {
	return m.exprNode.Pos()
}

// Pkg returns the package name to which the mutant belongs.
func (m *ExprMutator) Pkg() string {
	return m.pkg
}

// ID returns the stable Identifier of this mutation point.
func (m *ExprMutator) ID() Identifier {
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
func (m *ExprMutator) Description() string {
	return fmt.Sprintf("%s at %s", m.mutantType, m.Position())
}

// LiteralValue returns the textual value of the literal this mutation acts
// on, or the empty string when the target is not a literal. The discovery
// filters use it to drop constant replacements that reproduce the original
// program.
func (m *ExprMutator) LiteralValue() string {
	if lit, ok := m.origExpr.(*ast.BasicLit); ok {
		return lit.Value
	}

	return ""
}

// Apply performs the expression mutation by reconstructing the AST.
//
// The process:
// 1. Acquire file lock (prevents concurrent mutations on same file)
// 2. Read original file content
// 3. Apply mutation by creating new expression in AST
// 4. Write mutated file
// 5. Restore original expression in AST
// 6. Release file lock
//
// Like TokenMutant, the AST is immediately restored after file writing
// to keep the shared AST clean for subsequent mutations.
func (m *ExprMutator) Apply() error {
	fileLock(m.Position().Filename).Lock()
	defer fileLock(m.Position().Filename).Unlock()

	filename := filepath.Join(m.workDir, m.Position().Filename)

	var err error
	//nolint:gosec // filename is internally constructed, not user input
	m.origFile, err = os.ReadFile(filename)
	if err != nil {
		return err
	}

	// Get the mutated expression based on mutation type
	mutatedExpr, err := m.getMutatedExpr()
	if err != nil {
		return err
	}

	// Replace expression in AST
	if err = m.replaceFunc(mutatedExpr); err != nil {
		return err
	}

	// Write mutated file
	if err = m.writeMutatedFile(filename); err != nil {
		// Restore original on write failure
		_ = m.replaceFunc(m.origExpr)

		return err
	}

	// Restore AST immediately (file is already written with mutation)
	return m.replaceFunc(m.origExpr)
}

// getMutatedExpr creates the mutated expression based on the mutation type.
func (m *ExprMutator) getMutatedExpr() (ast.Expr, error) {
	//nolint:exhaustive // Only expression-level mutations handled here; token mutations use TokenMutant
	switch m.mutantType {
	case InvertLogicalNot:
		return m.invertLogicalNot()
	case CRCR1, CRCR2, CRCR3, CRCR4, CRCR5, CRCR6:
		return m.constantReplacement()
	case UOI1, UOI2:
		return m.unaryInsertion()
	case AOD1, AOD2, OBBN2, OBBN3:
		return m.operandDeletion()
	case ABS:
		return m.absoluteValue()
	default:
		return nil, fmt.Errorf("expression mutation type %s not yet implemented", m.mutantType)
	}
}

// invertLogicalNot transforms !x into !!x by wrapping the original UnaryExpr
// with another NOT operator.
func (m *ExprMutator) invertLogicalNot() (ast.Expr, error) {
	unaryExpr, ok := m.origExpr.(*ast.UnaryExpr)
	if !ok {
		return nil, fmt.Errorf("InvertLogicalNot requires UnaryExpr, got %T", m.origExpr)
	}

	if unaryExpr.Op != token.NOT {
		return nil, fmt.Errorf("InvertLogicalNot requires NOT operator, got %s", unaryExpr.Op)
	}

	// Create a new UnaryExpr that wraps the original !x expression
	// Result: !!x (NOT of NOT of x)
	mutated := &ast.UnaryExpr{
		OpPos: unaryExpr.OpPos, // Use same position as original
		Op:    token.NOT,       // Outer NOT operator
		X:     unaryExpr,       // The entire original !x expression
	}

	return mutated, nil
}

// constantReplacement implements the CRCR_1..CRCR_6 family: it replaces a
// numeric literal with one of the normative substitutes (1, 0, -1, -c,
// c+1, c-1), keeping the literal's token.INT/token.FLOAT kind.
func (m *ExprMutator) constantReplacement() (ast.Expr, error) {
	lit, ok := m.origExpr.(*ast.BasicLit)
	if !ok || (lit.Kind != token.INT && lit.Kind != token.FLOAT) {
		return nil, fmt.Errorf("CRCR requires a numeric BasicLit, got %T", m.origExpr)
	}

	// The replacement row is c -> 1, 0, -1, -c, c+1, c-1.
	switch m.mutantType {
	case CRCR1:
		return &ast.BasicLit{ValuePos: lit.ValuePos, Kind: lit.Kind, Value: "1"}, nil
	case CRCR2:
		return &ast.BasicLit{ValuePos: lit.ValuePos, Kind: lit.Kind, Value: "0"}, nil
	case CRCR3:
		return m.wrapUnaryMinus(&ast.BasicLit{ValuePos: lit.ValuePos, Kind: lit.Kind, Value: "1"}), nil
	case CRCR4:
		return m.wrapUnaryMinus(lit), nil
	case CRCR5:
		return m.wrapBinaryLiteral(lit, token.ADD), nil
	case CRCR6:
		return m.wrapBinaryLiteral(lit, token.SUB), nil
	default:
		return nil, fmt.Errorf("unsupported CRCR variant %s", m.mutantType)
	}
}

func (m *ExprMutator) wrapUnaryMinus(lit *ast.BasicLit) ast.Expr {
	return &ast.UnaryExpr{OpPos: lit.ValuePos, Op: token.SUB, X: lit}
}

func (m *ExprMutator) wrapBinaryLiteral(lit *ast.BasicLit, op token.Token) ast.Expr {
	one := &ast.BasicLit{ValuePos: lit.ValuePos, Kind: lit.Kind, Value: "1"}

	return &ast.BinaryExpr{X: lit, Op: op, Y: one, OpPos: lit.ValuePos}
}

// unaryInsertion implements UOI_1/UOI_2: it wraps the load of an addressable
// expression with `+ 1` or `- 1`, the Go equivalent of inserting an
// increment/decrement right after a value is read.
func (m *ExprMutator) unaryInsertion() (ast.Expr, error) {
	one := &ast.BasicLit{ValuePos: m.origExpr.Pos(), Kind: token.INT, Value: "1"}
	op := token.ADD
	if m.mutantType == UOI2 {
		op = token.SUB
	}

	return &ast.BinaryExpr{X: m.origExpr, Op: op, Y: one, OpPos: m.origExpr.Pos()}, nil
}

// operandDeletion implements AOD_1/AOD_2/OBBN_2/OBBN_3: it collapses a
// BinaryExpr into one of its two operands, the source-level analogue of
// deleting an operand from the bytecode operand stack.
func (m *ExprMutator) operandDeletion() (ast.Expr, error) {
	bin, ok := m.origExpr.(*ast.BinaryExpr)
	if !ok {
		return nil, fmt.Errorf("operand deletion requires a BinaryExpr, got %T", m.origExpr)
	}

	switch m.mutantType {
	case AOD1, OBBN2:
		return bin.X, nil
	case AOD2, OBBN3:
		return bin.Y, nil
	default:
		return nil, fmt.Errorf("unsupported operand-deletion variant %s", m.mutantType)
	}
}

// absoluteValue implements ABS: it negates a numeric load by wrapping it in
// a unary minus.
func (m *ExprMutator) absoluteValue() (ast.Expr, error) {
	return &ast.UnaryExpr{OpPos: m.origExpr.Pos(), Op: token.SUB, X: m.origExpr}, nil
}

func (m *ExprMutator) writeMutatedFile(filename string) error {
	w := &bytes.Buffer{}
	err := printer.Fprint(w, m.fs, m.file)
	if err != nil {
		return err
	}

	err = os.WriteFile(filename, w.Bytes(), 0600)
	if err != nil {
		return err
	}

	return nil
}

// Rollback puts back the original file after the test and cleans up the
// ExprMutator to free memory.
func (m *ExprMutator) Rollback() error {
	defer m.resetOrigFile()
	filename := filepath.Join(m.workDir, m.Position().Filename)

	return os.WriteFile(filename, m.origFile, 0600)
}

// SetWorkdir sets the base path on which to Apply and Rollback operations.
func (m *ExprMutator) SetWorkdir(path string) {
	m.workDir = path
}

// Workdir returns the current working dir in which the Mutator will apply its mutations.
func (m *ExprMutator) Workdir() string {
	return m.workDir
}

func (m *ExprMutator) resetOrigFile() {
	var zeroByte []byte
	m.origFile = zeroByte
}
