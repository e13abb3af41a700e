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

package engine

import (
	"go/ast"
	"go/token"

	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// TokenMutantType is the mapping from each token.Token and all the
// mutator.Type that can be applied to it.
var TokenMutantType = map[token.Token][]mutator.Type{
	token.ADD:            {mutator.ArithmeticBase},
	token.ADD_ASSIGN:     {mutator.InvertAssignments, mutator.RemoveSelfAssignments},
	token.AND:            {mutator.InvertBitwise},
	token.AND_ASSIGN:     {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
	token.AND_NOT:        {mutator.InvertBitwise},
	token.AND_NOT_ASSIGN: {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
	token.BREAK:          {mutator.InvertLoopCtrl},
	token.CONTINUE:       {mutator.InvertLoopCtrl},
	token.DEC:            {mutator.IncrementDecrement},
	token.EQL:            {mutator.ConditionalsNegation},
	token.GEQ:            {mutator.ConditionalsBoundary, mutator.ConditionalsNegation},
	token.GTR:            {mutator.ConditionalsBoundary, mutator.ConditionalsNegation},
	token.INC:            {mutator.IncrementDecrement},
	token.LAND:           {mutator.InvertLogical},
	token.LEQ:            {mutator.ConditionalsBoundary, mutator.ConditionalsNegation},
	token.LOR:            {mutator.InvertLogical},
	token.LSS:            {mutator.ConditionalsBoundary, mutator.ConditionalsNegation},
	token.MUL:            {mutator.ArithmeticBase},
	token.MUL_ASSIGN:     {mutator.InvertAssignments, mutator.RemoveSelfAssignments},
	token.NEQ:            {mutator.ConditionalsNegation},
	token.OR:             {mutator.InvertBitwise},
	token.OR_ASSIGN:      {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
	token.QUO:            {mutator.ArithmeticBase},
	token.QUO_ASSIGN:     {mutator.InvertAssignments, mutator.RemoveSelfAssignments},
	token.REM:            {mutator.ArithmeticBase},
	token.REM_ASSIGN:     {mutator.InvertAssignments, mutator.RemoveSelfAssignments},
	token.SHL:            {mutator.InvertBitwise},
	token.SHL_ASSIGN:     {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
	token.SHR:            {mutator.InvertBitwise},
	token.SHR_ASSIGN:     {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
	token.SUB:            {mutator.InvertNegatives, mutator.ArithmeticBase},
	token.SUB_ASSIGN:     {mutator.InvertAssignments, mutator.RemoveSelfAssignments},
	token.XOR:            {mutator.InvertBitwise},
	token.XOR_ASSIGN:     {mutator.RemoveSelfAssignments, mutator.InvertBitwiseAssignments},
}

// catalogTokenMutantType mirrors TokenMutantType but for the named-catalog
// families: an arithmetic token yields every AOR variant, a relational
// token every ROR variant, and a bitwise token the OBBN reversal. Each
// variant picks a different replacement from the same row of the
// replacement table, so all of them are distinct candidates on one site.
var catalogTokenMutantType = map[token.Token][]mutator.Type{
	token.ADD: {mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4},
	token.SUB: {mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4},
	token.MUL: {mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4},
	token.QUO: {mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4},
	token.REM: {mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4},
	token.LSS: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.LEQ: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.GTR: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.GEQ: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.EQL: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.NEQ: {mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5},
	token.AND: {mutator.OBBN1},
	token.OR:  {mutator.OBBN1},
	token.XOR: {mutator.OBBN1},
}

// GetMutantTypesForToken returns the classical mutator.Type family list
// applicable to tok, disambiguated by the ast.Node it appears on: a token
// shared between a unary and a binary construct (like SUB) only yields the
// family meaningful in that specific syntactic position.
func GetMutantTypesForToken(tok token.Token, node ast.Node) []mutator.Type {
	types, ok := TokenMutantType[tok]
	if !ok {
		return nil
	}

	switch node.(type) {
	case *ast.UnaryExpr:
		return filterTypes(types, mutator.InvertNegatives)
	case *ast.BinaryExpr:
		return excludeTypes(types, mutator.InvertNegatives)
	default:
		return types
	}
}

func filterTypes(types []mutator.Type, only mutator.Type) []mutator.Type {
	for _, t := range types {
		if t == only {
			return []mutator.Type{t}
		}
	}

	return nil
}

func excludeTypes(types []mutator.Type, excl mutator.Type) []mutator.Type {
	var out []mutator.Type
	for _, t := range types {
		if t != excl {
			out = append(out, t)
		}
	}

	return out
}

// GetCatalogMutantTypesForToken returns the named-catalog mutator.Type list
// applicable to tok in a binary expression, or nil if tok has no catalog
// entry. Unlike GetMutantTypesForToken it is purely binary-expression
// oriented: AOR/ROR/OBBN never apply to unary operators.
func GetCatalogMutantTypesForToken(tok token.Token, node ast.Node) []mutator.Type {
	if _, isBinary := node.(*ast.BinaryExpr); !isBinary {
		return nil
	}

	return catalogTokenMutantType[tok]
}

// GetExprMutantTypes returns the mutator.Type family list applicable to an
// AST-reconstruction candidate expression found by NewExprNode.
func GetExprMutantTypes(expr ast.Expr) []mutator.Type {
	switch e := expr.(type) {
	case *ast.UnaryExpr:
		if e.Op == token.NOT {
			return []mutator.Type{mutator.InvertLogicalNot}
		}

		return nil
	case *ast.BasicLit:
		if e.Kind == token.INT || e.Kind == token.FLOAT {
			return []mutator.Type{
				mutator.CRCR1, mutator.CRCR2, mutator.CRCR3,
				mutator.CRCR4, mutator.CRCR5, mutator.CRCR6,
			}
		}

		return nil
	case *ast.Ident:
		return []mutator.Type{mutator.UOI1, mutator.UOI2, mutator.ABS}
	case *ast.BinaryExpr:
		switch e.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
			return []mutator.Type{mutator.AOD1, mutator.AOD2}
		case token.AND, token.OR, token.XOR:
			return []mutator.Type{mutator.OBBN2, mutator.OBBN3}
		default:
			return nil
		}
	default:
		return nil
	}
}
