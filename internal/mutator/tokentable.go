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

import "go/token"

// tokenMutations gives, for each mutation Type, the one-for-one token
// substitution TokenMutant.Apply performs. It lives next to TokenMutant
// rather than in the engine's discovery tables because Apply needs it at
// mutation time, not discovery time.
var tokenMutations = map[Type]map[token.Token]token.Token{
	ArithmeticBase: {
		token.ADD: token.SUB,
		token.MUL: token.QUO,
		token.QUO: token.MUL,
		token.REM: token.MUL,
		token.SUB: token.ADD,
	},
	ConditionalsBoundary: {
		token.GEQ: token.GTR,
		token.GTR: token.GEQ,
		token.LEQ: token.LSS,
		token.LSS: token.LEQ,
	},
	ConditionalsNegation: {
		token.EQL: token.NEQ,
		token.GEQ: token.LSS,
		token.GTR: token.LEQ,
		token.LEQ: token.GTR,
		token.LSS: token.GEQ,
		token.NEQ: token.EQL,
	},
	IncrementDecrement: {
		token.DEC: token.INC,
		token.INC: token.DEC,
	},
	InvertAssignments: {
		token.ADD_ASSIGN: token.SUB_ASSIGN,
		token.MUL_ASSIGN: token.QUO_ASSIGN,
		token.QUO_ASSIGN: token.MUL_ASSIGN,
		token.REM_ASSIGN: token.REM_ASSIGN,
		token.SUB_ASSIGN: token.ADD_ASSIGN,
	},
	InvertBitwise: {
		token.AND:     token.OR,
		token.OR:      token.AND,
		token.XOR:     token.AND,
		token.AND_NOT: token.AND,
		token.SHL:     token.SHR,
		token.SHR:     token.SHL,
	},
	InvertBitwiseAssignments: {
		token.AND_ASSIGN:     token.OR_ASSIGN,
		token.OR_ASSIGN:      token.AND_ASSIGN,
		token.XOR_ASSIGN:     token.AND_ASSIGN,
		token.AND_NOT_ASSIGN: token.AND_ASSIGN,
		token.SHL_ASSIGN:     token.SHR_ASSIGN,
		token.SHR_ASSIGN:     token.SHL_ASSIGN,
	},
	InvertLogical: {
		token.LAND: token.LOR,
		token.LOR:  token.LAND,
	},
	InvertLoopCtrl: {
		token.BREAK:    token.CONTINUE,
		token.CONTINUE: token.BREAK,
	},
	InvertNegatives: {
		token.SUB: token.ADD,
	},
	RemoveSelfAssignments: {
		token.ADD_ASSIGN:     token.ASSIGN,
		token.AND_ASSIGN:     token.ASSIGN,
		token.AND_NOT_ASSIGN: token.ASSIGN,
		token.MUL_ASSIGN:     token.ASSIGN,
		token.OR_ASSIGN:      token.ASSIGN,
		token.QUO_ASSIGN:     token.ASSIGN,
		token.REM_ASSIGN:     token.ASSIGN,
		token.SHL_ASSIGN:     token.ASSIGN,
		token.SHR_ASSIGN:     token.ASSIGN,
		token.SUB_ASSIGN:     token.ASSIGN,
		token.XOR_ASSIGN:     token.ASSIGN,
	},

	// The named-catalog families below follow the replacement tables of
	// the external operator-naming scheme: for a given original operator,
	// AOR_1..AOR_4 (resp. ROR_1..ROR_5) each select one column of the
	// replacement row for that operator. Every variant therefore carries a
	// full map over the eligible tokens, not a single substitution.
	//
	// AOR rows: + -> (-,*,/,%)  - -> (+,*,/,%)  * -> (/,%,+,-)
	//           / -> (*,%,+,-)  % -> (*,/,+,-)
	AOR1: {
		token.ADD: token.SUB,
		token.SUB: token.ADD,
		token.MUL: token.QUO,
		token.QUO: token.MUL,
		token.REM: token.MUL,
	},
	AOR2: {
		token.ADD: token.MUL,
		token.SUB: token.MUL,
		token.MUL: token.REM,
		token.QUO: token.REM,
		token.REM: token.QUO,
	},
	AOR3: {
		token.ADD: token.QUO,
		token.SUB: token.QUO,
		token.MUL: token.ADD,
		token.QUO: token.ADD,
		token.REM: token.ADD,
	},
	AOR4: {
		token.ADD: token.REM,
		token.SUB: token.REM,
		token.MUL: token.SUB,
		token.QUO: token.SUB,
		token.REM: token.SUB,
	},

	// ROR rows: <  -> (<=,>,>=,==,!=)  <= -> (<,>,>=,==,!=)
	//           >  -> (<,<=,>=,==,!=)  >= -> (<,<=,>,==,!=)
	//           == -> (<,<=,>,>=,!=)   != -> (<,<=,>,>=,==)
	ROR1: {
		token.LSS: token.LEQ,
		token.LEQ: token.LSS,
		token.GTR: token.LSS,
		token.GEQ: token.LSS,
		token.EQL: token.LSS,
		token.NEQ: token.LSS,
	},
	ROR2: {
		token.LSS: token.GTR,
		token.LEQ: token.GTR,
		token.GTR: token.LEQ,
		token.GEQ: token.LEQ,
		token.EQL: token.LEQ,
		token.NEQ: token.LEQ,
	},
	ROR3: {
		token.LSS: token.GEQ,
		token.LEQ: token.GEQ,
		token.GTR: token.GEQ,
		token.GEQ: token.GTR,
		token.EQL: token.GTR,
		token.NEQ: token.GTR,
	},
	ROR4: {
		token.LSS: token.EQL,
		token.LEQ: token.EQL,
		token.GTR: token.EQL,
		token.GEQ: token.EQL,
		token.EQL: token.GEQ,
		token.NEQ: token.GEQ,
	},
	ROR5: {
		token.LSS: token.NEQ,
		token.LEQ: token.NEQ,
		token.GTR: token.NEQ,
		token.GEQ: token.NEQ,
		token.EQL: token.NEQ,
		token.NEQ: token.EQL,
	},

	// OBBN_1 reverses & and |; ^ maps to itself per the normative table.
	OBBN1: {
		token.AND: token.OR,
		token.OR:  token.AND,
		token.XOR: token.XOR,
	},
}
