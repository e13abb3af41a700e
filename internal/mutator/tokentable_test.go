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
	"go/token"
	"testing"
)

func TestArithmeticReplacementRows(t *testing.T) {
	// Each row is (original, AOR_1, AOR_2, AOR_3, AOR_4).
	rows := []struct {
		orig token.Token
		want [4]token.Token
	}{
		{token.ADD, [4]token.Token{token.SUB, token.MUL, token.QUO, token.REM}},
		{token.SUB, [4]token.Token{token.ADD, token.MUL, token.QUO, token.REM}},
		{token.MUL, [4]token.Token{token.QUO, token.REM, token.ADD, token.SUB}},
		{token.QUO, [4]token.Token{token.MUL, token.REM, token.ADD, token.SUB}},
		{token.REM, [4]token.Token{token.MUL, token.QUO, token.ADD, token.SUB}},
	}
	variants := []Type{AOR1, AOR2, AOR3, AOR4}

	for _, row := range rows {
		for i, v := range variants {
			got, ok := tokenMutations[v][row.orig]
			if !ok {
				t.Fatalf("%s has no substitution for %s", v, row.orig)
			}
			if got != row.want[i] {
				t.Errorf("%s(%s): got %s, want %s", v, row.orig, got, row.want[i])
			}
		}
	}
}

func TestRelationalReplacementRows(t *testing.T) {
	rows := []struct {
		orig token.Token
		want [5]token.Token
	}{
		{token.LSS, [5]token.Token{token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ}},
		{token.LEQ, [5]token.Token{token.LSS, token.GTR, token.GEQ, token.EQL, token.NEQ}},
		{token.GTR, [5]token.Token{token.LSS, token.LEQ, token.GEQ, token.EQL, token.NEQ}},
		{token.GEQ, [5]token.Token{token.LSS, token.LEQ, token.GTR, token.EQL, token.NEQ}},
		{token.EQL, [5]token.Token{token.LSS, token.LEQ, token.GTR, token.GEQ, token.NEQ}},
		{token.NEQ, [5]token.Token{token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL}},
	}
	variants := []Type{ROR1, ROR2, ROR3, ROR4, ROR5}

	for _, row := range rows {
		for i, v := range variants {
			got, ok := tokenMutations[v][row.orig]
			if !ok {
				t.Fatalf("%s has no substitution for %s", v, row.orig)
			}
			if got != row.want[i] {
				t.Errorf("%s(%s): got %s, want %s", v, row.orig, got, row.want[i])
			}
		}
	}
}

func TestBitwiseReversal(t *testing.T) {
	if got := tokenMutations[OBBN1][token.AND]; got != token.OR {
		t.Errorf("OBBN_1(&): got %s, want |", got)
	}
	if got := tokenMutations[OBBN1][token.OR]; got != token.AND {
		t.Errorf("OBBN_1(|): got %s, want &", got)
	}
	// The xor entry is an identity by table definition; the discovery
	// pipeline suppresses it as an equivalent mutant.
	if got := tokenMutations[OBBN1][token.XOR]; got != token.XOR {
		t.Errorf("OBBN_1(^): got %s, want ^", got)
	}
}
