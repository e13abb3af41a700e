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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/token"
)

// Identifier is a reproducible reference to a single mutation point.
//
// Two runs over the same source tree, with the same operator selection,
// always produce the same Identifier for the same mutation: it is derived
// from the discovery-time coordinates of the mutant, never from a counter
// or a random value, so that history files and artifact cross-references
// stay valid run over run.
type Identifier struct {
	Package        string
	File           string
	Func           string
	Line           int
	CandidateIndex int
	Operator       Type
	Description    string
}

// ID returns the stable, 16-hex-character digest of the Identifier.
func (id Identifier) ID() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		id.Package, id.File, id.Func, id.Line, id.CandidateIndex, id.Operator)))

	return hex.EncodeToString(h[:])[:16]
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s:%s:%d#%d[%s]", id.Package, id.File, id.Line, id.CandidateIndex, id.Operator)
}

// funcNameAt returns the name of the top-level function or method
// declaration enclosing pos in file, or the empty string for a position
// outside any function (a mutation point inside a function literal
// reports its enclosing declaration).
func funcNameAt(file *ast.File, pos token.Pos) string {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if fd.Pos() <= pos && pos < fd.End() {
			return fd.Name.Name
		}
	}

	return ""
}
