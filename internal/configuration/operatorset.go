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

package configuration

import (
	"fmt"
	"strings"

	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// Aggregate operator-selection names. Users select operators by the
// canonical catalog strings (AOR_1, ROR_ALL, COMPREHENSIVE, ...); the
// aggregates below expand to sets of mutator.Type before the engine runs.
const (
	selAorAll        = "AOR_ALL"
	selAodAll        = "AOD_ALL"
	selUoiAll        = "UOI_ALL"
	selCrcrAll       = "CRCR_ALL"
	selObbnAll       = "OBBN_ALL"
	selRorAll        = "ROR_ALL"
	selComprehensive = "COMPREHENSIVE"
	selDefaults      = "DEFAULTS"
	selStronger      = "STRONGER"
	selAll           = "ALL"
)

var aorAll = []mutator.Type{mutator.AOR1, mutator.AOR2, mutator.AOR3, mutator.AOR4}
var aodAll = []mutator.Type{mutator.AOD1, mutator.AOD2}
var uoiAll = []mutator.Type{mutator.UOI1, mutator.UOI2, mutator.UOI3, mutator.UOI4}
var crcrAll = []mutator.Type{
	mutator.CRCR1, mutator.CRCR2, mutator.CRCR3,
	mutator.CRCR4, mutator.CRCR5, mutator.CRCR6,
}
var obbnAll = []mutator.Type{mutator.OBBN1, mutator.OBBN2, mutator.OBBN3}
var rorAll = []mutator.Type{mutator.ROR1, mutator.ROR2, mutator.ROR3, mutator.ROR4, mutator.ROR5}

// defaults is the classical selection enabled out of the box, the same set
// IsDefaultEnabled reports true for.
var defaults = []mutator.Type{
	mutator.ArithmeticBase,
	mutator.ConditionalsBoundary,
	mutator.ConditionalsNegation,
	mutator.IncrementDecrement,
	mutator.InvertNegatives,
}

// stronger adds the remaining classical families to the defaults.
var stronger = append(append([]mutator.Type{}, defaults...),
	mutator.InvertLogical,
	mutator.InvertLoopCtrl,
	mutator.InvertAssignments,
	mutator.InvertBitwise,
	mutator.InvertBitwiseAssignments,
	mutator.RemoveSelfAssignments,
	mutator.InvertLogicalNot,
)

// comprehensive is every named-catalog operator plus ABS.
var comprehensive = concat(aorAll, rorAll, crcrAll, uoiAll, aodAll, obbnAll,
	[]mutator.Type{mutator.ABS})

// ResolveOperatorSelection expands a list of operator-selection names into
// the concrete mutator.Type set, preserving first-mention order and
// deduplicating. An empty selection resolves to DEFAULTS.
func ResolveOperatorSelection(names []string) ([]mutator.Type, error) {
	if len(names) == 0 {
		return append([]mutator.Type{}, defaults...), nil
	}

	var out []mutator.Type
	seen := make(map[mutator.Type]bool)
	add := func(types ...mutator.Type) {
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case selAorAll:
			add(aorAll...)
		case selAodAll:
			add(aodAll...)
		case selUoiAll:
			add(uoiAll...)
		case selCrcrAll:
			add(crcrAll...)
		case selObbnAll:
			add(obbnAll...)
		case selRorAll:
			add(rorAll...)
		case selComprehensive:
			add(comprehensive...)
		case selDefaults:
			add(defaults...)
		case selStronger:
			add(stronger...)
		case selAll:
			add(stronger...)
			add(comprehensive...)
		default:
			mt, ok := typeByName(name)
			if !ok {
				return nil, fmt.Errorf("unknown operator selection %q", name)
			}
			add(mt)
		}
	}

	return out, nil
}

func typeByName(name string) (mutator.Type, bool) {
	for _, mt := range mutator.Types {
		if mt.String() == name {
			return mt, true
		}
	}

	return 0, false
}

func concat(sets ...[]mutator.Type) []mutator.Type {
	var out []mutator.Type
	for _, s := range sets {
		out = append(out, s...)
	}

	return out
}
