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

// Status represents the lifecycle state of a Mutator.
//
//   - NotCovered means a mutation point was found but no test exercises it.
//   - Runnable means the mutation point is covered and can be executed.
//   - NotStarted is the research-mode equivalent of Runnable: the mutant
//     is queued with a minion but has not yet been dispatched.
//   - Started means a minion has begun executing this mutant.
//   - Killed means at least one test failed under the mutant (in research
//     mode: at least one test changed outcome against its baseline).
//   - Lived/Survived mean no test killed the mutant.
//   - Skipped means the mutant falls outside the requested diff scope.
//   - NotViable/NonViable mean the mutated source failed to build.
//   - TimedOut means the test run exceeded its deadline.
//   - MemoryError means the minion exceeded its memory budget.
//   - RunError means the minion exited abnormally for any other reason.
type Status int

// Currently supported Status values.
const (
	NotCovered Status = iota
	Runnable
	Lived
	Killed
	NotViable
	TimedOut
	Skipped
	NotStarted
	Started
	Survived
	NoCoverage
	NonViable
	MemoryError
	RunError
)

func (ms Status) String() string {
	switch ms {
	case NotCovered:
		return "NOT COVERED"
	case Runnable:
		return "RUNNABLE"
	case Lived:
		return "LIVED"
	case Killed:
		return "KILLED"
	case NotViable:
		return "NOT VIABLE"
	case TimedOut:
		return "TIMED OUT"
	case Skipped:
		return "SKIPPED"
	case NotStarted:
		return "NOT STARTED"
	case Started:
		return "STARTED"
	case Survived:
		return "SURVIVED"
	case NoCoverage:
		return "NO COVERAGE"
	case NonViable:
		return "NON VIABLE"
	case MemoryError:
		return "MEMORY ERROR"
	case RunError:
		return "RUN ERROR"
	default:
		panic("this should not happen")
	}
}

// Type represents the mutation operator family applied by a Mutator.
//
// A single token.Token can be mutated in various ways depending on the
// specific mutation being tested. For example `<` can be mutated to `<=`
// in case of ConditionalsBoundary or `>=` in case of ConditionalsNegation.
type Type int

// The currently supported Type values.
//
// ArithmeticBase..InvertBitwise are the classical token-swap families
// inherited unchanged. AOR_1..ABS are the catalog named by the external
// operator-naming scheme, expressed as Go source mutations (see tokentable.go,
// exprmutator.go and stmtmutant.go for how each one is actually realised).
const (
	ArithmeticBase Type = iota
	ConditionalsBoundary
	ConditionalsNegation
	IncrementDecrement
	InvertLogical
	InvertNegatives
	InvertLoopCtrl
	InvertAssignments
	InvertBitwise
	InvertBitwiseAssignments
	RemoveSelfAssignments
	InvertLogicalNot

	AOR1
	AOR2
	AOR3
	AOR4

	ROR1
	ROR2
	ROR3
	ROR4
	ROR5

	CRCR1
	CRCR2
	CRCR3
	CRCR4
	CRCR5
	CRCR6

	UOI1
	UOI2
	UOI3
	UOI4

	AOD1
	AOD2

	OBBN1
	OBBN2
	OBBN3

	ABS
)

// Types allows iteration over every Type known to the catalog.
var Types = []Type{
	ArithmeticBase,
	ConditionalsBoundary,
	ConditionalsNegation,
	IncrementDecrement,
	InvertLogical,
	InvertNegatives,
	InvertLoopCtrl,
	InvertAssignments,
	InvertBitwise,
	InvertBitwiseAssignments,
	RemoveSelfAssignments,
	InvertLogicalNot,
	AOR1, AOR2, AOR3, AOR4,
	ROR1, ROR2, ROR3, ROR4, ROR5,
	CRCR1, CRCR2, CRCR3, CRCR4, CRCR5, CRCR6,
	UOI1, UOI2, UOI3, UOI4,
	AOD1, AOD2,
	OBBN1, OBBN2, OBBN3,
	ABS,
}

func (mt Type) String() string {
	switch mt {
	case ConditionalsBoundary:
		return "CONDITIONALS_BOUNDARY"
	case ConditionalsNegation:
		return "CONDITIONALS_NEGATION"
	case IncrementDecrement:
		return "INCREMENT_DECREMENT"
	case InvertLogical:
		return "INVERT_LOGICAL"
	case InvertNegatives:
		return "INVERT_NEGATIVES"
	case ArithmeticBase:
		return "ARITHMETIC_BASE"
	case InvertLoopCtrl:
		return "INVERT_LOOPCTRL"
	case InvertAssignments:
		return "INVERT_ASSIGNMENTS"
	case InvertBitwise:
		return "INVERT_BITWISE"
	case InvertBitwiseAssignments:
		return "INVERT_BWASSIGN"
	case RemoveSelfAssignments:
		return "REMOVE_SELF_ASSIGNMENTS"
	case InvertLogicalNot:
		return "INVERT_LOGICAL_NOT"
	case AOR1:
		return "AOR_1"
	case AOR2:
		return "AOR_2"
	case AOR3:
		return "AOR_3"
	case AOR4:
		return "AOR_4"
	case ROR1:
		return "ROR_1"
	case ROR2:
		return "ROR_2"
	case ROR3:
		return "ROR_3"
	case ROR4:
		return "ROR_4"
	case ROR5:
		return "ROR_5"
	case CRCR1:
		return "CRCR_1"
	case CRCR2:
		return "CRCR_2"
	case CRCR3:
		return "CRCR_3"
	case CRCR4:
		return "CRCR_4"
	case CRCR5:
		return "CRCR_5"
	case CRCR6:
		return "CRCR_6"
	case UOI1:
		return "UOI_1"
	case UOI2:
		return "UOI_2"
	case UOI3:
		return "UOI_3"
	case UOI4:
		return "UOI_4"
	case AOD1:
		return "AOD_1"
	case AOD2:
		return "AOD_2"
	case OBBN1:
		return "OBBN_1"
	case OBBN2:
		return "OBBN_2"
	case OBBN3:
		return "OBBN_3"
	case ABS:
		return "ABS"
	default:
		panic("this should not happen")
	}
}

// Mutator represents a possible mutation of the source code.
type Mutator interface {
	// Type returns the Type of the Mutator.
	Type() Type

	// SetType sets the Type of the Mutator.
	SetType(mt Type)

	// Status returns the Status of the Mutator.
	Status() Status

	// SetStatus sets the Status of the Mutator.
	SetStatus(s Status)

	// Position returns the token.Position for the Mutator.
	// token.Position consumes more space than token.Pos, and in the future
	// we can consider a refactoring to remove its use and only use Mutator.Pos.
	Position() token.Position

	// Pos returns the token.Pos of the Mutator.
	Pos() token.Pos

	// Pkg returns the package where the Mutator is fount.
	Pkg() string

	// ID returns the stable Identifier of this mutation point.
	ID() Identifier

	// Description returns a short human-readable description of the mutation.
	Description() string

	// SetWorkdir sets the working directory which contains the source code on
	// which the Mutator will apply its mutations.
	SetWorkdir(p string)

	// Workdir returns the current working dir in which the Mutator will apply its mutations
	Workdir() string

	// Apply applies the mutation on the actual source code.
	Apply() error

	// Rollback removes the mutation from the source code and sets it back to
	// its original status.
	Rollback() error
}
