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

// Package protocol defines the coordinator<->minion control channel: a
// length-prefixed stream of JSON-encoded frames over a loopback TCP
// connection. It plays the role the external spec assigns to the binary
// control protocol between the test harness and its isolated JVM executor,
// re-expressed with the encoding the rest of this module already uses
// (encoding/json) instead of a bespoke binary layout, framed the same way
// gomodule/coverage read their own inputs: one self-describing unit at a time.
package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-gremlins/gremlins-research/internal/baseline"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

// ExitCode is the minion's final, process-level outcome, reported by the
// exit status of the subprocess itself (not a protocol frame, since a
// minion that crashes hard cannot be relied on to write one).
type ExitCode int

// Recognised ExitCode values. Anything else observed on the subprocess is
// folded into UnknownError by the coordinator.
const (
	OK ExitCode = iota
	Timeout
	OutOfMemory
	MinionDied
	UnknownError
)

// FromExitStatus maps a subprocess exit status back onto an ExitCode. A
// status outside the protocol's vocabulary (a go runtime crash, a kill by
// signal) folds into MinionDied when negative and UnknownError otherwise.
func FromExitStatus(status int) ExitCode {
	if status < 0 {
		return MinionDied
	}
	if status > int(UnknownError) {
		return UnknownError
	}

	return ExitCode(status)
}

func (e ExitCode) String() string {
	switch e {
	case OK:
		return "OK"
	case Timeout:
		return "TIMEOUT"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case MinionDied:
		return "MINION_DIED"
	case UnknownError:
		return "UNKNOWN_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// MutationCandidate is the serialised form of one mutator.Mutator handed to
// a minion: enough to reconstruct it against the minion's own working copy
// without sharing any in-process AST state with the coordinator.
type MutationCandidate struct {
	ID       string
	Type     mutator.Type
	Pkg      string
	File     string // path relative to the working copy root
	Line     int
	Col      int
	Covering []string

	// MutatedSource is the post-Apply content of File, produced by the
	// coordinator's engine.Mutator before it rolled the AST back. The
	// minion only ever swaps file bytes; it never re-derives the AST
	// mutation itself.
	MutatedSource []byte
}

// MinionArguments is the one-shot frame the coordinator sends to open a
// minion session. In research mode the baseline table travels here, so the
// minion never recomputes it; otherwise the minion captures its own
// baseline with one unmutated test pass.
type MinionArguments struct {
	Unit               string
	Packages           []string
	Candidates         []MutationCandidate
	BuildTags          string
	TestCPU            int
	TimeoutFactor      float64
	TimeoutConstant    int64 // milliseconds
	MemoryLimitMB      int
	ResearchMode       bool
	FullMutationMatrix bool
	ReportDir          string
	Verbosity          string

	// Baseline is the test-case metadata table in TCID order (assigned by
	// lexicographic sort of test names). Empty outside research mode.
	Baseline []baseline.TestCaseMetadata
}

// DetailedResult is one test's outcome against one mutant, the wire form of
// the per-test record the baseline/transition engine classifies.
type DetailedResult struct {
	TestName         string
	Passed           bool
	ExceptionType    string
	ExceptionMessage string
	FilteredStack    []string
	DurationMS       int64
}

// Report is a single mutant's outcome, streamed back as soon as the minion
// finishes executing it; the coordinator does not wait for the whole batch.
type Report struct {
	CandidateID string
	Status      mutator.Status
	Killers     []string
	Survivors   []string
	Covered     []string
	Details     []DetailedResult
}

// Done marks the end of a minion's batch; it precedes the minion's own
// process exit with ExitCode OK.
type Done struct{}

// frameKind tags which payload type follows in the stream.
type frameKind string

const (
	kindArguments frameKind = "arguments"
	kindReport    frameKind = "report"
	kindDone      frameKind = "done"
)

type envelope struct {
	Kind    frameKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Writer frames and writes protocol messages onto an io.Writer, one
// 4-byte big-endian length prefix followed by the JSON envelope.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w into a Writer.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) write(kind frameKind, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	env, err := json.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(env)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.w.Write(env)

	return err
}

// WriteArguments sends the MinionArguments frame.
func (w *Writer) WriteArguments(a MinionArguments) error { return w.write(kindArguments, a) }

// WriteReport sends one mutant's Report frame.
func (w *Writer) WriteReport(r Report) error { return w.write(kindReport, r) }

// WriteDone sends the terminal Done frame.
func (w *Writer) WriteDone() error { return w.write(kindDone, Done{}) }

// Reader reads framed protocol messages off an io.Reader.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r into a Reader.
func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

func (r *Reader) readEnvelope() (envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return envelope{}, err
	}

	return env, nil
}

// ReadArguments blocks for the MinionArguments frame.
func (r *Reader) ReadArguments() (MinionArguments, error) {
	env, err := r.readEnvelope()
	if err != nil {
		return MinionArguments{}, err
	}
	if env.Kind != kindArguments {
		return MinionArguments{}, fmt.Errorf("protocol: expected arguments frame, got %s", env.Kind)
	}
	var a MinionArguments
	err = json.Unmarshal(env.Payload, &a)

	return a, err
}

// Next reads the next frame and reports whether it was a Report (ok=true,
// done=false), the terminal Done (ok=false, done=true), or an error.
func (r *Reader) Next() (rep Report, done bool, err error) {
	env, err := r.readEnvelope()
	if err != nil {
		return Report{}, false, err
	}
	switch env.Kind {
	case kindReport:
		err = json.Unmarshal(env.Payload, &rep)

		return rep, false, err
	case kindDone:
		return Report{}, true, nil
	default:
		return Report{}, false, fmt.Errorf("protocol: unexpected frame %s", env.Kind)
	}
}
