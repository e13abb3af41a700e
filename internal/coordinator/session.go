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

package coordinator

import (
	"context"
	"net"
	"time"

	"github.com/go-gremlins/gremlins-research/internal/log"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
	"github.com/go-gremlins/gremlins-research/internal/protocol"
)

// acceptTimeout bounds how long the coordinator waits for a freshly
// spawned minion to dial back before declaring it dead on arrival.
const acceptTimeout = 30 * time.Second

// runSession spawns one minion, ships it a batch, and consumes its report
// stream. It returns the set of candidate ids that received a report, the
// session's terminal exit code, and whether an abnormal exit was already
// attributed to a specific mutant by a streamed report (a timed-out report
// precedes the timeout exit, so no further mutant takes the blame).
func (c *Coordinator) runSession(ctx context.Context, unit Unit, batch []protocol.MutationCandidate) (map[string]bool, protocol.ExitCode, bool) {
	reported := make(map[string]bool, len(batch))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Errorf("coordinator: cannot open control socket: %v", err)

		return reported, protocol.UnknownError, false
	}
	defer func() { _ = ln.Close() }()

	proc, err := c.launcher.Launch(ctx, unit, ln.Addr().String())
	if err != nil {
		log.Errorf("coordinator: cannot launch minion for %s: %v", unit.Name, err)

		return reported, protocol.MinionDied, false
	}
	defer proc.Kill()

	conn, err := accept(ln)
	if err != nil {
		log.Errorf("coordinator: minion for %s never dialled back: %v", unit.Name, err)

		return reported, proc.Wait(), false
	}
	defer func() { _ = conn.Close() }()

	w := protocol.NewWriter(conn)
	args := protocol.MinionArguments{
		Unit:               unit.Name,
		Packages:           unit.Packages,
		Candidates:         batch,
		BuildTags:          c.opts.BuildTags,
		TestCPU:            c.opts.TestCPU,
		TimeoutFactor:      c.opts.TimeoutFactor,
		TimeoutConstant:    c.opts.TimeoutConstant,
		MemoryLimitMB:      c.opts.MemoryLimitMB,
		ResearchMode:       c.opts.ResearchMode,
		FullMutationMatrix: c.opts.FullMutationMatrix,
		ReportDir:          c.opts.ReportDir,
		Verbosity:          c.opts.Verbosity,
		Baseline:           c.opts.Baseline,
	}
	if err := w.WriteArguments(args); err != nil {
		log.Errorf("coordinator: cannot send arguments for %s: %v", unit.Name, err)

		return reported, proc.Wait(), false
	}

	// The first mutant is considered started the moment arguments are on
	// the wire, so a boot failure is attributable to it.
	log.Infof("%s: %d mutants handed to minion\n", unit.Name, len(batch))

	r := protocol.NewReader(conn)
	for {
		rep, done, err := r.Next()
		if err != nil {
			// Stream closed mid-frame: the exit code says why.
			return reported, proc.Wait(), false
		}
		if done {
			return reported, proc.Wait(), false
		}

		reported[rep.CandidateID] = true
		c.record(unit, Result{
			CandidateID: rep.CandidateID,
			Status:      rep.Status,
			Report:      &rep,
		})
		if rep.Status == mutator.TimedOut {
			// The minion exits right after a timed-out report; the blame
			// is already on the reported mutant.
			return reported, proc.Wait(), true
		}
	}
}

func accept(ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn: conn, err: err}
	}()

	select {
	case res := <-ch:
		return res.conn, res.err
	case <-time.After(acceptTimeout):
		return nil, context.DeadlineExceeded
	}
}
