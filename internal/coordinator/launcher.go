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
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-gremlins/gremlins-research/internal/protocol"
	"github.com/go-gremlins/gremlins-research/internal/workdir"
)

// Launcher spawns one minion process for a unit, bound to a control
// address.
type Launcher interface {
	Launch(ctx context.Context, unit Unit, controlAddr string) (Process, error)
}

// Process is a handle on a running minion.
type Process interface {
	// Wait blocks until the process exits and maps its exit status onto
	// the protocol's exit-code vocabulary.
	Wait() protocol.ExitCode
	// Kill terminates the process group, including any go test children.
	Kill()
}

// MinionLauncher launches the minion as a fresh subprocess per session.
// Every unit gets its own private copy of the module from the Dealer, so
// parallel units never write into each other's trees; a re-spawn for the
// same unit reuses the same copy. Each minion runs in its own process
// group so a kill also reaps go test children.
type MinionLauncher struct {
	// Binary is the executable to run; Args are prepended before the
	// control flags (typically the hidden minion subcommand name).
	Binary string
	Args   []string

	// Dealer provides per-unit working copies of the module under test.
	Dealer workdir.Dealer

	// Subdir is the calling directory inside the module; candidate file
	// paths are relative to it.
	Subdir string

	// Module is the module path, forwarded for stack-trace filtering.
	Module string
}

// Launch starts one minion for unit pointed at controlAddr.
func (l MinionLauncher) Launch(ctx context.Context, unit Unit, controlAddr string) (Process, error) {
	root, err := l.Dealer.Get(unit.Name)
	if err != nil {
		return nil, err
	}
	wd := filepath.Join(root, l.Subdir)

	args := append(append([]string{}, l.Args...),
		"--control-addr", controlAddr,
		"--workdir", wd,
		"--module", l.Module,
	)
	//nolint:gosec // the binary path is operator-controlled, not remote input
	cmd := exec.CommandContext(ctx, l.Binary, args...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &minionProcess{cmd: cmd}, nil
}

type minionProcess struct {
	cmd *exec.Cmd
}

func (p *minionProcess) Wait() protocol.ExitCode {
	err := p.cmd.Wait()
	if err == nil {
		return protocol.OK
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return protocol.FromExitStatus(exitErr.ExitCode())
	}

	return protocol.MinionDied
}

func (p *minionProcess) Kill() {
	_ = killProcessGroup(p.cmd)
}
