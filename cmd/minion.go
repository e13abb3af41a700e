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

package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-gremlins/gremlins-research/internal/minion"
)

// minionCommandName is the hidden subcommand the coordinator spawns: the
// same binary re-executes itself as the isolated executor, so no separate
// minion binary has to be located or configured.
const minionCommandName = "minion"

type minionCmd struct {
	cmd *cobra.Command
}

func newMinionCmd(ctx context.Context) *minionCmd {
	var controlAddr, workDir, module string

	cmd := &cobra.Command{
		Use:    minionCommandName,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if controlAddr == "" {
				return errors.New("minion: --control-addr is required")
			}
			if workDir == "" {
				return errors.New("minion: --workdir is required")
			}

			code := minion.New(workDir, module).Run(ctx, controlAddr)
			// The exit status is the protocol: the coordinator maps it
			// back onto a fault status for the in-flight mutant.
			os.Exit(int(code))

			return nil
		},
	}

	cmd.Flags().StringVar(&controlAddr, "control-addr", "", "coordinator control socket address")
	cmd.Flags().StringVar(&workDir, "workdir", "", "private working copy of the module under test")
	cmd.Flags().StringVar(&module, "module", "", "module path, used for stack-trace filtering")

	return &minionCmd{cmd: cmd}
}
