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

// Package coverage runs the test suite with coverage instrumentation and
// parses the resulting profile into a Profile, the per-position lookup the
// engine uses to decide which mutants are covered by tests.
package coverage

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/tools/cover"

	"github.com/go-gremlins/gremlins-research/internal/configuration"
	"github.com/go-gremlins/gremlins-research/internal/gomodule"
	"github.com/go-gremlins/gremlins-research/internal/log"
)

// Result is the outcome of a coverage run: the parsed Profile plus the
// elapsed wall-clock time of the instrumented test run, used downstream to
// size mutation-test timeouts.
type Result struct {
	Profile Profile
	Elapsed time.Duration
}

type execContext = func(name string, args ...string) *exec.Cmd

// Coverage is responsible for executing a Go test with coverage via the
// Run() method, then parsing the result coverage report file.
type Coverage struct {
	cmdContext execContext
	workDir    string
	fileName   string
	mod        gomodule.GoModule
	buildTags  string
	coverPkg   string
	intMode    bool
}

// New instantiates a Coverage element using exec.Command as execContext,
// actually running the command on the OS.
func New(workdir string, mod gomodule.GoModule) Coverage {
	return NewWithCmd(exec.Command, workdir, mod)
}

// NewWithCmd instantiates a Coverage element given a custom execContext.
func NewWithCmd(cmdContext execContext, workdir string, mod gomodule.GoModule) Coverage {
	buildTags := configuration.Get[string](configuration.UnleashTagsKey)
	coverPkg := configuration.Get[string](configuration.UnleashCoverPkgKey)
	intMode := configuration.Get[bool](configuration.UnleashIntegrationMode)

	return Coverage{
		cmdContext: cmdContext,
		workDir:    workdir,
		fileName:   "coverage",
		mod:        mod,
		buildTags:  buildTags,
		coverPkg:   coverPkg,
		intMode:    intMode,
	}
}

// Run executes the coverage command and parses the results, returning a
// Result object.
func (c Coverage) Run() (Result, error) {
	log.Infoln("Gathering coverage...")
	elapsed, err := c.execute()
	if err != nil {
		return Result{}, fmt.Errorf("impossible to execute coverage: %w", err)
	}

	profile, err := c.getProfile()
	if err != nil {
		return Result{}, fmt.Errorf("an error occurred while generating coverage profile: %w", err)
	}

	return Result{Profile: profile, Elapsed: elapsed}, nil
}

// RunForTest executes the coverage command restricted to a single test,
// producing the profile of the blocks that test alone exercises.
func (c Coverage) RunForTest(testName string) (Result, error) {
	// Drop the previous test's profile so it is never read in place of ours.
	_ = os.Remove(c.filePath())
	elapsed, runErr := c.execute("-run", "^"+regexp.QuoteMeta(testName)+"$")

	profile, err := c.getProfile()
	if err != nil {
		if runErr != nil {
			return Result{}, fmt.Errorf("impossible to execute coverage for %s: %w", testName, runErr)
		}

		return Result{}, fmt.Errorf("an error occurred while generating coverage profile for %s: %w", testName, err)
	}

	return Result{Profile: profile, Elapsed: elapsed}, nil
}

// CollectPerTest gathers one Profile per test by running the instrumented
// suite once per test name. Tests whose run fails still contribute their
// profile when one was written; a test with no parsable profile is
// skipped.
func CollectPerTest(workDir string, mod gomodule.GoModule, tests []string) map[string]Profile {
	out := make(map[string]Profile, len(tests))
	cov := New(workDir, mod)
	for _, name := range tests {
		res, err := cov.RunForTest(name)
		if err != nil {
			log.Errorf("per-test coverage for %s failed: %v", name, err)

			continue
		}
		out[name] = res.Profile
	}

	return out
}

func (c Coverage) execute(extraArgs ...string) (time.Duration, error) {
	if err := c.downloadModules(); err != nil {
		return 0, err
	}

	args := []string{"test"}
	if c.buildTags != "" {
		args = append(args, "-tags", c.buildTags)
	}
	if c.coverPkg != "" {
		args = append(args, "-coverpkg", c.coverPkg)
	}
	args = append(args, extraArgs...)
	args = append(args, "-cover", "-coverprofile", c.filePath(), c.testPath())

	cmd := c.cmdContext("go", args...)
	cmd.Dir = c.mod.Root
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func (c Coverage) downloadModules() error {
	cmd := c.cmdContext("go", "mod", "download")
	cmd.Dir = c.mod.Root

	return cmd.Run()
}

func (c Coverage) testPath() string {
	if c.intMode || c.mod.CallingDir == "." {
		return "./..."
	}

	return fmt.Sprintf("./%s/...", c.mod.CallingDir)
}

func (c Coverage) filePath() string {
	return fmt.Sprintf("%v/%v", c.workDir, c.fileName)
}

func (c Coverage) getProfile() (Profile, error) {
	profiles, err := cover.ParseProfiles(c.filePath())
	if err != nil {
		return nil, err
	}

	status := make(Profile)
	for _, p := range profiles {
		for _, b := range p.Blocks {
			if b.Count == 0 {
				continue
			}
			block := Block{
				StartLine: b.StartLine,
				StartCol:  b.StartCol,
				EndLine:   b.EndLine,
				EndCol:    b.EndCol,
			}
			fn := c.removeModuleFromPath(p.FileName)
			status[fn] = append(status[fn], block)
		}
	}

	return status, nil
}

func (c Coverage) removeModuleFromPath(fileName string) string {
	prefix := c.mod.Name + "/"
	if c.mod.CallingDir != "." {
		prefix += c.mod.CallingDir + "/"
	}

	return strings.TrimPrefix(fileName, prefix)
}
