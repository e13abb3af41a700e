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

package configuration_test

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/go-gremlins/gremlins-research/internal/configuration"
	"github.com/go-gremlins/gremlins-research/internal/mutator"
)

func TestInitReadsConfigFromPath(t *testing.T) {
	defer configuration.Reset()

	if err := configuration.Init([]string{"testdata/config1"}); err != nil {
		t.Fatal(err)
	}

	if !viper.GetBool(configuration.UnleashDryRunKey) {
		t.Error("expected dry-run to be read from the config file")
	}
	if got := viper.GetString(configuration.UnleashTagsKey); got != "tag1,tag2" {
		t.Errorf("tags: got %q", got)
	}
	if got := viper.GetString(configuration.ResearchReportDirKey); got != "from-file-report" {
		t.Errorf("report-dir: got %q", got)
	}
}

func TestInitWithSpecificFile(t *testing.T) {
	defer configuration.Reset()

	err := configuration.Init([]string{"testdata/config1/.gremlins.yaml"})
	if err != nil {
		t.Fatal(err)
	}

	if !viper.GetBool(configuration.UnleashDryRunKey) {
		t.Error("expected dry-run to be read from the specific config file")
	}
}

func TestInitWithMissingSpecificFileFails(t *testing.T) {
	defer configuration.Reset()

	if err := configuration.Init([]string{"testdata/nope.yaml"}); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestSetAndGetRoundTrip(t *testing.T) {
	defer configuration.Reset()

	configuration.Set(configuration.ResearchThreadsKey, 8)
	if got := configuration.Get[int](configuration.ResearchThreadsKey); got != 8 {
		t.Errorf("threads: got %d", got)
	}

	// A missing key yields the zero value.
	if got := configuration.Get[string]("research.not-a-key"); got != "" {
		t.Errorf("missing key: got %q", got)
	}
}

func TestMutantTypeEnabledKey(t *testing.T) {
	got := configuration.MutantTypeEnabledKey(mutator.ROR5)
	want := "mutants.ror-5.enabled"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
