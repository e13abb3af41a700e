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

package baseline

import "strings"

var noiseFramePrefixes = []string{
	"testing.",
	"runtime.",
	"created by testing.",
	"panic(",
}

// FilterStack strips frames contributed by the testing/runtime machinery
// and the leading "panic: ..."/exception-header line from a raw stack
// trace, keeping only frames inside the module under test so that a
// before/after comparison isn't thrown off by irrelevant noise (goroutine
// ids, runtime frame addresses).
func FilterStack(raw []string, modulePrefix string) []string {
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "panic:") || strings.HasPrefix(trimmed, "exception:") {
			continue
		}
		if isNoiseFrame(trimmed) {
			continue
		}
		if modulePrefix != "" && !strings.Contains(trimmed, modulePrefix) && !strings.HasPrefix(trimmed, "\t") {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

func isNoiseFrame(line string) bool {
	for _, p := range noiseFramePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}

	return false
}
