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

package minion

import (
	"runtime"
	"sync"
	"time"
)

const (
	memoryPollInterval = 500 * time.Millisecond
	memoryTripFraction = 0.9
)

// watchdog monitors the minion's own heap usage and trips once it crosses
// 90% of the configured budget, so the process can exit with the
// out-of-memory code instead of being killed by the operating system in a
// way the coordinator cannot distinguish from a crash.
type watchdog struct {
	limitBytes uint64
	interval   time.Duration
	readStats  func() uint64

	tripped  chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
}

func newWatchdog(limitMB int) *watchdog {
	return &watchdog{
		limitBytes: uint64(limitMB) * 1024 * 1024,
		interval:   memoryPollInterval,
		readStats:  heapInUse,
		tripped:    make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return ms.HeapInuse
}

// start begins polling and returns the function that halts the watchdog.
// With no configured limit the watchdog is inert: it never trips.
func (w *watchdog) start() func() {
	halt := func() {
		w.stopOnce.Do(func() { close(w.stop) })
	}
	if w.limitBytes == 0 {
		return halt
	}

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				if float64(w.readStats()) >= memoryTripFraction*float64(w.limitBytes) {
					close(w.tripped)

					return
				}
			}
		}
	}()

	return halt
}
