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

// Package workerpool implements a bounded pool of workers executing Executor
// jobs, sized from the research.threads/unleash.workers configuration.
package workerpool

import (
	"runtime"
	"sync"

	"github.com/go-gremlins/gremlins-research/internal/configuration"
)

// Executor is a unit of work a Worker can run.
type Executor interface {
	Start(worker *Worker)
}

// Worker pulls Executor jobs off a shared queue until it is closed.
type Worker struct {
	Name   string
	ID     int
	stopCh chan struct{}
}

// NewWorker initialises a Worker with the given id and pool name.
func NewWorker(id int, name string) *Worker {
	return &Worker{
		Name: name,
		ID:   id,
	}
}

// Start begins pulling Executor jobs from queue until it is closed.
func (w *Worker) Start(queue <-chan Executor) {
	w.stopCh = make(chan struct{})
	go func() {
		for {
			job, ok := <-queue
			if !ok {
				w.stopCh <- struct{}{}

				break
			}
			job.Start(w)
		}
	}()
}

func (w *Worker) stop() {
	<-w.stopCh
}

// Pool is a fixed-size set of Worker goroutines draining a shared queue.
type Pool struct {
	queue   chan Executor
	name    string
	workers []*Worker
}

// Initialize builds a Pool sized from configuration: UnleashWorkersKey when
// set, otherwise runtime.NumCPU, halved when integration mode is active since
// each mutant then runs the complete test suite. A positive
// ResearchThreadsKey overrides that size.
func Initialize(name string) *Pool {
	size := poolSize()
	p := &Pool{name: name}
	p.workers = make([]*Worker, 0, size)
	for i := 0; i < size; i++ {
		p.workers = append(p.workers, NewWorker(i, p.name))
	}
	p.queue = make(chan Executor)

	return p
}

func poolSize() int {
	workers := configuration.Get[int](configuration.UnleashWorkersKey)
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if configuration.Get[bool](configuration.UnleashIntegrationMode) {
		workers /= 2
	}
	if threads := configuration.Get[int](configuration.ResearchThreadsKey); threads > 0 {
		workers = threads
	}
	if workers < 1 {
		workers = 1
	}

	return workers
}

// Start spins up every Worker in the Pool.
func (p *Pool) Start() {
	for _, w := range p.workers {
		w.Start(p.queue)
	}
}

// AppendExecutor enqueues an Executor for the next free Worker.
func (p *Pool) AppendExecutor(e Executor) {
	p.queue <- e
}

// ActiveWorkers returns the number of Worker goroutines in the Pool.
func (p *Pool) ActiveWorkers() int {
	return len(p.workers)
}

// Stop closes the queue and waits for every Worker to drain it.
func (p *Pool) Stop() {
	close(p.queue)
	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.stop()
		}(worker)
	}
	wg.Wait()
}
