/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package compiler

import (
	"context"
	"maps"
	"slices"
	"sync"

	"bennypowers.dev/ripple/paths"
)

// Queue feeds change batches to a compiler one cycle at a time. Changes
// submitted while a cycle runs are folded into the next cycle.
type Queue struct {
	compiler *Compiler
	onResult func(*Result, error)

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

// NewQueue creates a queue compiling with c. onResult receives the outcome
// of every cycle; it runs on the Run goroutine.
func NewQueue(c *Compiler, onResult func(*Result, error)) *Queue {
	if onResult == nil {
		onResult = func(*Result, error) {}
	}
	return &Queue{
		compiler: c,
		onResult: onResult,
		pending:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Submit adds changed files to the next cycle. It never blocks.
func (q *Queue) Submit(files ...string) {
	if len(files) == 0 {
		return
	}
	q.mu.Lock()
	for _, f := range paths.NormAll(files) {
		q.pending[f] = struct{}{}
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the files waiting for the next cycle, sorted.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Sorted(maps.Keys(q.pending))
}

func (q *Queue) take() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	batch := slices.Sorted(maps.Keys(q.pending))
	clear(q.pending)
	return batch
}

// Run compiles pending changes until ctx is done. A cycle that has
// started is not cancelled; Run returns once it finishes.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}

		batch := q.take()
		if len(batch) == 0 {
			continue
		}
		result, err := q.compiler.Compile(context.WithoutCancel(ctx), batch)
		q.onResult(result, err)
	}
}
