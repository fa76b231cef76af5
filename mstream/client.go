// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package mstream

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"
)

// Client runs the decoding of individual
// streams on behalf of Binary.DecodeAll.
//
// Launch may decode s before returning or
// arrange for it to be decoded later; a Client
// that defers work should also implement Barrier
// so that DecodeAll can wait for it.
type Client interface {
	Launch(s *Stream, sink Sink) error
}

// Barrier is implemented by clients that
// decode streams asynchronously. Wait blocks
// until every launched stream has been decoded
// and returns the first error any of them hit.
type Barrier interface {
	Wait() error
}

// Notifier is implemented by clients that want
// to observe the result of every launch.
type Notifier interface {
	NotifyStatus(stream int, err error)
}

// SequentialClient decodes every stream
// inline, in the goroutine calling DecodeAll.
type SequentialClient struct{}

// Launch implements Client.Launch
func (SequentialClient) Launch(s *Stream, sink Sink) error {
	return s.Decode(sink)
}

// counter is padded to keep concurrently
// updated counters on separate cache lines
type counter struct {
	_       cpu.CacheLinePad
	symbols atomic.Int64
	_       cpu.CacheLinePad
}

// PoolClient decodes streams on a bounded
// set of goroutines. Launch blocks while the
// limit of concurrent decodes is reached.
//
// A PoolClient may be reused once Wait returns,
// but Launch and Wait must not be called at
// the same time.
type PoolClient struct {
	limit int

	mu       sync.Mutex
	group    *errgroup.Group
	counters map[int]*counter
}

// NewPoolClient returns a PoolClient running at
// most limit decodes at once. A limit of zero
// or less means no limit.
func NewPoolClient(limit int) *PoolClient {
	p := &PoolClient{limit: limit, counters: make(map[int]*counter)}
	p.reset()
	return p
}

func (p *PoolClient) reset() {
	g := new(errgroup.Group)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	p.group = g
}

// Launch implements Client.Launch
func (p *PoolClient) Launch(s *Stream, sink Sink) error {
	p.mu.Lock()
	g := p.group
	c := p.counters[s.index]
	if c == nil {
		c = new(counter)
		p.counters[s.index] = c
	}
	p.mu.Unlock()
	g.Go(func() error {
		err := s.Decode(SinkFunc(func(sym Symbol) error {
			c.symbols.Add(1)
			return sink.Emit(sym)
		}))
		if err != nil {
			return fmt.Errorf("mstream.PoolClient: %w", err)
		}
		return nil
	})
	return nil
}

// Wait implements Barrier.Wait
func (p *PoolClient) Wait() error {
	p.mu.Lock()
	g := p.group
	p.reset()
	p.mu.Unlock()
	return g.Wait()
}

// Symbols returns the number of symbols decoded
// from stream i since the PoolClient was created.
func (p *PoolClient) Symbols(i int) int64 {
	p.mu.Lock()
	c := p.counters[i]
	p.mu.Unlock()
	if c == nil {
		return 0
	}
	return c.symbols.Load()
}
