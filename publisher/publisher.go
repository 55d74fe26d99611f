// Package publisher provides chunk publishers: fixed chunk lists, terminal
// sources and demand-driven readers of streamed bodies.
package publisher

import (
	"errors"
	"sync/atomic"

	"github.com/ozontech/bodyflow/flow/flowcontrol"
	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
)

var ErrAlreadySubscribed = errors.New("publisher already has a subscriber")

type terminal struct {
	err error
}

// Empty completes every subscriber immediately.
func Empty() types.Publisher[[]byte] {
	return terminal{}
}

// Failed signals err to every subscriber immediately.
func Failed(err error) types.Publisher[[]byte] {
	return terminal{err}
}

func (t terminal) Subscribe(s types.Subscriber[[]byte]) {
	s.OnSubscribe(policy.NoopSubscription)
	if t.err != nil {
		s.OnError(t.err)
		return
	}
	s.OnComplete()
}

type chunks struct {
	chunks [][]byte
	exec   types.Executor
}

// FromChunks publishes the given chunks in order to each subscriber,
// respecting its demand. Chunks are handed out as is and must not be modified
// afterwards.
func FromChunks(c ...[]byte) types.Publisher[[]byte] {
	return FromChunksOn(policy.SyncExecutor, c...)
}

// FromChunksOn delivers signals through exec. Deliveries for one subscriber
// never overlap whatever exec does.
func FromChunksOn(exec types.Executor, c ...[]byte) types.Publisher[[]byte] {
	return chunks{c, exec}
}

func (p chunks) Subscribe(s types.Subscriber[[]byte]) {
	sub := &chunksSubscription{
		sub:    s,
		chunks: p.chunks,
		exec:   p.exec,
		demand: flowcontrol.NewDemand(),
	}
	s.OnSubscribe(sub)
	sub.signal()
}

type chunksSubscription struct {
	sub     types.Subscriber[[]byte]
	chunks  [][]byte
	exec    types.Executor
	demand  *flowcontrol.Demand
	wip     atomic.Int32
	illegal atomic.Bool

	// touched only by the goroutine holding wip
	next int
	done bool
}

func (s *chunksSubscription) Request(n int64) {
	if n <= 0 {
		s.illegal.Store(true)
		s.demand.Disable()
	} else {
		s.demand.Add(n)
	}
	s.signal()
}

func (s *chunksSubscription) Cancel() {
	s.demand.Disable()
}

func (s *chunksSubscription) signal() {
	if s.wip.Add(1) == 1 {
		s.exec.Execute(s.drain)
	}
}

func (s *chunksSubscription) drain() {
	for {
		s.deliver()
		if s.wip.Add(-1) == 0 {
			return
		}
	}
}

func (s *chunksSubscription) deliver() {
	if s.done {
		return
	}
	for s.next < len(s.chunks) && s.demand.TryTake() {
		c := s.chunks[s.next]
		s.next++
		s.sub.OnNext(c)
	}

	switch {
	case s.illegal.Load():
		s.done = true
		s.sub.OnError(policy.IllegalRequest())
	case s.demand.Disabled():
		s.done = true
	case s.next == len(s.chunks):
		s.done = true
		s.sub.OnComplete()
	}
}
