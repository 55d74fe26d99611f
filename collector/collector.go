// Package collector aggregates a stream of body chunks into one buffer.
//
// A Collector subscribes to exactly one publisher, requests unbounded demand
// and keeps every chunk until the stream terminates, so it is meant for bodies
// that fit in memory. Streaming consumers with bounded demand live in
// flow/prefetch.
//
// Collector does no locking around its chunk list: it relies on the publisher
// never calling it concurrently for one subscription.
package collector

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
	"github.com/ozontech/bodyflow/future"
	"github.com/ozontech/bodyflow/utils/pool"
)

var ErrInvalidArgument = policy.ErrInvalidArgument

var chunksPool = pool.NewSlicePool[[]byte](16, 64)

type State int

const (
	StateUnsubscribed State = iota
	StateActive
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminated() bool {
	return s == StateCompleted || s == StateFailed
}

type Option func(*Collector)

func WithLogger(log *zap.Logger) Option {
	return func(c *Collector) { c.log = log }
}

type Collector struct {
	state  State
	chunks [][]byte
	result *future.Future[[]byte]
	log    *zap.Logger
}

var _ types.Subscriber[[]byte] = (*Collector)(nil)

func New(opts ...Option) *Collector {
	c := &Collector{
		result: future.New[[]byte](),
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("collector")
	return c
}

func (c *Collector) State() State {
	return c.state
}

// Result may be called before or after subscription.
func (c *Collector) Result() *future.Future[[]byte] {
	return c.result
}

func (c *Collector) OnSubscribe(s types.Subscription) {
	if s == nil {
		panic(fmt.Errorf("%w: nil subscription", ErrInvalidArgument))
	}
	if c.state != StateUnsubscribed {
		c.log.Warn("subscription after start ignored", zap.Stringer("state", c.state))
		return
	}
	c.state = StateActive
	c.chunks = chunksPool.Acquire()
	s.Request(math.MaxInt64)
}

// OnNext retains chunk until completion; the publisher must not reuse it.
func (c *Collector) OnNext(chunk []byte) {
	if chunk == nil {
		panic(fmt.Errorf("%w: nil chunk", ErrInvalidArgument))
	}
	if c.state != StateActive {
		c.log.Warn("chunk outside of active subscription dropped",
			zap.Stringer("state", c.state), zap.Int("size", len(chunk)))
		return
	}
	c.chunks = append(c.chunks, chunk)
}

func (c *Collector) OnError(err error) {
	if err == nil {
		panic(fmt.Errorf("%w: nil error", ErrInvalidArgument))
	}
	if c.state.Terminated() {
		c.log.Warn("error after termination dropped", zap.Stringer("state", c.state), zap.Error(err))
		return
	}
	c.state = StateFailed
	c.release()
	if !c.result.Fail(err) {
		c.log.Error("result resolved twice", zap.Error(err))
	}
}

func (c *Collector) OnComplete() {
	if c.state.Terminated() {
		c.log.Warn("completion after termination dropped", zap.Stringer("state", c.state))
		return
	}
	c.state = StateCompleted
	body := Concat(c.chunks)
	c.release()
	if !c.result.Complete(body) {
		c.log.Error("result resolved twice", zap.Int("size", len(body)))
	}
}

func (c *Collector) release() {
	chunksPool.Release(c.chunks)
	c.chunks = nil
}

// Concat copies chunks, in order, into one buffer of exactly their total length.
func Concat(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	b := make([]byte, n)
	off := 0
	for _, c := range chunks {
		off += copy(b[off:], c)
	}
	return b
}
