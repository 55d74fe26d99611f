// Package prefetch implements a streaming subscriber that keeps at most
// Prefetch chunks of demand outstanding and tops it up after every
// ReplenishThreshold consumed chunks.
package prefetch

import (
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
	"github.com/ozontech/bodyflow/future"
)

type Option func(*Writer)

func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// Writer copies each chunk to an io.Writer as it arrives. Result resolves with
// the number of bytes written, or with the first write or stream error.
type Writer struct {
	w      io.Writer
	policy *policy.Policy
	log    *zap.Logger

	sub         types.Subscription
	consumed    int
	outstanding int
	written     int64
	done        bool
	result      *future.Future[int64]

	maxOutstanding atomic.Int64
}

var _ types.Subscriber[[]byte] = (*Writer)(nil)

func NewWriter(w io.Writer, p *policy.Policy, opts ...Option) *Writer {
	if p == nil {
		p = policy.Default()
	}
	pw := &Writer{
		w:      w,
		policy: p,
		log:    zap.NewNop(),
		result: future.New[int64](),
	}
	for _, o := range opts {
		o(pw)
	}
	pw.log = pw.log.Named("prefetch-writer")
	return pw
}

func (w *Writer) Result() *future.Future[int64] {
	return w.result
}

// MaxOutstanding reports the highest demand that was outstanding at once.
func (w *Writer) MaxOutstanding() int64 {
	return w.maxOutstanding.Load()
}

func (w *Writer) OnSubscribe(s types.Subscription) {
	if s == nil {
		panic(fmt.Errorf("%w: nil subscription", policy.ErrInvalidArgument))
	}
	if w.sub != nil {
		s.Cancel()
		return
	}
	w.sub = s
	w.request(w.policy.Prefetch())
}

func (w *Writer) OnNext(chunk []byte) {
	if chunk == nil {
		panic(fmt.Errorf("%w: nil chunk", policy.ErrInvalidArgument))
	}
	if w.done {
		return
	}
	w.outstanding--

	n, err := w.w.Write(chunk)
	w.written += int64(n)
	if err != nil {
		w.done = true
		w.sub.Cancel()
		w.result.Fail(fmt.Errorf("write chunk: %w", err))
		return
	}

	w.consumed++
	if threshold := w.policy.ReplenishThreshold(); w.consumed >= threshold {
		w.consumed = 0
		w.request(threshold)
	}
}

func (w *Writer) OnError(err error) {
	if err == nil {
		panic(fmt.Errorf("%w: nil error", policy.ErrInvalidArgument))
	}
	if w.done {
		return
	}
	w.done = true
	w.log.Debug("stream failed", zap.Int64("written", w.written), zap.Error(err))
	w.result.Fail(err)
}

func (w *Writer) OnComplete() {
	if w.done {
		return
	}
	w.done = true
	w.log.Debug("stream complete", zap.Int64("written", w.written))
	w.result.Complete(w.written)
}

func (w *Writer) request(n int) {
	w.outstanding += n
	if int64(w.outstanding) > w.maxOutstanding.Load() {
		w.maxOutstanding.Store(int64(w.outstanding))
	}
	w.sub.Request(int64(n))
}

// Stream subscribes a new Writer to p and waits for the stream to end.
func Stream(p types.Publisher[[]byte], w io.Writer, pol *policy.Policy, opts ...Option) (int64, error) {
	pw := NewWriter(w, pol, opts...)
	p.Subscribe(pw)
	return pw.Result().Join()
}
