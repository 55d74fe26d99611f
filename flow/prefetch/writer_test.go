package prefetch_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/prefetch"
	"github.com/ozontech/bodyflow/flow/types"
	"github.com/ozontech/bodyflow/publisher"
)

var errBrand = errors.New("brand error")

// countingPublisher records every Request made by its subscriber.
type countingPublisher struct {
	inner    types.Publisher[[]byte]
	requests []int64
	cancels  int
}

func (p *countingPublisher) Subscribe(s types.Subscriber[[]byte]) {
	p.inner.Subscribe(&countingSubscriber{s, p})
}

type countingSubscriber struct {
	types.Subscriber[[]byte]
	p *countingPublisher
}

func (s *countingSubscriber) OnSubscribe(sub types.Subscription) {
	s.Subscriber.OnSubscribe(&countingSubscription{sub, s.p})
}

type countingSubscription struct {
	types.Subscription
	p *countingPublisher
}

func (s *countingSubscription) Request(n int64) {
	s.p.requests = append(s.p.requests, n)
	s.Subscription.Request(n)
}

func (s *countingSubscription) Cancel() {
	s.p.cancels++
	s.Subscription.Cancel()
}

func chunksOf(n int) ([][]byte, []byte) {
	var all []byte
	chunks := make([][]byte, n)
	for i := range chunks {
		chunks[i] = []byte{byte(i), byte(i >> 8)}
		all = append(all, chunks[i]...)
	}
	return chunks, all
}

func TestWriter(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	chunks, want := chunksOf(20)
	p := &countingPublisher{inner: publisher.FromChunks(chunks...)}
	pol := policy.FromConfig(policy.Config{Prefetch: 4, PrefetchFactor: 50})

	var out bytes.Buffer
	n, err := prefetch.Stream(p, &out, pol)
	a.NoError(err)
	a.Equal(int64(len(want)), n)
	a.Equal(want, out.Bytes())

	a.Equal(int64(4), p.requests[0])
	for _, r := range p.requests[1:] {
		a.Equal(int64(2), r)
	}
	a.Zero(p.cancels)
}

func TestWriterWriteError(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	chunks, _ := chunksOf(10)
	p := &countingPublisher{inner: publisher.FromChunks(chunks...)}

	w := prefetch.NewWriter(failingWriter{}, policy.Default())
	p.Subscribe(w)
	_, err := w.Result().Join()
	a.ErrorIs(err, errBrand)
	a.Equal(1, p.cancels)
}

func TestWriterStreamError(t *testing.T) {
	t.Parallel()
	_, err := prefetch.Stream(publisher.Failed(errBrand), &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, errBrand)
}

func TestWriterBoundedDemand(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		pol := policy.FromConfig(policy.Config{
			Prefetch:       rapid.IntRange(1, 64).Draw(t, "prefetch"),
			PrefetchFactor: rapid.IntRange(0, 100).Draw(t, "factor"),
		})
		chunks := rapid.SliceOf(rapid.SliceOfN(rapid.Byte(), 1, 8)).Draw(t, "chunks")

		var want []byte
		for _, c := range chunks {
			want = append(want, c...)
		}

		var out bytes.Buffer
		w := prefetch.NewWriter(&out, pol)
		publisher.FromChunks(chunks...).Subscribe(w)
		n, err := w.Result().Join()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(want)) || !bytes.Equal(out.Bytes(), want) {
			t.Fatalf("got %q, want %q", out.Bytes(), want)
		}
		if w.MaxOutstanding() > int64(pol.Prefetch()) {
			t.Fatalf("outstanding demand %d exceeds prefetch %d", w.MaxOutstanding(), pol.Prefetch())
		}
	})
}

func TestWriterInvalidArguments(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	var out bytes.Buffer
	w := prefetch.NewWriter(&out, policy.Default())
	assertInvalid(t, func() { w.OnSubscribe(nil) })

	p := &countingPublisher{inner: publisher.FromChunks([]byte("a"))}
	w = prefetch.NewWriter(&out, policy.Default())
	assertInvalid(t, func() { w.OnNext(nil) })
	assertInvalid(t, func() { w.OnError(nil) })

	p.Subscribe(w)
	n, err := w.Result().Join()
	a.NoError(err)
	a.Equal(int64(1), n)
	a.Equal("a", out.String())
}

func assertInvalid(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is %T", r)
		assert.ErrorIs(t, err, policy.ErrInvalidArgument)
	}()
	fn()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errBrand }
