package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/consts"
	"github.com/ozontech/bodyflow/flow/flowcontrol"
	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
)

const tracerName = "github.com/ozontech/bodyflow/publisher"

type readerConfig struct {
	ctx       context.Context
	chunkSize int
	exec      types.Executor
	tracer    trace.Tracer
	spanName  string
	log       *zap.Logger
}

type ReaderOption func(*readerConfig)

// WithChunkSize sets the size of the buffer each read fills. Chunks may be
// shorter when the reader returns less.
func WithChunkSize(n int) ReaderOption {
	return func(c *readerConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithExecutor sets where the read loop runs. The default starts a goroutine
// per subscription; policy.SyncExecutor runs it inside Subscribe.
func WithExecutor(exec types.Executor) ReaderOption {
	return func(c *readerConfig) { c.exec = exec }
}

// WithTracer records a span from the first chunk to the terminal signal.
func WithTracer(tracer trace.Tracer, spanName string) ReaderOption {
	return func(c *readerConfig) {
		c.tracer = tracer
		c.spanName = spanName
	}
}

func WithContext(ctx context.Context) ReaderOption {
	return func(c *readerConfig) { c.ctx = ctx }
}

func WithReaderLogger(log *zap.Logger) ReaderOption {
	return func(c *readerConfig) { c.log = log }
}

var goExecutor = types.ExecutorFunc(func(task func()) { go task() })

// Reader publishes the contents of an io.Reader, typically a streamed HTTP
// body, to a single subscriber. A read happens only when the subscriber has
// outstanding demand. If the reader is an io.Closer it is closed once the
// stream terminates or is cancelled.
type Reader struct {
	r          io.Reader
	conf       readerConfig
	subscribed atomic.Bool
}

func FromReader(r io.Reader, opts ...ReaderOption) *Reader {
	conf := readerConfig{
		ctx:       context.Background(),
		chunkSize: consts.DefaultChunkSize,
		exec:      goExecutor,
		tracer:    otel.Tracer(tracerName),
		spanName:  "bodyflow.read",
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(&conf)
	}
	conf.log = conf.log.Named("reader-publisher")
	return &Reader{r: r, conf: conf}
}

func (p *Reader) Subscribe(sub types.Subscriber[[]byte]) {
	if !p.subscribed.CompareAndSwap(false, true) {
		sub.OnSubscribe(policy.NoopSubscription)
		sub.OnError(ErrAlreadySubscribed)
		return
	}

	s := &readerSubscription{
		sub:    sub,
		r:      p.r,
		conf:   &p.conf,
		demand: flowcontrol.NewDemand(),
	}
	sub.OnSubscribe(s)
	p.conf.exec.Execute(s.run)
}

type readerSubscription struct {
	sub    types.Subscriber[[]byte]
	r      io.Reader
	conf   *readerConfig
	demand *flowcontrol.Demand

	illegal   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// touched only by the read loop
	span   trace.Span
	chunks int
	bytes  int64
}

func (s *readerSubscription) Request(n int64) {
	if n <= 0 {
		s.illegal.Store(true)
		s.demand.Disable()
		return
	}
	s.demand.Add(n)
}

// Cancel stops the read loop. Closing the reader unblocks a pending Read.
func (s *readerSubscription) Cancel() {
	s.demand.Disable()
	s.close()
}

func (s *readerSubscription) close() {
	s.closeOnce.Do(func() {
		if c, ok := s.r.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
}

func (s *readerSubscription) run() {
	for {
		if !s.demand.Take() {
			s.stop()
			return
		}

		buf := make([]byte, s.conf.chunkSize)
		n, err := s.r.Read(buf)
		if n > 0 {
			s.onChunk(buf[:n])
		} else {
			s.demand.Add(1)
		}

		switch {
		case err == nil:
		case s.demand.Disabled():
			// read aborted by Cancel closing the reader
			s.stop()
			return
		case errors.Is(err, io.EOF):
			s.complete()
			return
		default:
			s.fail(fmt.Errorf("read body: %w", err))
			return
		}
	}
}

// stop ends a stream whose demand was disabled, by Cancel or by an illegal
// request.
func (s *readerSubscription) stop() {
	if s.illegal.Load() {
		s.fail(policy.IllegalRequest())
		return
	}
	s.finish(nil, true)
}

func (s *readerSubscription) onChunk(chunk []byte) {
	if s.span == nil {
		_, s.span = s.conf.tracer.Start(s.conf.ctx, s.conf.spanName)
	}
	s.chunks++
	s.bytes += int64(len(chunk))
	s.sub.OnNext(chunk)
}

func (s *readerSubscription) complete() {
	s.close()
	if s.closeErr != nil {
		err := fmt.Errorf("close body: %w", s.closeErr)
		s.finish(err, false)
		s.sub.OnError(err)
		return
	}
	s.finish(nil, false)
	s.sub.OnComplete()
}

func (s *readerSubscription) fail(err error) {
	s.close()
	err = multierr.Append(err, s.closeErr)
	s.finish(err, false)
	s.sub.OnError(err)
}

func (s *readerSubscription) finish(err error, cancelled bool) {
	if cancelled {
		s.close()
	}
	s.conf.log.Debug("body stream finished",
		zap.Int("chunks", s.chunks),
		zap.Int64("bytes", s.bytes),
		zap.Bool("cancelled", cancelled),
		zap.Error(err),
	)

	if s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.Int("chunks", s.chunks),
		attribute.Int64("bytes_read", s.bytes),
		attribute.Bool("cancelled", cancelled),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
