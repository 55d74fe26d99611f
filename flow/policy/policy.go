// Package policy holds the flow-control tunables shared by subscribers and
// subscriptions, plus the trivial flow primitives they reuse.
//
// A Policy is built once at startup from a config.Source and passed to the
// components that need it. Invalid tunables never fail startup: they fall back
// to the defaults.
package policy

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ozontech/bodyflow/config"
	"github.com/ozontech/bodyflow/consts"
	"github.com/ozontech/bodyflow/flow/types"
)

var (
	ErrIllegalRequest = errors.New("non-positive subscription request")
	// ErrInvalidArgument is wrapped by the panics of subscribers handed a nil
	// subscription, item or error.
	ErrInvalidArgument = errors.New("invalid argument")
)

type Config struct {
	Prefetch       int
	PrefetchFactor int
}

func DefaultConfig() Config {
	return Config{
		Prefetch:       consts.DefaultPrefetch,
		PrefetchFactor: consts.DefaultPrefetchFactor,
	}
}

type Policy struct {
	prefetch       int
	prefetchFactor int
}

func Default() *Policy {
	return FromConfig(DefaultConfig())
}

// New reads the prefetch tunables from src. A nil src yields the defaults.
func New(src config.Source, log *zap.Logger) *Policy {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("flow-policy")

	conf := DefaultConfig()
	if src != nil {
		if v, ok := lookupInt(src, consts.PrefetchKey, log); ok {
			conf.Prefetch = v
		}
		if v, ok := lookupInt(src, consts.PrefetchFactorKey, log); ok {
			conf.PrefetchFactor = v
		}
	}

	p := FromConfig(conf)
	if p.prefetch != conf.Prefetch {
		log.Debug("invalid prefetch, using default",
			zap.Int("value", conf.Prefetch), zap.Int("default", p.prefetch))
	}
	if p.prefetchFactor != conf.PrefetchFactor {
		log.Debug("invalid prefetch factor, using default",
			zap.Int("value", conf.PrefetchFactor), zap.Int("default", p.prefetchFactor))
	}
	return p
}

// FromConfig validates conf, replacing invalid values with defaults.
func FromConfig(conf Config) *Policy {
	p := &Policy{
		prefetch:       conf.Prefetch,
		prefetchFactor: conf.PrefetchFactor,
	}
	if p.prefetch <= 0 {
		p.prefetch = consts.DefaultPrefetch
	}
	if p.prefetchFactor < 0 || p.prefetchFactor > consts.MaxPrefetchFactor {
		p.prefetchFactor = consts.DefaultPrefetchFactor
	}
	return p
}

func lookupInt(src config.Source, key string, log *zap.Logger) (int, bool) {
	s, ok := src.Lookup(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Debug("malformed integer setting ignored", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return v, true
}

// Prefetch is the number of items a subscriber requests up front.
func (p *Policy) Prefetch() int { return p.prefetch }

// PrefetchFactor is the percentage of the prefetch consumed before requesting more.
func (p *Policy) PrefetchFactor() int { return p.prefetchFactor }

// ReplenishThreshold is the number of consumed items after which a
// prefetching subscriber tops its demand back up. Never less than one.
func (p *Policy) ReplenishThreshold() int {
	// split to keep prefetch*factor from overflowing
	n := p.prefetch/100*p.prefetchFactor + p.prefetch%100*p.prefetchFactor/100
	return max(1, n)
}

// IllegalRequest returns a new error, matching ErrIllegalRequest, that a
// subscription signals when asked for a non-positive number of items.
func IllegalRequest() error {
	return fmt.Errorf("%w", ErrIllegalRequest)
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

// NoopSubscription ignores demand and cancellation. Sources that produce
// nothing, or have already terminated, hand it to their subscriber.
var NoopSubscription types.Subscription = noopSubscription{}

// SyncExecutor runs tasks on the calling goroutine.
var SyncExecutor types.Executor = types.ExecutorFunc(func(task func()) { task() })
