package types

// Subscription links one Publisher to one Subscriber.
type Subscription interface {
	Request(n int64) // allow the publisher to deliver n more items; n <= 0 is a protocol error
	Cancel()         // stop delivery; may be called more than once
}

// Subscriber receives OnSubscribe, then OnNext*, then at most one of OnError
// or OnComplete. Calls for one subscription never overlap.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(item T)
	OnError(err error)
	OnComplete()
}

type Publisher[T any] interface {
	Subscribe(s Subscriber[T]) // attaches exactly one subscriber
}

type Executor interface {
	Execute(task func())
}

type ExecutorFunc func(task func())

func (f ExecutorFunc) Execute(task func()) { f(task) }
