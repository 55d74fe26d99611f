package flowcontrol

import (
	"math"
	"sync"
)

// Demand counts the items a subscriber has requested but not yet received.
// Requests saturate at math.MaxInt64, which means "unbounded".
type Demand struct {
	n    int64
	cond *sync.Cond
	ok   bool
}

func NewDemand() *Demand {
	return &Demand{
		cond: sync.NewCond(&sync.Mutex{}),
		ok:   true,
	}
}

// Take waits until at least one item may be delivered and consumes it.
// It returns false once the demand has been disabled.
func (d *Demand) Take() bool {
	cond := d.cond

	cond.L.Lock()
	defer cond.L.Unlock()

	for d.n == 0 && d.ok {
		cond.Wait()
	}
	if !d.ok {
		return false
	}
	if d.n != math.MaxInt64 {
		d.n--
	}
	return true
}

// TryTake consumes one item of demand without waiting.
func (d *Demand) TryTake() bool {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	if !d.ok || d.n == 0 {
		return false
	}
	if d.n != math.MaxInt64 {
		d.n--
	}
	return true
}

func (d *Demand) Add(n int64) {
	if n <= 0 {
		return
	}
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	if d.n > math.MaxInt64-n {
		d.n = math.MaxInt64
	} else {
		d.n += n
	}
	d.cond.Broadcast()
}

func (d *Demand) Pending() int64 {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	return d.n
}

// Disable wakes every waiter; Take returns false from now on.
func (d *Demand) Disable() {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	d.ok = false
	d.cond.Broadcast()
}

func (d *Demand) Disabled() bool {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	return !d.ok
}
