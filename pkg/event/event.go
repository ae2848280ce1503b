// Package event implements ordered subscriber channels used by the
// front-end to route records to back-ends.
//
// A Channel keeps its bindings in subscription order. Each Binding carries
// a stable token and a sink; a Binding whose sink is nil stays in the
// channel but is skipped during emission, which allows cheap temporary
// disabling. Emission iterates over an immutable snapshot of the bindings,
// so a sink may unbind itself or any other binding while it is being
// invoked without disturbing the pass in progress.
package event

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Channel is an ordered list of subscribers of sink type S. The zero value
// is an empty channel ready for use.
type Channel[S any] struct {
	mu    sync.Mutex
	subs  atomic.Pointer[[]*Binding[S]]
	token uint64
}

// Binding links one sink to one channel. A Binding is in at most one
// channel at a time. The zero value is unbound.
type Binding[S any] struct {
	mu    sync.Mutex
	ch    *Channel[S]
	token uint64
	live  atomic.Bool
	sink  atomic.Pointer[S]
}

// Bind attaches sink to c and returns the new binding.
func (c *Channel[S]) Bind(sink S) *Binding[S] {
	b := new(Binding[S])
	b.Bind(c, sink)
	return b
}

// Len returns the number of bound subscribers, including disabled ones.
func (c *Channel[S]) Len() int {
	if p := c.subs.Load(); p != nil {
		return len(*p)
	}
	return 0
}

// Active reports whether at least one subscriber is bound. It costs a
// single atomic load.
func (c *Channel[S]) Active() bool {
	p := c.subs.Load()
	return p != nil && len(*p) > 0
}

// Tokens returns the tokens of the current subscribers in binding order.
func (c *Channel[S]) Tokens() []uint64 {
	snap := c.snapshot()
	out := make([]uint64, len(snap))
	for i, b := range snap {
		out[i] = b.token
	}
	return out
}

// Emit calls invoke for every bound subscriber with a non-nil sink, in
// binding order. With bookmark set, a binding removed by an earlier
// invocation of the same pass is skipped; without it the caller promises
// that invoke never mutates the channel.
func (c *Channel[S]) Emit(invoke func(S), bookmark bool) {
	for _, b := range c.snapshot() {
		if bookmark && !b.live.Load() {
			continue
		}
		if s := b.sink.Load(); s != nil {
			invoke(*s)
		}
	}
}

// Clear unbinds every subscriber.
func (c *Channel[S]) Clear() {
	for _, b := range c.snapshot() {
		b.Unbind()
	}
}

func (c *Channel[S]) snapshot() []*Binding[S] {
	if p := c.subs.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *Channel[S]) add(b *Binding[S]) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	old := c.snapshot()
	next := make([]*Binding[S], len(old), len(old)+1)
	copy(next, old)
	next = append(next, b)
	c.subs.Store(&next)
	return c.token
}

func (c *Channel[S]) remove(b *Binding[S]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.snapshot()
	for i, x := range old {
		if x != b {
			continue
		}
		next := make([]*Binding[S], 0, len(old)-1)
		next = append(next, old[:i]...)
		next = append(next, old[i+1:]...)
		c.subs.Store(&next)
		return
	}
}

// Bind attaches sink to ch, detaching b from any channel it was bound to.
func (b *Binding[S]) Bind(ch *Channel[S], sink S) {
	b.Unbind()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.setSink(sink)
	b.ch = ch
	b.live.Store(true)
	b.token = ch.add(b)
}

// Unbind detaches b from its channel. It is safe to call repeatedly and
// from within an emission.
func (b *Binding[S]) Unbind() {
	b.mu.Lock()
	ch := b.ch
	b.ch = nil
	b.live.Store(false)
	b.mu.Unlock()

	if ch != nil {
		ch.remove(b)
	}
}

// Bound reports whether b is currently attached to a channel.
func (b *Binding[S]) Bound() bool {
	return b.live.Load()
}

// Token returns the token assigned at the most recent Bind.
func (b *Binding[S]) Token() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// SetSink replaces the sink without changing b's position. A nil sink
// disables the binding while keeping it in the channel.
func (b *Binding[S]) SetSink(sink S) {
	b.setSink(sink)
}

// Enabled reports whether b holds a non-nil sink.
func (b *Binding[S]) Enabled() bool {
	return b.sink.Load() != nil
}

func (b *Binding[S]) setSink(sink S) {
	if isNil(sink) {
		b.sink.Store(nil)
		return
	}
	b.sink.Store(&sink)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
