// Package buffer provides the queue and memory recycling used by the
// asynchronous file back-end: a lock-free multi-producer stack of record
// nodes drained in whole batches by a single consumer, and a size-class
// allocator that recycles node memory.
package buffer

import (
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// MaxPayload is the largest payload a node can carry. The payload length
// is stored in 16 bits.
const MaxPayload = 1<<16 - 1

// Node is one in-flight record. A node is owned by exactly one party at a
// time: the producer that filled it, the stack, or the consumer that
// drained it.
type Node struct {
	next *Node
	size uint16
	buf  []byte
	cls  int8

	// Level of the record.
	Level types.Level
	// Binary marks raw records written without a prefix.
	Binary bool
	// Deferred marks a node whose payload is only the message body; the
	// consumer renders the prefix from the fields below.
	Deferred bool
	Stamp    time.Time
	Ident    string
	Loc      types.Location
}

// Data returns the payload. Its length always equals the node's size.
func (n *Node) Data() []byte { return n.buf[:n.size] }

// Len returns the payload length.
func (n *Node) Len() int { return int(n.size) }

// Next returns the following node of a drained batch.
func (n *Node) Next() *Node { return n.next }

// Stack is a lock-free LIFO of nodes. Any number of goroutines may Push
// concurrently; a single consumer removes every node at once with PopAll.
// Because nodes are never removed one at a time, the head CAS cannot
// suffer from ABA, so the head needs no tag.
type Stack struct {
	head    atomic.Pointer[Node]
	// version counts pushes for diagnostics; it takes no part in the CAS.
	version atomic.Uint64
	wake    chan struct{}

	// consumer only
	timer *time.Timer
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{wake: make(chan struct{}, 1)}
}

// Push adds n to the stack. It never blocks. The consumer is signalled
// when the stack goes from empty to non-empty.
func (s *Stack) Push(n *Node) {
	for {
		old := s.head.Load()
		n.next = old
		if s.head.CompareAndSwap(old, n) {
			s.version.Add(1)
			if old == nil {
				s.Signal()
			}
			return
		}
	}
}

// PopAll atomically takes every node and returns them in push order.
// Nodes pushed by one goroutine keep their relative order; nodes from
// different goroutines are ordered by whichever CAS won first.
func (s *Stack) PopAll() *Node {
	var prev *Node
	for n := s.head.Swap(nil); n != nil; {
		next := n.next
		n.next = prev
		prev = n
		n = next
	}
	return prev
}

// Empty reports whether the stack holds no nodes.
func (s *Stack) Empty() bool {
	return s.head.Load() == nil
}

// Version counts successful pushes since creation. It is diagnostic only
// and is not read by Push or PopAll.
func (s *Stack) Version() uint64 {
	return s.version.Load()
}

// Signal wakes the consumer without blocking. Pending signals coalesce.
func (s *Stack) Signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the stack is signalled or timeout elapses. It reports
// false on timeout. Only the consumer may call Wait.
func (s *Stack) Wait(timeout time.Duration) bool {
	if !s.Empty() {
		return true
	}
	if s.timer == nil {
		s.timer = time.NewTimer(timeout)
	} else {
		s.timer.Reset(timeout)
	}
	select {
	case <-s.wake:
		s.timer.Stop()
		return true
	case <-s.timer.C:
		return false
	}
}
