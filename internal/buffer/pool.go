package buffer

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

const (
	minClassShift = 6  // 64 bytes
	maxClassShift = 16 // 65536 bytes
	numClasses    = maxClassShift - minClassShift + 1

	// DefaultMaxFree is the number of idle nodes kept per size class.
	DefaultMaxFree = 1024
)

// AllocStats is a snapshot of allocator counters.
type AllocStats struct {
	Hits        uint64 // requests served from a free list
	Misses      uint64 // requests that allocated fresh memory
	Outstanding int64  // nodes handed out and not yet released
	Idle        int    // nodes currently parked on free lists
}

type freeList struct {
	mu    sync.Mutex
	nodes []*Node
}

// Allocator hands out nodes whose buffers are rounded up to a power-of-two
// size class and keeps released nodes on per-class free lists. Once warm,
// Get and Put only touch a short mutex-protected slice operation.
type Allocator struct {
	classes [numClasses]freeList
	maxFree int

	hits        atomic.Uint64
	misses      atomic.Uint64
	outstanding atomic.Int64
}

// NewAllocator creates an allocator keeping up to maxFree idle nodes per
// size class. A non-positive maxFree selects DefaultMaxFree.
func NewAllocator(maxFree int) *Allocator {
	if maxFree <= 0 {
		maxFree = DefaultMaxFree
	}
	a := &Allocator{maxFree: maxFree}
	for i := range a.classes {
		a.classes[i].nodes = make([]*Node, 0, min(maxFree, 64))
	}
	return a
}

// ClassSize returns the buffer capacity used for a payload of size bytes,
// or 0 when size exceeds MaxPayload.
func ClassSize(size int) int {
	c := classOf(size)
	if c < 0 {
		return 0
	}
	return 1 << (c + minClassShift)
}

func classOf(size int) int {
	if size < 0 || size > MaxPayload {
		return -1
	}
	if size <= 1<<minClassShift {
		return 0
	}
	return bits.Len(uint(size-1)) - minClassShift
}

// Get returns a node with a payload of exactly size bytes. The payload
// content is unspecified. Sizes above MaxPayload fail with
// types.ErrRecordTooLarge.
func (a *Allocator) Get(size int) (*Node, error) {
	c := classOf(size)
	if c < 0 {
		return nil, types.ErrRecordTooLarge
	}

	fl := &a.classes[c]
	var n *Node
	fl.mu.Lock()
	if k := len(fl.nodes); k > 0 {
		n = fl.nodes[k-1]
		fl.nodes[k-1] = nil
		fl.nodes = fl.nodes[:k-1]
	}
	fl.mu.Unlock()

	if n != nil {
		a.hits.Add(1)
	} else {
		a.misses.Add(1)
		n = &Node{buf: make([]byte, 1<<(c+minClassShift)), cls: int8(c)}
	}
	a.outstanding.Add(1)
	n.size = uint16(size)
	return n, nil
}

// Put releases n. The caller must not touch n afterwards.
func (a *Allocator) Put(n *Node) {
	if n == nil {
		return
	}
	a.outstanding.Add(-1)
	n.next = nil
	n.size = 0
	n.Level = 0
	n.Binary = false
	n.Deferred = false
	n.Stamp = time.Time{}
	n.Ident = ""
	n.Loc = types.Location{}

	fl := &a.classes[n.cls]
	fl.mu.Lock()
	if len(fl.nodes) < a.maxFree {
		fl.nodes = append(fl.nodes, n)
	}
	fl.mu.Unlock()
}

// Stats returns the current counters.
func (a *Allocator) Stats() AllocStats {
	s := AllocStats{
		Hits:        a.hits.Load(),
		Misses:      a.misses.Load(),
		Outstanding: a.outstanding.Load(),
	}
	for i := range a.classes {
		fl := &a.classes[i]
		fl.mu.Lock()
		s.Idle += len(fl.nodes)
		fl.mu.Unlock()
	}
	return s
}
