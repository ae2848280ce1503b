package buffer

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"
)

func pushValue(t testing.TB, s *Stack, a *Allocator, producer, seq uint32) {
	n, err := a.Get(8)
	if err != nil {
		t.Errorf("Get: %v", err)
		return
	}
	binary.BigEndian.PutUint32(n.Data()[0:4], producer)
	binary.BigEndian.PutUint32(n.Data()[4:8], seq)
	s.Push(n)
}

func TestStack_PopAllReturnsPushOrder(t *testing.T) {
	s := NewStack()
	a := NewAllocator(0)

	for i := uint32(0); i < 10; i++ {
		pushValue(t, s, a, 0, i)
	}
	if s.Version() != 10 {
		t.Errorf("Version() = %d, want 10", s.Version())
	}

	var got []uint32
	for n := s.PopAll(); n != nil; {
		next := n.Next()
		got = append(got, binary.BigEndian.Uint32(n.Data()[4:8]))
		a.Put(n)
		n = next
	}

	if len(got) != 10 {
		t.Fatalf("drained %d nodes, want 10", len(got))
	}
	for i, v := range got {
		if v != uint32(i) {
			t.Fatalf("position %d holds %d; order = %v", i, v, got)
		}
	}
	if !s.Empty() {
		t.Error("stack should be empty after PopAll")
	}
	if s.Version() != 10 {
		t.Errorf("Version() = %d after PopAll, want it to count pushes only", s.Version())
	}
	if s.PopAll() != nil {
		t.Error("PopAll on an empty stack should return nil")
	}
}

func TestStack_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 2000

	s := NewStack()
	a := NewAllocator(0)
	done := make(chan struct{})
	last := make([]int64, producers)
	for i := range last {
		last[i] = -1
	}
	total := 0

	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for {
			finished := false
			select {
			case <-done:
				finished = true
			default:
			}
			s.Wait(5 * time.Millisecond)
			for n := s.PopAll(); n != nil; {
				next := n.Next()
				p := binary.BigEndian.Uint32(n.Data()[0:4])
				seq := int64(binary.BigEndian.Uint32(n.Data()[4:8]))
				if seq <= last[p] {
					t.Errorf("producer %d: seq %d after %d", p, seq, last[p])
				}
				last[p] = seq
				total++
				a.Put(n)
				n = next
			}
			if finished && s.Empty() {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p uint32) {
			defer wg.Done()
			for i := uint32(0); i < perProducer; i++ {
				pushValue(t, s, a, p, i)
			}
		}(uint32(p))
	}
	wg.Wait()
	close(done)
	consumer.Wait()

	if total != producers*perProducer {
		t.Errorf("consumed %d nodes, want %d", total, producers*perProducer)
	}
	if out := a.Stats().Outstanding; out != 0 {
		t.Errorf("Outstanding = %d after draining, want 0", out)
	}
}

func TestStack_WaitTimesOutAndWakes(t *testing.T) {
	s := NewStack()

	start := time.Now()
	if s.Wait(20 * time.Millisecond) {
		t.Error("Wait on an idle stack should time out")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Wait returned after %v, before the timeout", elapsed)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Signal()
	}()
	if !s.Wait(5 * time.Second) {
		t.Error("Wait should be woken by Signal")
	}

	a := NewAllocator(0)
	pushValue(t, s, a, 0, 0)
	if !s.Wait(time.Millisecond) {
		t.Error("Wait should return immediately when the stack is not empty")
	}
}
