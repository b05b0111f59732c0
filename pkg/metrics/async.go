package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver decouples event producers from a slow observer. Events are
// dropped, and counted, when the buffer is full.
type AsyncObserver struct {
	inner   Observer
	mu      sync.RWMutex
	closed  bool
	events  chan MetricsEvent
	dropped atomic.Int64
	done    chan struct{}
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner:  OrNoop(inner),
		events: make(chan MetricsEvent, buffer),
		done:   make(chan struct{}),
	}
	go a.forward()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (a *AsyncObserver) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the buffer is drained.
// It is safe to call more than once.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncObserver) forward() {
	defer close(a.done)
	for ev := range a.events {
		a.inner.RecordEvent(ev)
	}
}
