package sprachbot

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrLaneFull   = errors.New("conversation queue full")
	ErrLaneClosed = errors.New("engine is draining")
)

// lanes runs jobs in submission order per key, one at a time, while
// different keys run in parallel. A key's goroutine exits once its queue is
// empty, so idle conversations hold no resources.
type lanes struct {
	mu     sync.Mutex
	active map[string]*lane
	size   int
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	jobs []func()
}

func newLanes(size int) *lanes {
	if size <= 0 {
		size = 16
	}
	return &lanes{active: make(map[string]*lane), size: size}
}

func (l *lanes) submit(key string, job func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLaneClosed
	}
	ln, ok := l.active[key]
	if !ok {
		ln = &lane{}
		l.active[key] = ln
		l.wg.Add(1)
		go l.run(key, ln)
	}
	if len(ln.jobs) >= l.size {
		return ErrLaneFull
	}
	ln.jobs = append(ln.jobs, job)
	return nil
}

func (l *lanes) run(key string, ln *lane) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		if len(ln.jobs) == 0 {
			delete(l.active, key)
			l.mu.Unlock()
			return
		}
		job := ln.jobs[0]
		ln.jobs[0] = nil
		ln.jobs = ln.jobs[1:]
		l.mu.Unlock()
		job()
	}
}

func (l *lanes) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// close rejects further jobs and waits for queued ones to finish.
func (l *lanes) close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
