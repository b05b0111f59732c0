package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/sprachbot/pkg/logging"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrDrainTimeout = errors.New("drain timeout")
)

// LifecycleRunner runs until its context ends or Stop is called, then
// drains once within the configured timeout.
type LifecycleRunner struct {
	state    atomic.Int32
	mu       sync.Mutex
	cancel   context.CancelFunc
	stopping bool
	onceStop sync.Once
	hooks    Hooks
	drainer  Drainer
	stopErr  error
	timeout  time.Duration
	banner   io.Writer
	log      *slog.Logger
}

type Options struct {
	Drainer Drainer
	Hooks   Hooks
	// Timeout bounds the drain; zero means 10s.
	Timeout time.Duration
	// Banner receives the startup banner; nil disables it.
	Banner io.Writer
	Logger *slog.Logger
}

func NewLifecycleRunner(opts Options) *LifecycleRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		hooks:   opts.Hooks,
		drainer: opts.Drainer,
		timeout: opts.Timeout,
		banner:  opts.Banner,
		log:     logging.NewComponentLogger(opts.Logger, "runner"),
	}
}

// Run blocks until ctx is done or Stop is called and returns the drain result.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return ErrInvalidState
	}
	if ctx == nil {
		ctx = context.Background()
	}
	PrintBanner(r.banner)
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		cancel()
		return r.stop()
	}
	r.cancel = cancel
	r.mu.Unlock()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.setState(StateRunning)
	<-runCtx.Done()
	return r.stop()
}

// Stop ends Run, or drains directly when Run was never called.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	r.stopping = true
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		start := time.Now()
		if r.drainer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			done := make(chan error, 1)
			go func() { done <- r.drainer.Drain(ctx) }()
			select {
			case err := <-done:
				r.stopErr = err
			case <-ctx.Done():
				r.stopErr = ErrDrainTimeout
			}
			cancel()
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
		if r.stopErr != nil {
			r.log.Warn("drain_incomplete", slog.String("error", r.stopErr.Error()), slog.Duration("elapsed", time.Since(start)))
			return
		}
		r.log.Info("drained", slog.Duration("elapsed", time.Since(start)))
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return r.state.CompareAndSwap(int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	r.state.Store(int32(s))
}
