package snoochat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/NeboLoop/snoochat-go-sdk/frame"
)

// Hook is a consumer of inbound frames. Returning handled=true stops the
// chain for that frame. A hook that returns an error or panics counts as
// not handled; the error is logged and the next hook runs.
type Hook func(ctx context.Context, f frame.Frame) (handled bool, err error)

// Dispatcher runs every inbound frame through an ordered, append-only chain
// of hooks on a fixed pool of worker goroutines.
//
// With one worker, frames are handled one at a time in the order they were
// read off the socket. With more, frames are picked up in order but their
// hooks may run concurrently and finish in any order. Submit blocks while
// the queue is full, which pushes back on the socket reader instead of
// dropping frames.
type Dispatcher struct {
	log zerolog.Logger

	mu    sync.RWMutex
	hooks []Hook

	queue  chan frame.Frame
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines consuming a queue of queueSize.
func NewDispatcher(log zerolog.Logger, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		log:    log,
		queue:  make(chan frame.Frame, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// AddHook appends h to the chain. Hooks cannot be removed.
func (d *Dispatcher) AddHook(h Hook) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.hooks = append(d.hooks, h)
	d.mu.Unlock()
}

// Len returns the number of registered hooks.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks)
}

// Submit queues f for the workers. It returns false once the dispatcher
// is closed.
func (d *Dispatcher) Submit(f frame.Frame) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- f:
		return true
	case <-d.done:
		return false
	}
}

// Run passes f through the chain on the calling goroutine and returns the
// index of the hook that handled it, or -1.
func (d *Dispatcher) Run(ctx context.Context, f frame.Frame) int {
	d.mu.RLock()
	hooks := d.hooks[:len(d.hooks):len(d.hooks)]
	d.mu.RUnlock()

	for i, h := range hooks {
		handled, err := invoke(ctx, h, f)
		if err != nil {
			d.log.Warn().Err(err).Int("hook", i).Stringer("frame", f.Kind).Msg("hook failed")
			continue
		}
		if handled {
			return i
		}
	}
	return -1
}

// Stop tells the workers to exit without waiting for them. Queued frames
// that no worker has picked up are discarded and hooks already running see
// their context cancelled. It is safe to call from a hook.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.done)
		d.cancel()
	})
}

// Close is Stop followed by waiting for running hooks to return. Calling it
// from a hook deadlocks; use Stop there.
func (d *Dispatcher) Close() {
	d.Stop()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case f := <-d.queue:
			d.Run(d.ctx, f)
		case <-d.done:
			return
		}
	}
}

func invoke(ctx context.Context, h Hook, f frame.Frame) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled, err = false, fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h(ctx, f)
}
