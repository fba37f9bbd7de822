// Package reactor implements a single-threaded, readiness-based event loop.
//
// Every registered Source gets a watcher goroutine that only blocks until the
// source becomes readable and then parks until the loop has run the handler.
// Handlers themselves always run on the goroutine that calls RunOnce or
// RunForever, one at a time, so state touched only from handlers needs no locks.
package reactor

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyRegistered - the source already has an active handler.
	ErrAlreadyRegistered = errors.New("reactor: source already registered")

	// ErrNotRegistered - the source is unknown to the reactor.
	ErrNotRegistered = errors.New("reactor: source not registered")

	// ErrStopped - the reactor was stopped and accepts no more work.
	ErrStopped = errors.New("reactor: stopped")
)

// Source is a watched input. WaitReadable blocks until a read would not block,
// including the case where the next read reports end of stream or an error.
type Source interface {
	WaitReadable() error
}

// Handler is invoked on the loop goroutine when its source is readable.
type Handler func(src Source)

type watch struct {
	src     Source
	handler Handler
	resume  chan struct{}
	quit    chan struct{}
}

// Reactor dispatches ready sources to their handlers.
type Reactor struct {
	mu      sync.Mutex
	watches map[Source]*watch

	ready chan *watch
	tasks chan func()

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds an idle Reactor.
func New() *Reactor {
	return &Reactor{
		watches: make(map[Source]*watch),
		ready:   make(chan *watch),
		tasks:   make(chan func()),
		stop:    make(chan struct{}),
	}
}

// Register starts watching src for readability.
func (r *Reactor) Register(src Source, handler Handler) error {
	if src == nil || handler == nil {
		return errors.New("reactor: nil source or handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped() {
		return ErrStopped
	}
	if _, ok := r.watches[src]; ok {
		return ErrAlreadyRegistered
	}

	w := &watch{
		src:     src,
		handler: handler,
		resume:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	r.watches[src] = w
	go r.pump(w)
	return nil
}

// Unregister stops watching src. A handler of src that is already part of the
// current batch will not run.
func (r *Reactor) Unregister(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[src]
	if !ok {
		return ErrNotRegistered
	}
	delete(r.watches, src)
	close(w.quit)
	return nil
}

// Len returns the number of watched sources.
func (r *Reactor) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

// Post hands task over to the loop goroutine and returns once the loop has
// picked it up. It must not be called from a handler or a posted task.
func (r *Reactor) Post(task func()) error {
	return r.PostContext(context.Background(), task)
}

// PostContext is Post bounded by ctx. It returns ctx.Err() when the loop did
// not pick task up in time, in which case task never runs.
func (r *Reactor) PostContext(ctx context.Context, task func()) error {
	select {
	case r.tasks <- task:
		return nil
	case <-r.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop unregisters every source and makes the running loop return.
// It is safe to call more than once and from any goroutine.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for src, w := range r.watches {
			delete(r.watches, src)
			close(w.quit)
		}
		close(r.stop)
	})
}

// RunOnce blocks until at least one source is ready or a task is posted, then
// dispatches every source that is ready at that moment before returning.
func (r *Reactor) RunOnce(ctx context.Context) error {
	var batch []*watch

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stop:
		return ErrStopped
	case task := <-r.tasks:
		task()
		return nil
	case w := <-r.ready:
		batch = append(batch, w)
	}

drain:
	for {
		select {
		case w := <-r.ready:
			batch = append(batch, w)
		default:
			break drain
		}
	}

	for _, w := range batch {
		if !r.active(w) {
			continue
		}
		w.handler(w.src)
		if r.active(w) {
			w.resume <- struct{}{}
		}
	}
	return nil
}

// RunForever runs the loop until Stop is called or ctx is done.
// It returns nil after Stop and ctx.Err() on cancellation.
func (r *Reactor) RunForever(ctx context.Context) error {
	for {
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
	}
}

func (r *Reactor) pump(w *watch) {
	for {
		// Errors count as readiness: the handler's own read will observe them.
		_ = w.src.WaitReadable()

		select {
		case r.ready <- w:
		case <-w.quit:
			return
		}

		select {
		case <-w.resume:
		case <-w.quit:
			return
		}
	}
}

func (r *Reactor) active(w *watch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watches[w.src] == w
}

func (r *Reactor) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
