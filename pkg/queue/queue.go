// Package queue bridges the resolver's asynchronous decode stage to a
// synchronous, single-threaded build stage: decode completions enqueue
// build jobs from any goroutine; a consumer that owns the host build
// context later drains and executes them on its own thread.
package queue

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// WorkItem is one pending build job bound to context type C. Execute
// must only be called by the single consumer that owns a C.
type WorkItem[C any] struct {
	run func(ctx C)
}

// Execute runs the job against ctx, fulfilling its Handle.
func (w WorkItem[C]) Execute(ctx C) { w.run(ctx) }

// Handle is the producer-visible result slot for one queued job. Wait
// blocks until the consumer has executed the job (or ctx is canceled
// first); it never blocks past that point.
type Handle[A any] struct {
	once  sync.Once
	ready chan struct{}
	value A
	err   error
}

func newHandle[A any]() *Handle[A] {
	return &Handle[A]{ready: make(chan struct{})}
}

func (h *Handle[A]) fulfill(v A, err error) {
	h.once.Do(func() {
		h.value = v
		h.err = err
		close(h.ready)
	})
}

// Wait blocks until the job has run or ctx is done.
func (h *Handle[A]) Wait(ctx context.Context) (A, error) {
	select {
	case <-h.ready:
		return h.value, h.err
	case <-ctx.Done():
		var zero A
		return zero, ctx.Err()
	}
}

// Processes is a multi-producer, single-consumer queue of work items
// bound to context type C.
type Processes[C any] struct {
	mu    sync.Mutex
	items []WorkItem[C]
}

// NewProcesses constructs an empty queue for context type C.
func NewProcesses[C any]() *Processes[C] {
	return &Processes[C]{}
}

// Alloc queues build against p and returns the Handle its result lands
// in once a consumer executes the returned WorkItem via Run.
func Alloc[A any, C any](p *Processes[C], build func(ctx C) (A, error)) *Handle[A] {
	handle := newHandle[A]()
	p.mu.Lock()
	p.items = append(p.items, WorkItem[C]{run: func(ctx C) {
		v, err := build(ctx)
		handle.fulfill(v, err)
	}})
	p.mu.Unlock()
	return handle
}

// Run drains every pending item and returns them for the caller to
// execute. Items queued after the drain, including while the caller is
// executing the returned batch, are not included; they are picked up by
// the next Run call.
func (p *Processes[C]) Run() []WorkItem[C] {
	p.mu.Lock()
	items := p.items
	p.items = nil
	p.mu.Unlock()
	return items
}

// Registry holds one type-erased Processes[C] queue, its context type
// fixed the first time New is called. K is a phantom type parameter with
// no runtime representation — it exists only so two Registry[K]
// instances with otherwise-identical context types remain distinct Go
// types at compile time, the way the original's type-tag key separates
// registries whose C happens to coincide.
type Registry[K any] struct {
	mu    sync.Mutex
	ctype reflect.Type
	queue any // *Processes[C]
}

// NewRegistry constructs an empty registry. Its context type is fixed by
// the first call to New.
func NewRegistry[K any]() *Registry[K] {
	return &Registry[K]{}
}

func contextType[C any]() reflect.Type {
	var zero C
	return reflect.TypeOf(&zero).Elem()
}

// New fixes r's context type to C if it has none yet, constructing its
// backing queue, and returns it. Calling New again with a different C on
// the same registry panics: that is a programmer error, not a runtime
// condition the caller can recover from.
func New[C any, K any](r *Registry[K]) *Processes[C] {
	t := contextType[C]()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		p := NewProcesses[C]()
		r.ctype = t
		r.queue = p
		return p
	}
	if r.ctype != t {
		panic(fmt.Sprintf("queue: registry already holds context type %s, cannot reuse for %s", r.ctype, t))
	}
	return r.queue.(*Processes[C])
}

// AllocIn queues build on r's queue for context type C, which must match
// the type New fixed for r; mismatch panics.
func AllocIn[A any, C any, K any](r *Registry[K], build func(ctx C) (A, error)) *Handle[A] {
	return Alloc(queueFor[C](r), build)
}

// RunIn drains and returns r's pending items for context type C, which
// must match the type New fixed for r; mismatch panics.
func RunIn[C any, K any](r *Registry[K]) []WorkItem[C] {
	return queueFor[C](r).Run()
}

func queueFor[C any, K any](r *Registry[K]) *Processes[C] {
	t := contextType[C]()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		panic(fmt.Sprintf("queue: registry has no queue for context type %s; call New first", t))
	}
	if r.ctype != t {
		panic(fmt.Sprintf("queue: registry holds context type %s, got %s", r.ctype, t))
	}
	return r.queue.(*Processes[C])
}
