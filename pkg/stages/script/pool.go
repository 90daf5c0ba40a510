package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
)

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("runtime pool is closed")

// runtime is a sandboxed VM with the stage program already evaluated.
type runtime struct {
	vm   *goja.Runtime
	fn   goja.Callable
	uses int
}

// pool hands out runtimes to concurrent calls. A goja.Runtime is not safe for
// concurrent use, so every call owns one runtime until it is released.
type pool struct {
	idle     chan *runtime
	build    func() (*runtime, error)
	max      int32
	maxReuse int
	size     int32

	mu     sync.Mutex
	closed bool
}

func newPool(size, maxReuse int, build func() (*runtime, error)) (*pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &pool{
		idle:     make(chan *runtime, size),
		build:    build,
		max:      int32(size),
		maxReuse: maxReuse,
	}

	// One runtime up front so sandbox or program failures surface at Init.
	rt, err := p.create()
	if err != nil {
		return nil, err
	}
	p.idle <- rt
	return p, nil
}

func (p *pool) acquire(ctx context.Context) (*runtime, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return p.recycle(rt)
	default:
	}

	// Concurrent creators may overshoot max briefly; release drops the surplus.
	if atomic.LoadInt32(&p.size) < p.max {
		return p.create()
	}

	select {
	case rt, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return p.recycle(rt)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recycle replaces runtimes that reached their reuse limit.
func (p *pool) recycle(rt *runtime) (*runtime, error) {
	rt.uses++
	if p.maxReuse > 0 && rt.uses >= p.maxReuse {
		p.destroy(rt)
		return p.create()
	}
	return rt, nil
}

func (p *pool) release(rt *runtime) {
	rt.vm.ClearInterrupt()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.destroy(rt)
		return
	}
	select {
	case p.idle <- rt:
	default:
		p.destroy(rt)
	}
}

func (p *pool) create() (*runtime, error) {
	rt, err := p.build()
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	atomic.AddInt32(&p.size, 1)
	return rt, nil
}

func (p *pool) destroy(rt *runtime) {
	rt.vm = nil
	rt.fn = nil
	atomic.AddInt32(&p.size, -1)
}

// close drops every idle runtime. Runtimes still in use are dropped on release.
func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.idle)
	for rt := range p.idle {
		p.destroy(rt)
	}
}
