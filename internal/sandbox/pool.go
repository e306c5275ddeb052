package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// defaultAcquireTimeout bounds how long Acquire waits when the caller's
// context has no deadline of its own.
const defaultAcquireTimeout = 5 * time.Second

// Pool manages a pool of reusable sandboxes
type Pool struct {
	config    Config
	opts      []Option
	sandboxes chan *Runtime
	size      int
	// acquireTimeout applies only to contexts without a deadline.
	acquireTimeout time.Duration
	mu             sync.RWMutex
	closed         bool
}

// NewPool creates a sandbox pool
func NewPool(config Config, size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:         config,
		opts:           opts,
		sandboxes:      make(chan *Runtime, size),
		size:           size,
		acquireTimeout: defaultAcquireTimeout,
	}

	// Pre-create sandboxes
	for i := 0; i < size; i++ {
		sandbox, err := New(config, opts...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- sandbox
	}

	return pool, nil
}

// Acquire gets a sandbox from pool with timeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	var timeout <-chan time.Time
	if _, ok := ctx.Deadline(); !ok {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sandbox := <-p.sandboxes:
		return sandbox, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, ErrTimeout
	}
}

// Release resets a sandbox and returns it to the pool. Anything compiled
// in it, including its module caches, is discarded.
func (p *Pool) Release(sandbox *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return sandbox.Close()
	}

	// Reset sandbox state
	if err := sandbox.Reset(); err != nil {
		sandbox.Close()
		// Create new sandbox
		if newSandbox, err := New(p.config, p.opts...); err == nil {
			p.sandboxes <- newSandbox
		}
		return err
	}

	select {
	case p.sandboxes <- sandbox:
		return nil
	default:
		// Pool full, close sandbox
		return sandbox.Close()
	}
}

// Do runs fn with a sandbox taken from the pool.
func (p *Pool) Do(ctx context.Context, fn func(*Runtime) error) error {
	sandbox, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(sandbox)

	return fn(sandbox)
}

// Close closes pool and all sandboxes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sandboxes)

	// Close all sandboxes
	for sandbox := range p.sandboxes {
		sandbox.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.sandboxes),
		"in_use":    p.size - len(p.sandboxes),
		"closed":    p.closed,
	}
}
