package flight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// Cache coalesces concurrent work per key and remembers successful results.
type Cache[K comparable, V any] struct {
	// finished holds completed results. Each entry keeps a strong reference
	// until its deadline passes, after which only the weak pointer remains.
	finished map[K]*entry[V]
	fmu      *sync.RWMutex

	pending map[K]*job[V]
	pmu     *sync.Mutex

	work func(K) (V, error)

	// ttl stores the strong-hold duration in nanoseconds.
	// <= 0 means infinite (never drop the strong reference).
	ttl *atomic.Int64
}

type entry[V any] struct {
	w        weak.Pointer[V]
	strong   *V        // non-nil while within the strong-hold window
	deadline time.Time // zero => infinite
}

type job[V any] struct {
	val     V
	err     error
	done    chan struct{}
	waiters int // callers joined on this job, guarded by pmu
	// refs counts callers of Do still waiting, the starter included.
	// The job context is cancelled when it drops to zero.
	refs   int
	cancel context.CancelFunc
}

// NewCache returns a Cache whose Get and Force run work on a miss. work may
// be nil when only Do is used.
func NewCache[K comparable, V any](work func(K) (V, error)) Cache[K, V] {
	var ttl atomic.Int64
	ttl.Store(int64(time.Hour))
	return Cache[K, V]{
		finished: make(map[K]*entry[V]),
		fmu:      new(sync.RWMutex),
		pending:  make(map[K]*job[V]),
		pmu:      new(sync.Mutex),
		work:     work,
		ttl:      &ttl,
	}
}

// Expiry sets the strong-hold duration for future writes.
// d <= 0 keeps a permanent strong reference (infinite duration).
func (p *Cache[K, V]) Expiry(d time.Duration) {
	if d <= 0 {
		p.ttl.Store(0)
		return
	}
	p.ttl.Store(int64(d))
}

// Get returns a remembered result for k, joins an in-flight job for k, or
// runs the cache's work function.
func (p *Cache[K, V]) Get(k K) (V, error) {
	p.pmu.Lock()

	if e, ok := p.loadEntry(k); ok {
		if v, ok := p.tryEntry(e); ok {
			p.pmu.Unlock()
			return v, nil
		}
		// If the weak value is gone, remove the entry so the miss below computes.
		p.fmu.Lock()
		if cur, ok := p.finished[k]; ok && cur == e && e.w.Value() == nil {
			delete(p.finished, k)
		}
		p.fmu.Unlock()
	}

	if pending, ok := p.pending[k]; ok {
		pending.waiters++
		p.pmu.Unlock()
		<-pending.done
		return pending.val, pending.err
	}

	j := p.startLocked(k)
	p.pmu.Unlock()

	return p.run(k, j, func() (V, error) { return p.work(k) }, true)
}

// Force waits out any in-flight job for k and then runs work again,
// replacing the remembered result.
func (p *Cache[K, V]) Force(k K) (V, error) {
	var j *job[V]
	for {
		p.pmu.Lock()
		if existing, ok := p.pending[k]; ok {
			p.pmu.Unlock()
			<-existing.done
			continue
		}
		j = p.startLocked(k)
		p.pmu.Unlock()
		break
	}

	return p.run(k, j, func() (V, error) { return p.work(k) }, true)
}

// Do runs fn unless a job for k is already in flight, in which case it
// joins that job. The job runs on a context detached from ctx, so it
// outlives the caller that started it, and is cancelled once every caller
// waiting on it has gone. A caller whose ctx ends stops waiting and gets
// ctx.Err(). Results are not remembered. shared reports whether the
// caller joined another caller's job.
func (p *Cache[K, V]) Do(ctx context.Context, k K, fn func(context.Context) (V, error)) (v V, err error, shared bool) {
	p.pmu.Lock()
	j, shared := p.pending[k]
	if shared {
		j.waiters++
		j.refs++
	} else {
		j = p.startLocked(k)
		j.refs = 1
		var jctx context.Context
		jctx, j.cancel = context.WithCancel(context.WithoutCancel(ctx))
		go p.runDetached(k, j, jctx, fn)
	}
	p.pmu.Unlock()

	select {
	case <-j.done:
		return j.val, j.err, shared
	case <-ctx.Done():
		p.leave(k, j, shared)
		return v, ctx.Err(), shared
	}
}

// InFlight reports whether a job for k is running.
func (p *Cache[K, V]) InFlight(k K) bool {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	_, ok := p.pending[k]
	return ok
}

// Waiters reports how many callers have joined the in-flight job for k.
func (p *Cache[K, V]) Waiters(k K) int {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if j, ok := p.pending[k]; ok {
		return j.waiters
	}
	return 0
}

// --- internals ---

func (p *Cache[K, V]) startLocked(k K) *job[V] {
	j := &job[V]{done: make(chan struct{})}
	p.pending[k] = j
	return j
}

func (p *Cache[K, V]) run(k K, j *job[V], fn func() (V, error), remember bool) (V, error) {
	// A panicking fn must still release waiters.
	defer p.finish(k, j)

	j.val, j.err = fn()
	if j.err == nil && remember {
		p.storeEntry(k, j.val)
	}
	return j.val, j.err
}

func (p *Cache[K, V]) runDetached(k K, j *job[V], ctx context.Context, fn func(context.Context) (V, error)) {
	defer j.cancel()
	defer p.finish(k, j)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("flight: job %v panicked: %v", k, r)
		}
	}()

	j.val, j.err = fn(ctx)
}

func (p *Cache[K, V]) finish(k K, j *job[V]) {
	p.pmu.Lock()
	close(j.done)
	if p.pending[k] == j {
		delete(p.pending, k)
	}
	p.pmu.Unlock()
}

// leave drops a Do caller from j. The last one out cancels the job and
// unregisters it so later callers start afresh.
func (p *Cache[K, V]) leave(k K, j *job[V], joined bool) {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if joined {
		j.waiters--
	}
	j.refs--
	if j.refs == 0 {
		j.cancel()
		if p.pending[k] == j {
			delete(p.pending, k)
		}
	}
}

func (p *Cache[K, V]) ttlDur() time.Duration {
	return time.Duration(p.ttl.Load())
}

func (p *Cache[K, V]) loadEntry(k K) (*entry[V], bool) {
	p.fmu.RLock()
	e, ok := p.finished[k]
	p.fmu.RUnlock()
	if !ok {
		return nil, false
	}

	// If the strong-hold window elapsed, drop the strong pointer.
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		p.fmu.Lock()
		// Re-check under write lock to avoid racing another dropper.
		if cur, ok := p.finished[k]; ok && cur == e && e.strong != nil && time.Now().After(e.deadline) {
			e.strong = nil
		}
		p.fmu.Unlock()
	}
	return e, true
}

func (p *Cache[K, V]) tryEntry(e *entry[V]) (V, bool) {
	if vp := e.w.Value(); vp != nil {
		return *vp, true
	}
	var zero V
	return zero, false
}

func (p *Cache[K, V]) storeEntry(k K, val V) {
	// Allocate a dedicated heap cell so the weak pointer refers to a stable address.
	v := new(V)
	*v = val

	e := &entry[V]{w: weak.Make(v)}
	if d := p.ttlDur(); d > 0 {
		e.deadline = time.Now().Add(d)
		e.strong = v // keep alive until deadline
	} else {
		e.deadline = time.Time{}
		e.strong = v
	}

	p.fmu.Lock()
	p.finished[k] = e
	p.fmu.Unlock()
}
