// Package eventbus implements the priority event bus that carries every
// datum through the pipeline: a bounded priority queue feeding a fixed
// worker pool that fans each event out to its matched handlers (§4.1).
package eventbus

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ictengine/internal/core"

	"ictengine/pkg/concurrency"
	apperrors "ictengine/pkg/errors"
	"ictengine/pkg/telemetry"
)

// Handler receives one event and is told when it errors; on_error never
// cancels sibling handlers or the worker that delivered the event.
type Handler struct {
	CanHandle func(eventType string) bool
	Handle    func(ctx context.Context, evt core.Event) error
	OnError   func(evt core.Event, err error)
}

type queueItem struct {
	evt   core.Event
	seq   int64
	index int
}

// priorityQueue is a min-heap ordered by (priority asc, seq asc) so that
// equal priorities are delivered FIFO.
type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].evt.Priority() != pq[j].evt.Priority() {
		return pq[i].evt.Priority() < pq[j].evt.Priority()
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Bus is the priority event bus (§4.1). It is safe for concurrent use.
type Bus struct {
	logger core.ILogger

	mu       sync.Mutex
	queue    priorityQueue
	capacity int
	nextSeq  int64
	notEmpty *sync.Cond

	subMu    sync.RWMutex
	handlers map[string][]*Handler
	global   []*Handler

	workerCount int
	pool        *concurrency.WorkerPool
	running     int32
	stopOnce    sync.Once
	stopCh      chan struct{}

	published int64
	delivered int64
	dropped   int64
}

// New constructs a Bus with the given worker count and bounded capacity.
func New(workerCount, capacity int, logger core.ILogger) *Bus {
	if workerCount < 1 {
		workerCount = 1
	}
	if capacity < 1 {
		capacity = 1000
	}
	b := &Bus{
		logger:      logger.WithField("component", "eventbus"),
		capacity:    capacity,
		workerCount: workerCount,
		handlers:    make(map[string][]*Handler),
		stopCh:      make(chan struct{}),
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "eventbus",
		MaxWorkers:  workerCount,
		MaxCapacity: workerCount,
	}, logger)
	return b
}

// Start launches the fixed worker pool that dequeues and dispatches
// events. Starting an already-running bus is a no-op (§8 idempotence
// law).
func (b *Bus) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.running, 0, 1) {
		return nil
	}
	for i := 0; i < b.workerCount; i++ {
		id := i
		if err := b.pool.Submit(func() { b.runWorker(ctx, id) }); err != nil {
			b.logger.Error("failed to start bus worker", "worker", id, "error", err)
		}
	}
	b.logger.Info("event bus started", "workers", b.workerCount, "capacity", b.capacity)
	return nil
}

// Stop signals workers, lets in-flight handlers complete, and discards any
// remaining queued events. Stopping twice is a no-op (§8).
func (b *Bus) Stop(timeout time.Duration) error {
	if !atomic.CompareAndSwapInt32(&b.running, 1, 0) {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.mu.Lock()
		b.notEmpty.Broadcast()
		b.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("event bus stop deadline exceeded, workers may still be draining")
	}

	b.mu.Lock()
	dropped := len(b.queue)
	b.queue = nil
	b.mu.Unlock()
	if dropped > 0 {
		atomic.AddInt64(&b.dropped, int64(dropped))
		b.logger.Info("discarded queued events on stop", "count", dropped)
	}
	return nil
}

// Publish enqueues an event at its declared priority. It returns
// apperrors.ErrBusStopped if the bus is not running, and drops (returning
// nil) when the queue is at capacity, incrementing the drop counter.
func (b *Bus) Publish(ctx context.Context, evt core.Event) error {
	if atomic.LoadInt32(&b.running) == 0 {
		return apperrors.ErrBusStopped
	}

	b.mu.Lock()
	if len(b.queue) >= b.capacity {
		b.mu.Unlock()
		atomic.AddInt64(&b.dropped, 1)
		telemetry.GetGlobalMetrics().EventBusDroppedTotal.Add(ctx, 1)
		b.logger.Warn("event bus queue full, dropping event", "kind", evt.EventType(), "symbol", evt.EventSymbol())
		return nil
	}
	b.nextSeq++
	heap.Push(&b.queue, &queueItem{evt: evt, seq: b.nextSeq})
	qlen := len(b.queue)
	b.notEmpty.Signal()
	b.mu.Unlock()

	telemetry.GetGlobalMetrics().SetQueueDepth(int64(qlen))
	atomic.AddInt64(&b.published, 1)
	return nil
}

// Subscribe registers a typed handler; it returns an unsubscribe func.
func (b *Bus) Subscribe(eventType string, fn func(ctx context.Context, evt core.Event) error) func() {
	h := &Handler{
		CanHandle: func(kind string) bool { return kind == eventType },
		Handle:    fn,
		OnError: func(evt core.Event, err error) {
			b.logger.Error("handler error", "kind", evt.EventType(), "error", err)
		},
	}
	b.subMu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		list := b.handlers[eventType]
		for i, existing := range list {
			if existing == h {
				b.handlers[eventType] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a global handler invoked for every event.
func (b *Bus) SubscribeAll(fn func(ctx context.Context, evt core.Event) error) func() {
	h := &Handler{
		CanHandle: func(string) bool { return true },
		Handle:    fn,
		OnError: func(evt core.Event, err error) {
			b.logger.Error("global handler error", "kind", evt.EventType(), "error", err)
		},
	}
	b.subMu.Lock()
	b.global = append(b.global, h)
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		for i, existing := range b.global {
			if existing == h {
				b.global = append(b.global[:i], b.global[i+1:]...)
				return
			}
		}
	}
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() core.BusStats {
	b.mu.Lock()
	qlen := len(b.queue)
	b.mu.Unlock()
	return core.BusStats{
		Published: atomic.LoadInt64(&b.published),
		Delivered: atomic.LoadInt64(&b.delivered),
		Dropped:   atomic.LoadInt64(&b.dropped),
		QueueLen:  qlen,
		QueueCap:  b.capacity,
	}
}

func (b *Bus) runWorker(ctx context.Context, id int) {
	for {
		item := b.dequeue()
		if item == nil {
			return
		}
		b.dispatch(ctx, item.evt)
	}
}

func (b *Bus) dequeue() *queueItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 {
		select {
		case <-b.stopCh:
			return nil
		default:
		}
		b.notEmpty.Wait()
		select {
		case <-b.stopCh:
			return nil
		default:
		}
	}
	item := heap.Pop(&b.queue).(*queueItem)
	return item
}

func (b *Bus) dispatch(ctx context.Context, evt core.Event) {
	b.subMu.RLock()
	matched := append([]*Handler{}, b.global...)
	for _, h := range b.handlers[evt.EventType()] {
		matched = append(matched, h)
	}
	b.subMu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range matched {
		if !h.CanHandle(evt.EventType()) {
			continue
		}
		wg.Add(1)
		go func(h *Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					h.OnError(evt, fmt.Errorf("handler panic: %v", r))
				}
			}()
			if err := h.Handle(ctx, evt); err != nil {
				h.OnError(evt, err)
			}
			atomic.AddInt64(&b.delivered, 1)
		}(h)
	}
	wg.Wait()
}
