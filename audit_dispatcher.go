package donorhub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultAuditSinkTimeout = 5 * time.Second

// auditQueue hands audit events to the sink on one background goroutine so
// login, reset and donation requests never wait on sink I/O.
type auditQueue struct {
	sink        AuditSink
	events      chan AuditEvent
	dropIfFull  bool
	sinkTimeout time.Duration

	stopping context.Context
	stop     context.CancelFunc
	finished chan struct{}
	once     sync.Once

	dropped atomic.Uint64
}

// newAuditQueue returns nil when auditing is disabled; a nil queue accepts
// and discards events.
func newAuditQueue(cfg AuditConfig, sink AuditSink) *auditQueue {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	timeout := cfg.SinkTimeout
	if timeout <= 0 {
		timeout = defaultAuditSinkTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &auditQueue{
		sink:        sink,
		events:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		dropIfFull:  cfg.DropIfFull,
		sinkTimeout: timeout,
		stopping:    ctx,
		stop:        cancel,
		finished:    make(chan struct{}),
	}
	go q.work()
	return q
}

func (q *auditQueue) work() {
	defer close(q.finished)
	for {
		select {
		case ev := <-q.events:
			q.deliver(ev)
		case <-q.stopping.Done():
			q.drain()
			return
		}
	}
}

// drain delivers what was queued before Close.
func (q *auditQueue) drain() {
	for {
		select {
		case ev := <-q.events:
			q.deliver(ev)
		default:
			return
		}
	}
}

func (q *auditQueue) deliver(ev AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), q.sinkTimeout)
	defer cancel()
	q.sink.Emit(ctx, ev)
}

// Emit queues ev. With dropIfFull a full queue discards ev and counts it;
// otherwise Emit waits for room until ctx ends. Events emitted after Close
// are counted as dropped.
func (q *auditQueue) Emit(ctx context.Context, ev AuditEvent) {
	if q == nil {
		return
	}
	if q.stopping.Err() != nil {
		q.dropped.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if q.dropIfFull {
		select {
		case q.events <- ev:
		default:
			q.dropped.Add(1)
		}
		return
	}

	select {
	case q.events <- ev:
	case <-ctx.Done():
		q.dropped.Add(1)
	case <-q.stopping.Done():
		q.dropped.Add(1)
	}
}

// Close stops intake, delivers queued events and waits for the worker.
func (q *auditQueue) Close() {
	if q == nil {
		return
	}
	q.once.Do(func() {
		q.stop()
		<-q.finished
		q.dropped.Add(uint64(len(q.events)))
	})
}

// Dropped reports events that never reached the sink.
func (q *auditQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
