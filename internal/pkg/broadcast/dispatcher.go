package broadcast

import (
	"Courier/internal/pkg/logger"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull        = errors.New("broadcast queue is full")
	ErrDispatcherClosed = errors.New("broadcast dispatcher is closed")
)

// envelope 事件连同发起请求的 trace_id 一起入队
type envelope struct {
	evt     *MessageCreated
	traceID string
}

// Dispatcher 异步投递：Publish 只入队，不等待任何下游
type Dispatcher struct {
	sinks   []Publisher
	queue   chan envelope
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewDispatcher 启动 workers 个投递协程，每个下游调用限时 timeout
func NewDispatcher(sinks []Publisher, queueSize, workers int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan envelope, queueSize),
		timeout: timeout,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Publish 队列满时直接丢弃，至多一次语义
func (d *Dispatcher) Publish(ctx context.Context, evt *MessageCreated) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- envelope{evt: evt, traceID: logger.TraceIDFrom(ctx)}:
		return nil
	default:
		d.dropped.Add(1)
		log.WarnContext(ctx, "broadcast queue full, event dropped",
			"conversation_id", evt.ConversationID, "message_id", evt.MessageID)
		return ErrQueueFull
	}
}

// Dropped 因队列满被丢弃的事件数
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close 停止接收新事件，等待队列排空
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	log.Info("broadcast dispatcher shut down gracefully")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for env := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, env)
		}
	}
}

func (d *Dispatcher) deliver(sink Publisher, env envelope) {
	evt := env.evt
	ctx := logger.WithTraceID(context.Background(), env.traceID)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := sink.Publish(ctx, evt); err != nil {
		log.WarnContext(ctx, "broadcast delivery failed",
			"conversation_id", evt.ConversationID, "message_id", evt.MessageID, "err", err)
	}
}
