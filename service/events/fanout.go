package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PPGateway/logger"
	"PPGateway/service/chat"
	"PPGateway/tools/safe"
)

// Sink is one event transport (NATS subject, Kafka topic, ...).
type Sink interface {
	Name() string
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// Fanout hands events to every sink from a fixed pool of workers. Emit never
// blocks the caller: when the queue is full the event is dropped and counted.
type Fanout struct {
	jobs    chan *Event
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	dropped atomic.Int64
	failed  atomic.Int64
}

func NewFanout(workers, queue int, sinks ...Sink) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{
		jobs:    make(chan *Event, queue),
		sinks:   sinks,
		timeout: 5 * time.Second,
	}
	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.work()
	}
	return f
}

func (f *Fanout) work() {
	defer f.wg.Done()
	for e := range f.jobs {
		f.publish(e)
	}
}

func (f *Fanout) publish(e *Event) {
	defer safe.Recover("events")
	for _, s := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err := s.Publish(ctx, e)
		cancel()
		if err != nil {
			f.failed.Add(1)
			logger.Warnf("[events] publish failed sink=%s id=%s action=%s err=%v", s.Name(), e.ID, e.Action, err)
		}
	}
}

// Emit queues e for publishing. It reports false when the event was dropped.
func (f *Fanout) Emit(e *Event) bool {
	if e == nil || len(f.sinks) == 0 {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	select {
	case f.jobs <- e:
		return true
	default:
		// 队列满：丢弃，不阻塞读循环
		f.dropped.Add(1)
		return false
	}
}

// Hook adapts the fan-out to the CHAT/SIGNED extension points.
func (f *Fanout) Hook() chat.MessageHook {
	return func(m *chat.Message) { f.Emit(FromMessage(m)) }
}

func (f *Fanout) Dropped() int64 { return f.dropped.Load() }
func (f *Fanout) Failed() int64  { return f.failed.Load() }

// Close drains the queue, waits for the workers and closes every sink.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()

	f.wg.Wait()
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			logger.Warnf("[events] close sink=%s err=%v", s.Name(), err)
		}
	}
}
