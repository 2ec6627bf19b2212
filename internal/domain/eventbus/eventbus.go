// Package eventbus wraps the in-process publish/subscribe bus the pipeline
// uses to fan events out to the event log, the websocket hub, and the
// persister without coupling producers to consumers.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus is a constructor-built event bus. Publishing is non-blocking: events
// are queued to a bounded worker pool and dropped when the queue is full,
// so a slow subscriber can never stall the capture loop.
type Bus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan busEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type busEvent struct {
	topic string
	args  []interface{}
}

// New creates a bus with the given worker count. Call Start before
// publishing and Stop during shutdown.
func New(workerNum int) *Bus {
	if workerNum <= 0 {
		workerNum = 4
	}

	return &Bus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan busEvent, 1000),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker pool.
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		for i := 0; i < b.workerNum; i++ {
			b.wg.Add(1)
			go b.worker()
		}
	})
}

// Stop drains the workers and waits for them to exit.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopChan:
			return
		case event := <-b.workChan:
			func() {
				defer func() {
					// A panicking subscriber must not take down the worker.
					_ = recover()
				}()
				b.bus.Publish(event.topic, event.args...)
			}()
		}
	}
}

// Publish delivers an event synchronously to all subscribers.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync queues an event for the worker pool. Returns false if the
// queue was full and the event was dropped.
func (b *Bus) PublishAsync(topic string, args ...interface{}) bool {
	select {
	case b.workChan <- busEvent{topic: topic, args: args}:
		return true
	default:
		return false
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback reports whether the topic has at least one subscriber.
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}
