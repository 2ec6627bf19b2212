package notify

import (
	"context"
	"sync"
	"time"
)

// sendTimeout bounds a single fire-and-forget delivery.
const sendTimeout = 60 * time.Second

// WorkerPool runs dispatches off the caller's path. It shares the
// dispatcher's dedup state, so a message suppressed synchronously is also
// suppressed here and vice versa.
type WorkerPool struct {
	dispatcher *Dispatcher
	jobs       chan string
	stopCh     chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewWorkerPool starts workers draining a bounded job queue.
func NewWorkerPool(dispatcher *Dispatcher, workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 16
	}

	pool := &WorkerPool{
		dispatcher: dispatcher,
		jobs:       make(chan string, queueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case message := <-p.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			p.dispatcher.Dispatch(ctx, message)
			cancel()
		}
	}
}

// DispatchAsync queues a message for background delivery. Returns false if
// the queue is full and the message was dropped.
func (p *WorkerPool) DispatchAsync(message string) bool {
	select {
	case p.jobs <- message:
		return true
	default:
		p.dispatcher.logger.WarnTag("NOTIFY", "async queue full, dropping message")
		return false
	}
}

// Stop waits for the workers to exit. Queued but unstarted messages are
// abandoned.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
}
