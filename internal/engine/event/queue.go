package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

type (
	// Queue delivers event keys to a single consumer, in arrival order and
	// in bounded batches. Producers never block on the consumer
	Queue struct {
		prod        topic.Producer[Event]
		cons        topic.Consumer[Event]
		handler     Handler
		stop        chan struct{}
		batchSize   int
		wg          sync.WaitGroup
		mu          sync.RWMutex
		closed      bool
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Handler processes a batch of events in a single execution
	Handler func([]Event) error

	// Event is the envelope of one dispatched event key
	Event struct {
		Key     api.EventKey
		Payload string
	}
)

// DefaultBatchSize is used when a non-positive batch size is requested
const DefaultBatchSize = 64

var (
	ErrHandlerPanicked = errors.New("event handler panicked")
	ErrQueueClosed     = errors.New("event queue closed")
)

// NewQueue creates a new event queue with the provided batch size
func NewQueue(handler Handler, batchSize int) *Queue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	queue := caravan.NewTopic[Event]()
	return &Queue{
		prod:      queue.NewProducer(),
		cons:      queue.NewConsumer(),
		handler:   handler,
		stop:      make(chan struct{}),
		batchSize: batchSize,
	}
}

// Start begins processing queued events
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case ev, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.handleBatch(q.collectBatch(ev))
				}
			}
		})
	})
}

// Enqueue adds an event key to the queue. Once the queue is stopped, keys
// are rejected with ErrQueueClosed
func (q *Queue) Enqueue(key api.EventKey, payload string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("%w: %s", ErrQueueClosed, key)
	}
	q.prod.Send() <- Event{
		Key:     key,
		Payload: payload,
	}
	return nil
}

// Flush stops accepting events, waits for the consumer to exit, and then
// handles whatever remains queued
func (q *Queue) Flush() {
	q.markClosed()
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.flush)
}

// Cancel immediately stops the queue without processing remaining events
func (q *Queue) Cancel() {
	q.markClosed()
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue) markClosed() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *Queue) collectBatch(first Event) []Event {
	batch := []Event{first}
	for len(batch) < q.batchSize {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) flush() {
	for {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.handleBatch(q.collectBatch(ev))
		default:
			q.close()
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) handleBatch(batch []Event) {
	if err := q.tryHandleBatch(batch); err != nil {
		slog.Error("Event batch failed",
			slog.Int("batch_size", len(batch)),
			log.Error(err))
	}
}

func (q *Queue) tryHandleBatch(batch []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
