package messagequeue

import (
	"context"
	"errors"
	"sync"
)

// Handler processes one message body. A returned error requeues the message.
type Handler func(body []byte) error

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume blocks, delivering messages to handler until ctx ends.
	Consume(ctx context.Context, queueName string, handler Handler) error
	Close() error
}

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("message queue closed")

// MemoryQueue is an in-process MessageQueue with buffered queues.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	closed bool
	done   chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{queues: make(map[string]chan []byte), done: make(chan struct{})}
}

var _ MessageQueue = (*MemoryQueue)(nil)

func (m *MemoryQueue) queue(name string) (chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	q, ok := m.queues[name]
	if !ok {
		q = make(chan []byte, 256)
		m.queues[name] = q
	}
	return q, nil
}

// Publish enqueues a copy of body.
func (m *MemoryQueue) Publish(ctx context.Context, queueName string, body []byte) error {
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	msg := append([]byte(nil), body...)
	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// Consume delivers messages until ctx ends or the queue closes. Messages the
// handler rejects are put back at the tail.
func (m *MemoryQueue) Consume(ctx context.Context, queueName string, handler Handler) error {
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case body := <-q:
			if err := handler(body); err != nil {
				select {
				case q <- body:
				default:
				}
			}
		}
	}
}

// Close stops consumers and rejects further publishes.
func (m *MemoryQueue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
