// Package notification provides ordered fan-out of events to subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Notification is one broadcast payload stamped with its sequence number.
type Notification[T any] struct {
	SequenceNo uint64
	Payload    T
}

// Stream represents a notification stream for a subscriber.
type Stream[T any] interface {
	Send(Notification[T]) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc[T any] func(Notification[T]) error

// Send calls f.
func (f StreamFunc[T]) Send(n Notification[T]) error {
	return f(n)
}

// subscription represents a subscriber's subscription.
type subscription[T any] struct {
	id      string
	stream  Stream[T]
	mailbox *Mailbox[Notification[T]]
	done    chan struct{}
}

// Manager manages notification subscriptions and broadcasting.
// Every subscriber receives every notification in broadcast order; a slow
// subscriber delays only itself.
type Manager[T any] struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription[T]
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		subscriptions: make(map[string]*subscription[T]),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager[T]) Subscribe(stream Stream[T]) string {
	sub := &subscription[T]{
		id:      uuid.New().String(),
		stream:  stream,
		mailbox: NewMailbox[Notification[T]](),
		done:    make(chan struct{}),
	}
	go sub.deliver()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.id] = sub
	return sub.id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager[T]) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription. Pending notifications are discarded.
func (m *Manager[T]) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[subscriptionID]
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()

	if ok {
		sub.mailbox.Close()
		<-sub.done
	}
}

// Broadcast queues a notification for all subscribers and returns its sequence number.
func (m *Manager[T]) Broadcast(payload T) uint64 {
	// Sequence assignment and queueing happen under the same lock so that
	// every subscriber sees notifications in sequence order.
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := Notification[T]{
		SequenceNo: m.NextSequenceNo(),
		Payload:    payload,
	}
	for _, sub := range m.subscriptions {
		sub.mailbox.Put(n)
	}
	return n.SequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager[T]) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription[T])
	m.mu.Unlock()

	for _, sub := range subs {
		sub.mailbox.Close()
		<-sub.done
	}
}

func (s *subscription[T]) deliver() {
	defer close(s.done)
	for n := range s.mailbox.Out() {
		if err := s.stream.Send(n); err != nil {
			zlog.Debug().Msgf("notification: send failed: subscription=%s sequence_no=%d error=%v", s.id, n.SequenceNo, err)
		}
	}
}
