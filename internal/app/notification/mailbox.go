package notification

import "sync"

// Mailbox is an unbounded FIFO with a single consumer.
// Put never blocks and never drops; values come out of Out in the order they were put.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	signal chan struct{}
	stop   chan struct{}
	out    chan T
}

// NewMailbox creates a mailbox and starts its delivery goroutine.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

// Put appends a value. It returns false once the mailbox is closed.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// Out returns the delivery channel. It is closed after Close.
func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

// Len returns the number of values not yet delivered.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops delivery. Values not yet delivered are discarded.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.stop)
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if len(m.items) == 0 {
			m.mu.Unlock()
			select {
			case <-m.signal:
				continue
			case <-m.stop:
				return
			}
		}
		v := m.items[0]
		var zero T
		m.items[0] = zero
		m.items = m.items[1:]
		m.mu.Unlock()

		select {
		case m.out <- v:
		case <-m.stop:
			return
		}
	}
}
