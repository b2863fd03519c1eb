package syncstate

import "sync"

// broadcaster fans changes out to subscriber channels.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Change]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan Change]struct{})}
}

// Subscribe creates a new subscription channel for record changes.
func (b *broadcaster) Subscribe() chan Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Change, 16) // Buffered
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *broadcaster) Unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

func (b *broadcaster) publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- Change{Record: c.Record.Clone(), Origin: c.Origin}:
		default:
			// Non-blocking send to prevent slow subscribers from stalling writers
		}
	}
}
