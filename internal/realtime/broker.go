package realtime

import (
	"context"
	"errors"
	"sync"
)

var errBrokerClosed = errors.New("broker is closed")

// Broker is the pub/sub transport between the ingestion gateway and live
// client connections. Publish is best-effort: a failure is reported to the
// caller for logging but the event is already durable in the store.
type Broker interface {
	// Publish sends payload to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a receive channel for messages published to
	// channel, and a cancel function that releases the subscription.
	// The receive channel is closed after cancel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)

	Close() error
}

// subscriberBuffer bounds each subscriber's in-flight queue. A subscriber
// that falls behind loses messages rather than stalling the publisher.
const subscriberBuffer = 64

// MemoryBroker is a process-local Broker used when no redis transport is
// configured, and in tests. Single node only.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			// Slow subscriber; drop. At-most-once attempt.
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, errBrokerClosed
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		set, ok := b.subs[channel]
		if !ok {
			return
		}
		if _, present := set[ch]; !present {
			// Already removed by an earlier cancel or Close.
			return
		}
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, channel)
		}
		close(ch)
	}
	return ch, cancel, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, channel)
	}
	return nil
}
