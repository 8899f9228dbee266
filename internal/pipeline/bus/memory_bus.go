// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
)

// MemoryBus is the in-process bus between the session and its host.
// Delivery blocks per subscriber until the publish context ends; a
// subscriber that does not drain costs the publisher its deadline.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	buffer int
}

const dropLogEvery = 100

var dropCount atomic.Uint64

const defaultBuffer = 64

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(defaultBuffer)
}

// NewMemoryBusWithBuffer sets the per-subscriber channel capacity.
func NewMemoryBusWithBuffer(n int) *MemoryBus {
	if n < 0 {
		n = 0
	}
	return &MemoryBus{subs: make(map[string][]chan Message), buffer: n}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	// Held across delivery so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				logger := log.WithComponent("bus")
				logger.Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if topic == "" {
		return nil, fmt.Errorf("subscribe: empty topic")
	}
	ch := make(chan Message, b.buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b      *MemoryBus
	topic  string
	ch     chan Message
	closed sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.closed.Do(s.detach)
	return nil
}

func (s *memSub) detach() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s.ch {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch)
}

var _ Bus = (*MemoryBus)(nil)
