// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"sync"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metrics"
)

// subscriberQueueDepth is the per-subscriber buffered channel size (spec §5:
// "bounded per-subscriber queue (≈200)").
const subscriberQueueDepth = 200

// MemoryBus is an in-process pub/sub. Publish never blocks the producer: a
// subscriber whose queue is full is silently dropped for that message.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Message
}

// NewMemoryBus constructs an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Message)}
}

// Publish fans a message out to every current subscriber of topic. A full
// subscriber channel is dropped rather than blocking the caller.
func (b *MemoryBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.RLock()
	chs := append([]chan Message(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, ch := range chs {
		select {
		case ch <- msg:
		default:
			metrics.IncBusDropReason(topic, "queue_full")
			log.WithComponent("bus").Warn().
				Str("topic", topic).
				Str(log.FieldEvent, msg.Type).
				Msg("subscriber queue full, dropping event")
		}
	}
	return nil
}

// Subscribe registers a new bounded-queue subscriber for topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscriber, error) {
	ch := make(chan Message, subscriberQueueDepth)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
}

func (s *memSub) C() <-chan Message { return s.ch }

func (s *memSub) Close() error {
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
	return nil
}

var _ Bus = (*MemoryBus)(nil)
