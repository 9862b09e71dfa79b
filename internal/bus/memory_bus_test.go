// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestMemoryBusPublishDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), Topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.NoError(t, b.Publish(context.Background(), Topic, Message{Type: EventDeviceStatus, DeviceID: "d1"}))

	msg := <-sub.C()
	require.Equal(t, EventDeviceStatus, msg.Type)
	require.Equal(t, "d1", msg.DeviceID)
}

func TestMemoryBusPublishDropsWithoutBlockingWhenFull(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "full-topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < subscriberQueueDepth; i++ {
		require.NoError(t, b.Publish(context.Background(), "full-topic", Message{Type: EventNowPlaying}))
	}

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("full-topic", "queue_full"))

	// Publish must return immediately even though the subscriber's queue is
	// saturated; the message is dropped, not blocked on.
	done := make(chan struct{})
	go func() {
		_ = b.Publish(context.Background(), "full-topic", Message{Type: EventNowPlaying})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}

	final := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("full-topic", "queue_full"))
	require.Greater(t, final, initial)
}

func TestMemoryBusCloseRemovesSubscriber(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	require.NoError(t, sub.Close())

	b.mu.RLock()
	_, ok := b.subs["t"]
	b.mu.RUnlock()
	require.False(t, ok)
}
