// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/store"
)

// TestMain fails the package if a worker's Run goroutine outlives the
// test that started it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "device_test.db")
	s, err := store.Open(dbPath, store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHumanizeSessionError(t *testing.T) {
	cases := []struct {
		in   error
		want string
	}{
		{errors.New("not connected"), "The receiver is not connected right now."},
		{errors.New("unsupported client model"), "This receiver model is not supported."},
		{errors.New("refresh_auth_failed: token expired"), "Could not refresh the receiver's authorization; try re-pairing."},
		{errors.New("timeout waiting for response"), "The receiver did not respond in time."},
		{errors.New("dial tcp: no such host"), "A network error occurred while talking to the receiver."},
		{errors.New("something entirely unmapped"), "something entirely unmapped"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, humanizeSessionError(tc.in))
	}
	require.Equal(t, "", humanizeSessionError(nil))
}

func TestNormalizePairingCode(t *testing.T) {
	require.Equal(t, "ABC123", normalizePairingCode(" ab c-1 2 3 "))
	require.Equal(t, "", normalizePairingCode("   "))
}

// fakeSession implements Session for deterministic worker tests.
type fakeSession struct {
	connectErr error
	seekErr    error
	nextErr    error
	events     chan RawEvent
}

func (f *fakeSession) RefreshAuth(ctx context.Context, authBlob string) (string, error) {
	return authBlob, nil
}
func (f *fakeSession) Connect(ctx context.Context, authBlob string) error { return f.connectErr }
func (f *fakeSession) Subscribe(ctx context.Context) (<-chan RawEvent, error) {
	return f.events, nil
}
func (f *fakeSession) SeekTo(ctx context.Context, position float64) error { return f.seekErr }
func (f *fakeSession) Next(ctx context.Context) error                    { return f.nextErr }
func (f *fakeSession) PlayVideo(ctx context.Context, videoID string) error { return nil }
func (f *fakeSession) Close() error                                      { return nil }

type fakeFactory struct{ session *fakeSession }

func (f *fakeFactory) NewSession(screenID string) Session { return f.session }

func TestSkipCurrent_PrefersSeekEndOverNext(t *testing.T) {
	w := &Worker{sleep: ctxSleep}
	sess := &fakeSession{}
	w.setSession(sess)

	ok, reason, method := w.SkipCurrent(context.Background())
	require.True(t, ok)
	require.Empty(t, reason)
	require.Equal(t, SkipMethodSeekEnd, method)
}

func TestSkipCurrent_FallsBackToNextWhenSeekFails(t *testing.T) {
	w := &Worker{sleep: ctxSleep}
	sess := &fakeSession{seekErr: errors.New("connect_failed")}
	w.setSession(sess)

	ok, reason, method := w.SkipCurrent(context.Background())
	require.True(t, ok)
	require.Empty(t, reason)
	require.Equal(t, SkipMethodNext, method)
}

func TestSkipCurrent_ReportsFailureWhenBothFail(t *testing.T) {
	w := &Worker{sleep: ctxSleep}
	sess := &fakeSession{
		seekErr: errors.New("connect_failed"),
		nextErr: errors.New("timeout"),
	}
	w.setSession(sess)

	ok, reason, method := w.SkipCurrent(context.Background())
	require.False(t, ok)
	require.Equal(t, "The receiver did not respond in time.", reason)
	require.Equal(t, SkipMethodNone, method)
}

func TestSkipCurrent_NoSessionReportsDisconnected(t *testing.T) {
	w := &Worker{sleep: ctxSleep}
	ok, reason, method := w.SkipCurrent(context.Background())
	require.False(t, ok)
	require.Equal(t, "The receiver is not connected right now.", reason)
	require.Equal(t, SkipMethodNone, method)
}

func TestBackoffSleep_DoublesUntilCap(t *testing.T) {
	var slept []time.Duration
	w := &Worker{
		sleep: func(ctx context.Context, d time.Duration) bool {
			slept = append(slept, d)
			return true
		},
	}
	backoff := initialBackoff
	for i := 0; i < 6; i++ {
		w.backoffSleep(context.Background(), &backoff)
	}
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}, slept)
}

func TestRunOnce_NoAuthBlobGoesOfflineAndRetries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	id, err := st.UpsertDevice(ctx, store.Device{Name: "tv", ScreenID: "scr1"})
	require.NoError(t, err)

	b := bus.NewMemoryBus()
	w := New(store.Device{ID: id, ScreenID: "scr1"}, st, b, &fakeFactory{session: &fakeSession{}})

	slept := false
	w.sleep = func(ctx context.Context, d time.Duration) bool {
		slept = true
		require.Equal(t, noAuthRetry, d)
		return false
	}
	backoff := initialBackoff
	advance := w.runOnce(ctx, &backoff)
	require.False(t, advance)
	require.True(t, slept)

	dev, ok, err := st.GetDevice(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusOffline, dev.Status)
}

func TestRegistry_StartStopTracksRunningCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	id, err := st.UpsertDevice(ctx, store.Device{Name: "tv", ScreenID: "scr1", AuthStateJSON: "{}"})
	require.NoError(t, err)
	dev, ok, err := st.GetDevice(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	b := bus.NewMemoryBus()
	events := make(chan RawEvent)
	close(events)
	reg := NewRegistry(st, b, &fakeFactory{session: &fakeSession{events: events}})

	reg.Start(dev)
	require.Eventually(t, func() bool { return reg.Running() == 1 }, time.Second, 5*time.Millisecond)

	_, ok = reg.Get(id)
	require.True(t, ok)

	reg.StopAll()
	require.Equal(t, 0, reg.Running())
}
