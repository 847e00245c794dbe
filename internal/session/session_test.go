package session_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/session"
)

func receive(t *testing.T, ch <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return session.Event{}
	}
}

func TestBus(t *testing.T) {
	t.Run("delivers to matching subscribers only", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		logout, unsubLogout := bus.Subscribe(session.SignalForcedLogout)
		defer unsubLogout()
		all, unsubAll := bus.Subscribe()
		defer unsubAll()

		require.NoError(t, bus.Publish(session.Event{Signal: session.SignalSessionExtended, Remaining: 600}))
		require.NoError(t, bus.Publish(session.Event{Signal: session.SignalForcedLogout, Reason: "401"}))

		ev := receive(t, logout)
		assert.Equal(t, session.SignalForcedLogout, ev.Signal)
		assert.Equal(t, "401", ev.Reason)
		assert.False(t, ev.At.IsZero())

		assert.Equal(t, session.SignalSessionExtended, receive(t, all).Signal)
		assert.Equal(t, session.SignalForcedLogout, receive(t, all).Signal)
	})

	t.Run("rejects unknown signals", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		err := bus.Publish(session.Event{Signal: "open_login_modal"})
		assert.ErrorIs(t, err, session.ErrUnknownSignal)
	})

	t.Run("full subscriber does not block publisher", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		_, unsub := bus.Subscribe()
		defer unsub()
		for range 50 {
			require.NoError(t, bus.Publish(session.Event{Signal: session.SignalLoginRequired}))
		}
	})

	t.Run("unsubscribe closes channel and is idempotent", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		ch, unsub := bus.Subscribe()
		unsub()
		unsub()
		_, ok := <-ch
		assert.False(t, ok)
	})

	t.Run("close", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		ch, unsub := bus.Subscribe()
		bus.Close()
		bus.Close()
		unsub()
		_, ok := <-ch
		assert.False(t, ok)
		assert.ErrorIs(t, bus.Publish(session.Event{Signal: session.SignalLoginRequired}), session.ErrBusClosed)
	})
}

func TestCountdown(t *testing.T) {
	t.Run("ticks down and expires", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		expired, unsub := bus.Subscribe(session.SignalSessionExpired)
		defer unsub()

		c := session.NewCountdown(bus).WithTick(5 * time.Millisecond)
		values, unwatch := c.Subscribe()
		defer unwatch()
		assert.Equal(t, 0, <-values)

		c.Start(3)
		assert.True(t, c.Running())

		ev := receive(t, expired)
		assert.Equal(t, session.SignalSessionExpired, ev.Signal)
		assert.Equal(t, 0, c.Remaining())
		assert.False(t, c.Running())
		assert.Equal(t, 0, <-values)
	})

	t.Run("reset and stop", func(t *testing.T) {
		c := session.NewCountdown(nil).WithTick(time.Hour)
		c.Reset(120)
		assert.True(t, c.Running(), "reset starts a stopped countdown")
		assert.Equal(t, 120, c.Remaining())

		c.Reset(300)
		assert.Equal(t, 300, c.Remaining())

		c.Stop()
		c.Stop()
		assert.False(t, c.Running())
		assert.Equal(t, 300, c.Remaining())
	})

	t.Run("subscriber sees latest value", func(t *testing.T) {
		c := session.NewCountdown(nil).WithTick(time.Hour)
		values, unwatch := c.Subscribe()
		c.Start(10)
		c.Reset(20)
		c.Reset(30)
		assert.Equal(t, 30, <-values)
		unwatch()
		c.Stop()
	})
}

type fakeTTLSource struct {
	ttl        int
	refreshTTL int
	err        error
	syncs      atomic.Int32
}

func (f *fakeTTLSource) SessionTTL(context.Context) (int, error) {
	f.syncs.Add(1)
	return f.ttl, f.err
}

func (f *fakeTTLSource) RefreshSession(context.Context) (int, error) {
	return f.refreshTTL, f.err
}

func TestKeeper(t *testing.T) {
	t.Run("periodic sync resets countdown", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		src := &fakeTTLSource{ttl: 500}
		k := session.NewKeeper(src, bus, session.KeeperConfig{SyncInterval: 10 * time.Millisecond}, zerolog.Nop())
		defer k.Close()

		require.NoError(t, k.Start(context.Background(), 60))
		assert.ErrorIs(t, k.Start(context.Background(), 60), session.ErrKeeperRunning)

		require.Eventually(t, func() bool { return k.Countdown().Remaining() >= 499 }, 2*time.Second, 5*time.Millisecond)
		assert.Positive(t, src.syncs.Load())
	})

	t.Run("forced logout stops countdown", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		k := session.NewKeeper(&fakeTTLSource{ttl: 500}, bus, session.KeeperConfig{SyncInterval: time.Hour}, zerolog.Nop())
		defer k.Close()

		require.NoError(t, k.Start(context.Background(), 60))
		require.NoError(t, bus.Publish(session.Event{Signal: session.SignalForcedLogout}))

		require.Eventually(t, func() bool { return !k.Countdown().Running() }, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("server reports expired", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		expired, unsub := bus.Subscribe(session.SignalSessionExpired)
		defer unsub()

		k := session.NewKeeper(&fakeTTLSource{ttl: 0}, bus, session.KeeperConfig{}, zerolog.Nop())
		defer k.Close()
		require.NoError(t, k.Start(context.Background(), 60))

		require.NoError(t, k.Sync(context.Background()))
		assert.Equal(t, session.SignalSessionExpired, receive(t, expired).Signal)
		assert.False(t, k.Countdown().Running())
	})

	t.Run("extend publishes and resets", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		extended, unsub := bus.Subscribe(session.SignalSessionExtended)
		defer unsub()

		k := session.NewKeeper(&fakeTTLSource{refreshTTL: 1800}, bus, session.KeeperConfig{SyncInterval: time.Hour}, zerolog.Nop())
		defer k.Close()
		require.NoError(t, k.Start(context.Background(), 60))

		require.NoError(t, k.Extend(context.Background()))
		ev := receive(t, extended)
		assert.Equal(t, 1800, ev.Remaining)
		assert.Equal(t, 1800, k.Countdown().Remaining())
	})

	t.Run("nil bus still syncs and extends", func(t *testing.T) {
		k := session.NewKeeper(&fakeTTLSource{ttl: 0, refreshTTL: 900}, nil, session.KeeperConfig{SyncInterval: time.Hour}, zerolog.Nop())
		defer k.Close()
		require.NoError(t, k.Start(context.Background(), 60))

		require.NoError(t, k.Extend(context.Background()))
		assert.Equal(t, 900, k.Countdown().Remaining())

		require.NoError(t, k.Sync(context.Background()))
		require.Eventually(t, func() bool { return !k.Countdown().Running() }, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("sync error is returned", func(t *testing.T) {
		bus := session.NewBus(zerolog.Nop())
		k := session.NewKeeper(&fakeTTLSource{err: errors.New("down")}, bus, session.KeeperConfig{}, zerolog.Nop())
		err := k.Sync(context.Background())
		assert.ErrorContains(t, err, "down")
		assert.Error(t, k.Extend(context.Background()))
		k.Close()
	})
}
