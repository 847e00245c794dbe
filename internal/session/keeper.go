package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/rs/zerolog"
)

// Keeper defaults.
const (
	DefaultSyncInterval = 30 * time.Second
	DefaultSyncJitter   = 2 * time.Second
)

// ErrKeeperRunning is returned by Start on a keeper that is already running.
var ErrKeeperRunning = errors.New("session keeper already running")

// TTLSource reports and extends the server-side session lifetime.
type TTLSource interface {
	// SessionTTL returns the remaining session lifetime in seconds.
	SessionTTL(ctx context.Context) (int, error)
	// RefreshSession extends the session and returns the new lifetime.
	RefreshSession(ctx context.Context) (int, error)
}

// KeeperConfig controls the synchronization cadence.
type KeeperConfig struct {
	SyncInterval time.Duration
	// Jitter is the standard deviation applied to each sync interval so
	// that many clients do not hit the backend in lockstep.
	Jitter time.Duration
}

// Keeper keeps the local countdown aligned with the server session TTL.
// Create one at login and Close it at logout.
type Keeper struct {
	source    TTLSource
	bus       *Bus
	countdown *Countdown
	cfg       KeeperConfig
	logger    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKeeper creates a stopped keeper with its own countdown. A nil bus gets
// a private one, so signals then stay inside the keeper.
func NewKeeper(source TTLSource, bus *Bus, cfg KeeperConfig, logger zerolog.Logger) *Keeper {
	if bus == nil {
		bus = NewBus(logger)
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Keeper{
		source:    source,
		bus:       bus,
		countdown: NewCountdown(bus),
		cfg:       cfg,
		logger:    logger,
	}
}

// Countdown returns the keeper's countdown for read-only observation.
func (k *Keeper) Countdown() *Countdown {
	return k.countdown
}

// Start starts the countdown at initialSeconds and begins periodic
// synchronization. The keeper stops on ctx cancellation, on Close, on a
// forced logout and on expiry.
func (k *Keeper) Start(ctx context.Context, initialSeconds int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return ErrKeeperRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})

	events, unsubscribe := k.bus.Subscribe(SignalForcedLogout, SignalSessionExpired)
	k.countdown.Start(initialSeconds)

	go k.run(runCtx, events, unsubscribe, k.done)
	return nil
}

func (k *Keeper) run(ctx context.Context, events <-chan Event, unsubscribe func(), done chan struct{}) {
	defer close(done)
	defer unsubscribe()

	ticker := jitterbug.New(k.cfg.SyncInterval, &jitterbug.Norm{Stdev: k.cfg.Jitter})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			k.logger.Info().
				Str("signal", string(ev.Signal)).
				Str("reason", ev.Reason).
				Msg("session ended, stopping keepalive")
			k.countdown.Stop()
			return
		case <-ticker.C:
			if err := k.Sync(ctx); err != nil {
				k.logger.Warn().Err(err).Msg("session ttl sync failed")
			}
		}
	}
}

// Sync fetches the server TTL and resets the countdown to it. A server
// reporting no remaining lifetime expires the session immediately.
func (k *Keeper) Sync(ctx context.Context) error {
	remaining, err := k.source.SessionTTL(ctx)
	if err != nil {
		return fmt.Errorf("syncing session ttl: %w", err)
	}

	if remaining <= 0 {
		k.countdown.Stop()
		return k.bus.Publish(Event{Signal: SignalSessionExpired, Reason: "server reported expired session"})
	}

	k.countdown.Reset(remaining)
	k.logger.Debug().Int("remaining_seconds", remaining).Msg("session ttl synchronized")
	return nil
}

// Extend refreshes the server session and resets the countdown.
func (k *Keeper) Extend(ctx context.Context) error {
	remaining, err := k.source.RefreshSession(ctx)
	if err != nil {
		return fmt.Errorf("extending session: %w", err)
	}

	k.countdown.Reset(remaining)
	return k.bus.Publish(Event{
		Signal:    SignalSessionExtended,
		Reason:    "session refreshed",
		Remaining: remaining,
	})
}

// Close stops synchronization and the countdown. It is safe to call more
// than once.
func (k *Keeper) Close() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	k.countdown.Stop()
}
