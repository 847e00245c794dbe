package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Signal names one of the session events components may react to.
type Signal string

// The closed set of session signals.
const (
	// SignalForcedLogout is published when the backend rejects the session
	// token (HTTP 401).
	SignalForcedLogout Signal = "forced_logout"

	// SignalLoginRequired asks the user interface to prompt for credentials.
	SignalLoginRequired Signal = "login_required"

	// SignalSessionExpired is published when the countdown reaches zero.
	SignalSessionExpired Signal = "session_expired"

	// SignalSessionExtended is published after a successful refresh.
	SignalSessionExtended Signal = "session_extended"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 8

// ErrUnknownSignal is returned when publishing a signal outside the closed set.
var ErrUnknownSignal = errors.New("unknown session signal")

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("session bus closed")

// Valid reports whether s belongs to the closed signal set.
func (s Signal) Valid() bool {
	switch s {
	case SignalForcedLogout, SignalLoginRequired, SignalSessionExpired, SignalSessionExtended:
		return true
	default:
		return false
	}
}

// Event is the payload carried by every signal.
type Event struct {
	Signal Signal
	// Reason is a short human-readable cause, e.g. the failing request.
	Reason string
	// Remaining is the session TTL in seconds at publish time, when known.
	Remaining int
	At        time.Time
}

type subscription struct {
	ch      chan Event
	signals map[Signal]bool
}

func (s *subscription) wants(sig Signal) bool {
	return len(s.signals) == 0 || s.signals[sig]
}

// Bus is a publish/subscribe channel for session signals.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	logger zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Subscribe registers for the given signals, or for all signals when none
// are given. The returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe(signals ...Signal) (<-chan Event, func()) {
	sub := &subscription{
		ch:      make(chan Event, subscriberBuffer),
		signals: make(map[Signal]bool, len(signals)),
	}
	for _, s := range signals {
		sub.signals[s] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish delivers e to every interested subscriber without blocking. A
// subscriber whose buffer is full misses the event; the drop is logged.
func (b *Bus) Publish(e Event) error {
	if !e.Signal.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, e.Signal)
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for id, sub := range b.subs {
		if !sub.wants(e.Signal) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn().
				Str("signal", string(e.Signal)).
				Int("subscriber", id).
				Msg("subscriber buffer full, dropping session event")
		}
	}

	b.logger.Debug().Str("signal", string(e.Signal)).Str("reason", e.Reason).Msg("session event published")
	return nil
}

// Close closes every subscriber channel. Further publishes fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
