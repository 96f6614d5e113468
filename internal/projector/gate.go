package projector

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Clock abstracts time for the gate so tests can drive it without
// real sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Gate serialises access to the projector. The firmware's CGI handler
// corrupts responses when requests overlap or arrive back to back, so
// every transport call goes through a single slot with a minimum
// spacing between sends.
//
// Thread Safety: Do is safe for concurrent use; callers queue on the
// slot and are released one at a time.
type Gate struct {
	slot        chan struct{}
	clock       Clock
	spacing     time.Duration
	slotTimeout time.Duration
	attempts    int
	retryDelay  time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// GateConfig carries the gate's timing parameters.
type GateConfig struct {
	// MinSpacing is the minimum interval between consecutive sends.
	MinSpacing time.Duration

	// SlotTimeout bounds how long a caller waits for the slot before
	// giving up with ErrGateTimeout. 0 means 10s.
	SlotTimeout time.Duration

	// Attempts is the total number of tries per request, including the
	// first. Only transport failures are retried. 0 means 3.
	Attempts int

	// RetryDelay is the pause before each retry attempt. 0 means 800ms.
	RetryDelay time.Duration
}

const (
	defaultSlotTimeout = 10 * time.Second
	defaultAttempts    = 3
	defaultRetryDelay  = 800 * time.Millisecond
)

// NewGate builds a Gate. A nil clock uses the wall clock.
func NewGate(cfg GateConfig, clock Clock) *Gate {
	if clock == nil {
		clock = realClock{}
	}
	if cfg.SlotTimeout <= 0 {
		cfg.SlotTimeout = defaultSlotTimeout
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Gate{
		slot:        make(chan struct{}, 1),
		clock:       clock,
		spacing:     cfg.MinSpacing,
		slotTimeout: cfg.SlotTimeout,
		attempts:    cfg.Attempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Do acquires the slot, enforces send spacing, and runs fn with a
// per-attempt deadline. Transport failures (ErrTransport,
// ErrTransportTimeout) are retried up to the configured attempt count;
// anything else returns immediately. Waiting longer than the slot
// timeout returns ErrGateTimeout without running fn.
func (g *Gate) Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	select {
	case g.slot <- struct{}{}:
	case <-g.clock.After(g.slotTimeout):
		return "", ErrGateTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-g.slot }()

	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			if err := g.clock.Sleep(ctx, g.retryDelay); err != nil {
				return "", err
			}
		}
		if err := g.enforceSpacing(ctx); err != nil {
			return "", err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !transient(err) {
			return "", err
		}
	}
	return "", lastErr
}

func transient(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTransportTimeout)
}

func (g *Gate) enforceSpacing(ctx context.Context) error {
	g.mu.Lock()
	last := g.lastSend
	g.mu.Unlock()

	if elapsed := g.clock.Now().Sub(last); elapsed < g.spacing {
		if err := g.clock.Sleep(ctx, g.spacing-elapsed); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.lastSend = g.clock.Now()
	g.mu.Unlock()
	return nil
}
