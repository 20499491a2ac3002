package dispatcher

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// MicroBreaker is a small per-connector circuit breaker: a run of
// consecutive failures opens it for a fixed window, then a single probe is
// allowed through before it fully closes again.
type MicroBreaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func NewMicroBreaker(threshold int, openFor time.Duration) *MicroBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &MicroBreaker{failThreshold: threshold, openFor: openFor}
}

// TryAcquire reports whether a call may proceed now. While half-open only
// one probe is admitted at a time.
func (b *MicroBreaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.st {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.After(b.nextTryAt) && !b.probeInFlight {
			b.st = breakerHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case breakerHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *MicroBreaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = breakerClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *MicroBreaker) OnFailure() {
	b.mu.Lock()
	if b.st == breakerHalfOpen {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}

	b.mu.Unlock()
}

// breakerSet lazily tracks one breaker per connector configuration.
type breakerSet struct {
	mu        sync.Mutex
	byConn    map[string]*MicroBreaker
	threshold int
	openFor   time.Duration
}

func newBreakerSet(threshold int, openFor time.Duration) *breakerSet {
	return &breakerSet{
		byConn:    make(map[string]*MicroBreaker),
		threshold: threshold,
		openFor:   openFor,
	}
}

func (s *breakerSet) get(connectorID string) *MicroBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byConn[connectorID]
	if !ok {
		b = NewMicroBreaker(s.threshold, s.openFor)
		s.byConn[connectorID] = b
	}
	return b
}
