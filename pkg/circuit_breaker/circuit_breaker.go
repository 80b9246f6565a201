package circuit_breaker

import (
	"errors"
	"sync"
	"time"
)

type State uint8

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Call(fn func() error) error
	// Allow and Done split Call for work whose result arrives later.
	// Every nil Allow must be followed by exactly one Done.
	Allow() error
	Done(err error)
	State() State
	Reset()
}

type Settings struct {
	// Window is the number of most recent calls used to compute the failure ratio.
	Window int
	// Cooldown is how long the breaker stays open before letting a trial call through.
	Cooldown time.Duration
	// FailureRatio in (0, 1] opens the breaker.
	FailureRatio float64
	// HalfOpenSuccesses is the number of consecutive successes in half-open needed to close.
	HalfOpenSuccesses int
}

type circuitBreaker struct {
	mu       sync.Mutex
	settings Settings
	state    State
	openedAt time.Time
	results  []bool // true = failed
	pos      int
	trialsOK int
	now      func() time.Time
}

func New(settings Settings) CircuitBreaker {
	if settings.Window <= 0 {
		settings.Window = 1
	}
	return &circuitBreaker{
		settings: settings,
		state:    Closed,
		results:  make([]bool, settings.Window),
		now:      time.Now,
	}
}

func (cb *circuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Call(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Done(err)
	return err
}

func (cb *circuitBreaker) Allow() error {
	if !cb.allow() {
		return ErrOpen
	}
	return nil
}

func (cb *circuitBreaker) Done(err error) {
	cb.record(err != nil)
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != Open {
		return true
	}
	if cb.now().Sub(cb.openedAt) < cb.settings.Cooldown {
		return false
	}
	cb.state = HalfOpen
	cb.trialsOK = 0
	return true
}

func (cb *circuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.results[cb.pos] = failed
	cb.pos = (cb.pos + 1) % len(cb.results)

	switch cb.state {
	case HalfOpen:
		if failed {
			cb.trip()
			return
		}
		cb.trialsOK++
		if cb.trialsOK >= cb.settings.HalfOpenSuccesses {
			cb.reset()
		}
	case Closed:
		fails := 0
		for _, f := range cb.results {
			if f {
				fails++
			}
		}
		if float64(fails)/float64(len(cb.results)) >= cb.settings.FailureRatio {
			cb.trip()
		}
	}
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.trialsOK = 0
	cb.openedAt = cb.now()
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) reset() {
	for i := range cb.results {
		cb.results[i] = false
	}
	cb.trialsOK = 0
	cb.pos = 0
	cb.state = Closed
}
