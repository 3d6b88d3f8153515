package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State identifies a breaker's position in its closed / open / half-open cycle.
type State int

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects all calls until the cooldown lapses.
	StateOpen
	// StateHalfOpen admits a limited number of probe calls.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker defaults.
const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
	defaultProbeQuota       = 3
)

// BreakerConfig configures a [Breaker]. Zero values fall back to the defaults
// documented on each field.
type BreakerConfig struct {
	// Name identifies the guarded dependency in logs.
	Name string
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker open. Defaults to 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting probe
	// calls again. Defaults to 30s.
	Cooldown time.Duration
	// ProbeQuota is the number of probe calls admitted while half-open.
	// That many consecutive successes close the breaker; any failure
	// re-opens it. Defaults to 3.
	ProbeQuota int
}

// Breaker is a three-state circuit breaker. While closed it counts
// consecutive failures and trips open at the threshold. While open it
// rejects calls with [ErrCircuitOpen] until the cooldown lapses, then admits
// up to ProbeQuota probe calls; if they all succeed the breaker closes, and
// any probe failure re-opens it for another cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	quota     int

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // when the breaker last tripped
	probes   int       // probe calls admitted in the current half-open window
	probeOKs int       // successful probes in the current half-open window

	now func() time.Time // swapped out in tests
}

// NewBreaker creates a [Breaker] from cfg, applying defaults for zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = defaultProbeQuota
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		quota:     cfg.ProbeQuota,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Do runs fn if the breaker admits the call and feeds the outcome back into
// the breaker's accounting. When the breaker is open, fn is not run and
// [ErrCircuitOpen] is returned.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

// State reports the breaker's effective state. An open breaker whose
// cooldown has lapsed reports [StateHalfOpen] even before the next call
// arrives.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all accounting.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeOKs = 0
	slog.Info("circuit breaker reset", "name", b.name)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probes = 1
		b.probeOKs = 0
		slog.Info("circuit breaker half-open",
			"name", b.name,
			"probe_quota", b.quota)
		return nil
	case StateHalfOpen:
		if b.probes >= b.quota {
			return ErrCircuitOpen
		}
		b.probes++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	case StateHalfOpen:
		if !ok {
			b.trip()
			return
		}
		b.probeOKs++
		if b.probeOKs >= b.quota {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit breaker closed",
				"name", b.name,
				"probes", b.probeOKs)
		}
	case StateOpen:
		// A call admitted just before a concurrent trip. Failures extend
		// the cooldown window; successes are ignored.
		if !ok {
			b.openedAt = b.now()
		}
	}
}

// trip moves the breaker to open. Callers must hold b.mu.
func (b *Breaker) trip() {
	from := b.state
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probes = 0
	b.probeOKs = 0
	slog.Warn("circuit breaker opened",
		"name", b.name,
		"from", from.String(),
		"cooldown", b.cooldown)
}
