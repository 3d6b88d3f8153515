package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every link in a [Chain] either failed or had
// an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// ChainConfig configures a [Chain]. The Breaker config is cloned for every
// link, with the link's name substituted in.
type ChainConfig struct {
	Breaker BreakerConfig
}

type link[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain tries a primary value first and falls back through the remaining
// links in registration order. Every link is guarded by its own circuit
// breaker, so a flapping primary stops being consulted until its cooldown
// lapses instead of adding latency to every call.
type Chain[T any] struct {
	cfg   ChainConfig
	links []*link[T]
}

// NewChain creates a [Chain] with primary as its first link.
func NewChain[T any](name string, primary T, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback link. Links are tried in the order they were added.
func (c *Chain[T]) Add(name string, value T) {
	bcfg := c.cfg.Breaker
	bcfg.Name = name
	c.links = append(c.links, &link[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bcfg),
	})
}

// Do invokes fn with each link's value in order until one call succeeds.
// Links with open breakers are skipped. If no link succeeds the returned
// error wraps [ErrAllFailed].
func (c *Chain[T]) Do(fn func(T) error) error {
	var lastErr error
	for _, l := range c.links {
		err := l.breaker.Do(func() error { return fn(l.value) })
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", l.name)
			continue
		}
		slog.Warn("provider failed, trying next",
			"provider", l.name,
			"error", err)
		lastErr = err
	}
	if lastErr == nil {
		return ErrAllFailed
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// DoWithResult is the value-returning form of [Chain.Do]. It is a
// package-level function because Go does not support method-level type
// parameters.
func DoWithResult[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := c.Do(func(v T) error {
		var fnErr error
		result, fnErr = fn(v)
		return fnErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
