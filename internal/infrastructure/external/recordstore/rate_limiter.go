package recordstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter implements the Token Bucket algorithm to control request rate.
// The entity store is a shared, rate-limited resource; the sweep must never
// be the client that gets the whole backend throttled.
type RateLimiter struct {
	mu sync.Mutex

	maxTokens   float64       // Maximum tokens in the bucket
	refillRate  float64       // Tokens added per second
	tokens      float64       // Current token count
	lastRefill  time.Time     // Last time tokens were added
	minInterval time.Duration // Minimum interval between requests
	lastRequest time.Time     // Time of last request
	waitTimeout time.Duration // Maximum time to wait for a token
}

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests in a burst.
	BurstSize int

	// MinInterval is the minimum time between requests, even with tokens available.
	MinInterval time.Duration

	// WaitTimeout is the maximum time to wait for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for the entity store.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		MinInterval:       100 * time.Millisecond,
		WaitTimeout:       30 * time.Second,
	}
}

// NewRateLimiter creates a new RateLimiter with the given configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		maxTokens:   float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize), // Start with full bucket
		lastRefill:  now,
		minInterval: config.MinInterval,
		lastRequest: now.Add(-config.MinInterval), // Allow immediate first request
		waitTimeout: config.WaitTimeout,
	}
}

// RateLimitError is returned when the rate limit is exceeded.
type RateLimitError struct {
	// RetryAfter is the suggested time to wait before retrying.
	RetryAfter time.Duration

	// Message provides additional context.
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return e.Message
}

// Is implements the errors.Is interface.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// Allow blocks until a request is permitted or the wait times out.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		waitTime, ok := rl.tryAcquire()
		if ok {
			return nil
		}

		if time.Now().Add(waitTime).After(deadline) {
			return &RateLimitError{
				RetryAfter: waitTime,
				Message:    "rate limit exceeded, retry after " + waitTime.String(),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// tryAcquire attempts to take a token without blocking. If it fails, the
// returned duration indicates how long to wait before retrying.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillTokens()

	if since := time.Since(rl.lastRequest); since < rl.minInterval {
		return rl.minInterval - since, false
	}

	if rl.tokens < 1.0 {
		needed := 1.0 - rl.tokens
		return time.Duration(needed / rl.refillRate * float64(time.Second)), false
	}

	rl.tokens--
	rl.lastRequest = time.Now()
	return 0, true
}

// refillTokens adds tokens based on elapsed time. Must be called with lock held.
func (rl *RateLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	if elapsed > 0 {
		rl.tokens += elapsed * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}
}

// RecordRateLimitHit reacts to a 429 from the store: the bucket is emptied
// and the refill rate backed off so subsequent requests slow down.
func (rl *RateLimiter) RecordRateLimitHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = 0
	rl.refillRate *= 0.8
	rl.lastRequest = time.Now()
}

// Reset restores the limiter to its initial state.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.maxTokens
	rl.lastRefill = time.Now()
	rl.lastRequest = time.Now().Add(-rl.minInterval)
}

// RateLimiterStatus is a point-in-time view of the limiter.
type RateLimiterStatus struct {
	AvailableTokens float64
	MaxTokens       float64
	RefillRate      float64
}

// Status returns the current status of the rate limiter.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillTokens()

	return RateLimiterStatus{
		AvailableTokens: rl.tokens,
		MaxTokens:       rl.maxTokens,
		RefillRate:      rl.refillRate,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER - Protection against a failing entity store
// ══════════════════════════════════════════════════════════════════════════════

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed - normal operation, requests pass through.
	CircuitClosed CircuitState = iota

	// CircuitOpen - circuit is open, requests fail fast.
	CircuitOpen

	// CircuitHalfOpen - testing whether the store recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the Circuit Breaker pattern.
type CircuitBreaker struct {
	mu sync.RWMutex

	failureThreshold   int
	successThreshold   int
	timeout            time.Duration
	halfOpenMaxRetries int

	state            CircuitState
	failures         int
	successes        int
	lastStateChange  time.Time
	halfOpenRequests int
}

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before the circuit opens.
	FailureThreshold int

	// SuccessThreshold is the number of successes needed to close the circuit.
	SuccessThreshold int

	// Timeout is how long to wait before trying again.
	Timeout time.Duration

	// HalfOpenMaxRetries is the number of test requests in half-open state.
	HalfOpenMaxRetries int
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   5,
		SuccessThreshold:   2,
		Timeout:            30 * time.Second,
		HalfOpenMaxRetries: 3,
	}
}

// NewCircuitBreaker creates a new CircuitBreaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold:   config.FailureThreshold,
		successThreshold:   config.SuccessThreshold,
		timeout:            config.Timeout,
		halfOpenMaxRetries: config.HalfOpenMaxRetries,
		state:              CircuitClosed,
		lastStateChange:    time.Now(),
	}
}

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Allow checks if a request should be allowed through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(cb.lastStateChange) > cb.timeout {
			cb.toHalfOpen()
			return nil
		}
		return ErrCircuitOpen

	case CircuitHalfOpen:
		if cb.halfOpenRequests < cb.halfOpenMaxRetries {
			cb.halfOpenRequests++
			return nil
		}
		return ErrCircuitOpen
	}

	return nil
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.toClosed()
		}
	case CircuitClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.failureThreshold {
			cb.toOpen()
		}
	case CircuitHalfOpen:
		cb.toOpen()
	}
}

// State returns the current state of the circuit.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset closes the circuit breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
}

// Internal state transitions (must be called with lock held)

func (cb *CircuitBreaker) toClosed() {
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = CircuitOpen
	cb.lastStateChange = time.Now()
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = CircuitHalfOpen
	cb.successes = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}
