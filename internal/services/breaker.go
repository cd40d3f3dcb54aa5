package services

import (
	"errors"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// breaker wraps one outbound collaborator so that repeated failures fail
// fast instead of holding every mutation for a full client timeout.
//
// Settings:
//   - 3 trial requests in half-open state
//   - counts reset every minute while closed
//   - 30s open before probing again
//   - trips after 5 consecutive failures, or 60% failures over at least 10 requests
type breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

func newBreaker[T any](name string, isSuccessful func(error) bool) *breaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	}
	if isSuccessful != nil {
		settings.IsSuccessful = isSuccessful
	}

	return &breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings), name: name}
}

// execute runs fn through the breaker. A rejected call returns
// gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func (b *breaker[T]) execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case isBreakerRejection(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

func (b *breaker[T]) state() gobreaker.State {
	return b.cb.State()
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
