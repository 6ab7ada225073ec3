package providers

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NewCircuitBreaker trips after threshold consecutive failures, or once at least
// three requests have been seen with a 60% failure ratio.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= uint32(threshold) {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
