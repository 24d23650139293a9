// Package interceptors provides http.RoundTripper middleware for outgoing backend calls.
package interceptors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// serverError carries a 5xx response through the breaker so it counts as a failure.
type serverError struct {
	resp *http.Response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("backend responded with status %d", e.resp.StatusCode)
}

// CircuitBreakerRoundTripper wraps every request of next in the breaker.
// 5xx responses trip the breaker but are still returned to the caller unchanged.
// While the breaker is open requests fail with gobreaker.ErrOpenState without reaching the backend.
func CircuitBreakerRoundTripper(cb *gobreaker.CircuitBreaker[*http.Response], next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := cb.Execute(func() (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, &serverError{resp: resp}
			}
			return resp, nil
		})
		var se *serverError
		if errors.As(err, &se) {
			return se.resp, nil
		}
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// NewCircuitBreaker creates a breaker that opens on consecutive failures or a high error rate.
// A caller that went away is not a backend failure.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.TotalSuccesses+counts.TotalFailures > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}
