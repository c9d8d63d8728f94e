package gemini

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy retries an operation a fixed number of times with a fixed
// delay between attempts. Only errors accepted by Retryable are retried;
// anything else fails the operation immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy matches the provider contract: three attempts, five
// seconds apart, retrying only transient API errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		Retryable:   IsTransient,
	}
}

// Do runs op until it succeeds, exhausts MaxAttempts, hits a non-retryable
// error, or the context is cancelled during a delay.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return err
}

// IsTransient reports whether err is a rate limit, service availability,
// deadline, or internal server problem worth retrying. The Gemini SDK
// surfaces errors either as googleapi errors (REST) or gRPC status errors
// depending on transport, so both are checked.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429, 500, 503, 504:
			return true
		}
		return false
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
			return true
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return false
}
