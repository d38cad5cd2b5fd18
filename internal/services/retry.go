package services

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// retryRead runs an idempotent remote read, retrying transport failures with
// exponential backoff. Mutations never go through here.
func retryRead[T any](ctx context.Context, policy dbadmin.RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !isRetryable(err) || attempt >= policy.MaxRetries {
			return zero, err
		}
		if !sleepWithBackoff(ctx, policy, op, attempt) {
			return zero, err
		}
	}
}

// sleepWithBackoff waits for the backoff duration. It returns false if the
// context was cancelled first.
func sleepWithBackoff(ctx context.Context, policy dbadmin.RetryPolicy, op string, attempt int) bool {
	delay := calculateBackoff(policy, attempt)
	slog.Info("retry: backing off", "op", op, "attempt", attempt+1, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// calculateBackoff computes the delay for a given attempt using exponential backoff.
func calculateBackoff(policy dbadmin.RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.BackoffFactor, float64(attempt))
	if time.Duration(delay) > policy.MaxDelay {
		return policy.MaxDelay
	}
	return time.Duration(delay)
}

// isRetryable checks if an error is worth retrying. Network failures always
// are; unclassified errors are judged by their message.
func isRetryable(err error) bool {
	switch dbadmin.KindOf(err) {
	case dbadmin.KindNetwork:
		return true
	case dbadmin.KindUnknown:
		return isRetryableMsg(err.Error())
	}
	return false
}

// isRetryableMsg checks if an error message indicates a retryable condition.
func isRetryableMsg(msg string) bool {
	lower := strings.ToLower(msg)
	retryablePatterns := []string{
		"timeout", "too many requests",
		"429", "502", "503", "504",
		"connection reset", "connection refused", "eof",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
