/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package provider

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/metrics"
)

// RetryPolicy bounds how often a retryable provider failure is repeated.
// MaxAttempts counts the first call; 1 disables retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Factor         float64
	Jitter         float64
}

// DefaultRetryPolicy is four attempts spaced roughly 0.5s, 1s, 2s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		Factor:         2,
		Jitter:         0.1,
	}
}

func (p RetryPolicy) backoff() wait.Backoff {
	return wait.Backoff{
		Duration: p.InitialBackoff,
		Factor:   p.Factor,
		Jitter:   p.Jitter,
		Steps:    max(p.MaxAttempts, 1),
	}
}

// Retry runs call until it succeeds, fails with a non-retryable error, or
// the policy is exhausted, in which case the last provider error is
// returned. op labels the attempt metrics.
func Retry(ctx context.Context, op string, p RetryPolicy, call func(context.Context) error) error {
	log := ctrl.Log.WithName("provider.retry")

	var lastErr error
	attempt := 0
	err := wait.ExponentialBackoffWithContext(ctx, p.backoff(), func(ctx context.Context) (bool, error) {
		attempt++
		err := call(ctx)
		if err == nil {
			metrics.ProviderRequests.WithLabelValues(op, "ok").Inc()
			return true, nil
		}
		lastErr = err

		var perr *Error
		if errors.As(err, &perr) && perr.Retryable() {
			metrics.ProviderRequests.WithLabelValues(op, "retry").Inc()
			log.V(1).Info("retryable provider failure", "op", op, "attempt", attempt, "error", err.Error())
			return false, nil
		}
		metrics.ProviderRequests.WithLabelValues(op, "error").Inc()
		return false, err
	})
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) && lastErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return lastErr
	}
	return err
}
