package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWrapError_Unwraps tests that wrapped errors stay reachable through errors.Is
func TestWrapError_Unwraps(t *testing.T) {
	base := stderrors.New("boom")
	err := NewExchangeError("orchestrator", "get_balance", base).WithContext("asset", "USDT")

	assert.True(t, stderrors.Is(err, base))
	assert.Equal(t, "USDT", err.Context["asset"])
	assert.Contains(t, err.Error(), "[EXCHANGE:orchestrator] get_balance")
	assert.True(t, err.IsRetryable())

	assert.Nil(t, WrapError(nil, ErrorCategoryOrder, "x", "y"))
}

// TestCategorizeError tests string and type based categorization
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		action   RecoveryAction
	}{
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout, RecoveryActionRetry},
		{"cancelled", fmt.Errorf("cycle: %w", context.Canceled), ErrorCategoryFatal, RecoveryActionStop},
		{"network", stderrors.New("dial tcp: connection refused"), ErrorCategoryNetwork, RecoveryActionRetry},
		{"credentials", stderrors.New("invalid api key"), ErrorCategoryCredentials, RecoveryActionStop},
		{"rate limit", stderrors.New("Too Many Requests"), ErrorCategoryRateLimit, RecoveryActionWait},
		{"balance", stderrors.New("insufficient balance"), ErrorCategoryOrder, RecoveryActionSkip},
		{"validation", stderrors.New("quantity below minimum"), ErrorCategoryValidation, RecoveryActionSkip},
		{"unknown", stderrors.New("nil map write"), ErrorCategoryFatal, RecoveryActionStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			botErr := CategorizeError(tt.err, "cycle", "run")
			require.NotNil(t, botErr)
			assert.Equal(t, tt.category, botErr.Category)
			assert.Equal(t, tt.action, botErr.GetRecoveryAction())
		})
	}
}

// TestCategorizeError_KeepsBotError tests that an existing BotError is not re-wrapped
func TestCategorizeError_KeepsBotError(t *testing.T) {
	orig := NewStorageError("store", "create_trade", stderrors.New("disk full"))
	wrapped := fmt.Errorf("execute: %w", orig)

	got := CategorizeError(wrapped, "cycle", "run")
	assert.Same(t, orig, got)
	assert.True(t, got.IsFatal())
}

// TestGetRecoveryAction_OrderRetryable tests that order errors follow the retryable flag
func TestGetRecoveryAction_OrderRetryable(t *testing.T) {
	err := NewOrderError("orchestrator", "entry", stderrors.New("rejected"))
	assert.Equal(t, RecoveryActionRetry, err.GetRecoveryAction())

	err.WithRetryable(false)
	assert.Equal(t, RecoveryActionSkip, err.GetRecoveryAction())

	assert.Equal(t, RecoveryActionFallback,
		NewProtectionError("orchestrator", "stop_leg", stderrors.New("x")).GetRecoveryAction())
}

// TestErrorStats tests the rolling error history
func TestErrorStats(t *testing.T) {
	stats := NewErrorStats(2)
	assert.Equal(t, 0.0, stats.GetErrorRate(ErrorCategoryOrder))

	stats.RecordError(NewValidationError("gate", "admit", "expired"))
	stats.RecordError(NewOrderError("orchestrator", "entry", stderrors.New("a")))
	stats.RecordError(NewOrderError("orchestrator", "entry", stderrors.New("b")))
	stats.RecordError(nil)

	assert.Equal(t, 3, stats.TotalErrors)
	assert.InDelta(t, 2.0/3.0, stats.GetErrorRate(ErrorCategoryOrder), 1e-9)
	assert.True(t, stats.HasRecentErrors(ErrorCategoryOrder, 2))
	assert.False(t, stats.HasRecentErrors(ErrorCategoryValidation, 1), "oldest entry was evicted")
	assert.Len(t, stats.Recent(), 2)
}
