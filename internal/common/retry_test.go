package common

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			errs:      []error{errors.New("boom"), errors.New("boom"), nil},
			wantCalls: 3,
		},
		{
			name:      "stops on non-retryable error",
			errs:      []error{&RetryableError{Err: errors.New("bad request"), Retryable: false}},
			wantCalls: 1,
		},
		{
			name:      "gives up after max attempts",
			errs:      []error{errors.New("a"), errors.New("b"), errors.New("c")},
			wantCalls: 3,
			wantErr:   ErrMaxRetries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			}, fastRetry(3))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errs[len(tt.errs)-1] == nil {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		return errors.New("boom")
	}, fastRetry(5))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestHTTPStatusError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		rateLimit bool
	}{
		{status: http.StatusTooManyRequests, retryable: true, rateLimit: true},
		{status: http.StatusInternalServerError, retryable: true},
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusBadRequest, retryable: false},
		{status: http.StatusUnauthorized, retryable: false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := HTTPStatusError("test", tt.status, []byte("body"))
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.rateLimit, errors.Is(err, ErrRateLimit))
			assert.Contains(t, err.Error(), "body")
		})
	}
}

func TestIsIntegrityError(t *testing.T) {
	assert.True(t, IsIntegrityError(ErrUserNotFound))
	assert.True(t, IsIntegrityError(NewUserError("oops", ErrCategoryNotFound)))
	assert.False(t, IsIntegrityError(ErrNotFound))
	assert.False(t, IsIntegrityError(errors.New("other")))
}
