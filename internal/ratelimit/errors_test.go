package ratelimit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	t.Run("unavailable keeps cause", func(t *testing.T) {
		err := &ratelimit.StoreError{Op: "add member", Key: "ratelimit:a", Err: context.DeadlineExceeded}

		assert.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), `add member "ratelimit:a"`)
	})

	t.Run("inconsistent is not unavailable", func(t *testing.T) {
		cause := errors.Join(ratelimit.ErrStoreInconsistent, errMock)
		err := &ratelimit.StoreError{Op: "record window", Key: "k", Err: cause}

		assert.ErrorIs(t, err, ratelimit.ErrStoreInconsistent)
		assert.NotErrorIs(t, err, ratelimit.ErrStoreUnavailable)
	})
}

func TestInputError(t *testing.T) {
	err := &ratelimit.InputError{Field: "limit", Message: "must be greater than zero"}

	assert.ErrorIs(t, err, ratelimit.ErrInvalidInput)
	assert.Equal(t, "ratelimit: invalid limit: must be greater than zero", err.Error())
}

func TestDecision_Remaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit uint32
		count int64
		want  int64
	}{
		{name: "under limit", limit: 5, count: 2, want: 3},
		{name: "at limit", limit: 5, count: 5, want: 0},
		{name: "over limit", limit: 5, count: 9, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := ratelimit.Decision{Limit: tt.limit, Count: tt.count}

			assert.Equal(t, tt.want, d.Remaining())
		})
	}
}
