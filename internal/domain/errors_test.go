package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamStatusError_Unwraps(t *testing.T) {
	err := fmt.Errorf("fetch grid: %w", &UpstreamStatusError{Status: 502})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "502")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", ErrTimeout, true},
		{"wrapped timeout", fmt.Errorf("fetch: %w", ErrTimeout), true},
		{"rate limited", &UpstreamStatusError{Status: 429}, true},
		{"server error", &UpstreamStatusError{Status: 503}, true},
		{"client error", &UpstreamStatusError{Status: 404}, false},
		{"no data", ErrNoData, false},
		{"invalid request", ErrInvalidRequest, false},
		{"bare unavailable", ErrUpstreamUnavailable, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
