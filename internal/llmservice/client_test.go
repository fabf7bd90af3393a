package llmservice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	// the shape Generate returns when the per-call timeout fires: the
	// transport error wraps context.DeadlineExceeded
	timeout := fmt.Errorf("generate: %w: %w", ErrGeneration,
		fmt.Errorf(`Post "http://localhost:11434/v1/chat/completions": %w`, context.DeadlineExceeded))
	assert.True(t, IsRetryable(timeout))
	assert.True(t, errors.Is(timeout, ErrGeneration))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))

	rateLimited := fmt.Errorf("generate: %w: API returned unexpected status code: 429", ErrGeneration)
	assert.True(t, IsRetryable(rateLimited))

	badKey := fmt.Errorf("generate: %w: incorrect API key provided", ErrGeneration)
	assert.False(t, IsRetryable(badKey))

	assert.False(t, IsRetryable(nil))
}
