package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUserFacing(t *testing.T) {
	assert.True(t, IsUserFacing(ErrMessageNotFound))
	assert.True(t, IsUserFacing(fmt.Errorf("mark read: %w", ErrUnauthorized)))
	assert.True(t, IsUserFacing(ErrInternal))

	// Driver and transport errors stay internal.
	assert.False(t, IsUserFacing(errors.New("dial tcp 10.0.0.1:27017: connection refused")))
	assert.False(t, IsUserFacing(fmt.Errorf("insert message: %w", errors.New("disk I/O error"))))
	assert.False(t, IsUserFacing(nil))
}
