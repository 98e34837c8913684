package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := New(CodeConflict, "already exists")

	assert.True(t, HasCode(base, CodeConflict))
	assert.False(t, HasCode(base, CodeNotFound))
	assert.False(t, HasCode(nil, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}

func TestHasCodeThroughChain(t *testing.T) {
	inner := New(CodeNotFound, "capsule")
	outer := Wrap(inner, CodeInternal, "lookup failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeConflict))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeBadRequest, CodeOf(New(CodeBadRequest, "bad")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("context: %w", New(CodeTimeout, "slow"))
	assert.Equal(t, CodeTimeout, CodeOf(wrapped))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeUnavailable, "store write failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "store write failed")
}

func TestNewf(t *testing.T) {
	err := Newf(CodeBadRequest, "limit is %d", 32)
	assert.Equal(t, "limit is 32", err.Error())
}
