package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorIsComparableByKind(t *testing.T) {
	err := New(NoExistVertex)
	assert.True(t, errors.Is(err, NoExistVertex))
	assert.False(t, errors.Is(err, NoExistEdge))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(NoExistClass, cause)
	assert.True(t, errors.Is(err, NoExistClass))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(TxnCompleted, fmt.Errorf("already closed"))
	assert.Contains(t, err.Error(), "already closed")
	assert.Contains(t, err.Error(), "transaction already committed")
}
