package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NewError(CodeInvalidArg, "vector_search", "k must be > 0")

	assert.True(t, errors.Is(err, ErrInvalidArg))
	assert.False(t, errors.Is(err, ErrUnknownTool))
	assert.Equal(t, "INVALID_ARG in vector_search: k must be > 0", err.Error())
}

func TestError_WrappedChain(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("dispatch: %w", WrapError(CodeExecution, "lookup", cause))

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeExecution, CodeOf(err))
	assert.Equal(t, "", CodeOf(cause))
}

func TestError_NoSource(t *testing.T) {
	err := NewError(CodeParseError, "", "expected one JSON object")
	assert.Equal(t, "PARSE_ERROR: expected one JSON object", err.Error())
}
