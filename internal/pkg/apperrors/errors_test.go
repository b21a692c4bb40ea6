package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewInvalidRequest("bad", nil).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, NewUpstreamTool("tools", nil).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, NewModelStream("model", nil).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, NewConfiguration("cfg").HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, New(ErrRateLimited, "slow down", nil).HTTPStatus)
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	typed := NewUpstreamTool("build tools", cause)
	wrapped := fmt.Errorf("dispatch: %w", typed)

	assert.Same(t, typed, Wrap(wrapped))
	assert.True(t, Is(wrapped, ErrUpstreamTool))
	assert.False(t, Is(wrapped, ErrModelStream))
	assert.ErrorIs(t, typed, cause)

	plain := Wrap(cause)
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Nil(t, Wrap(nil))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "missing key", NewConfiguration("missing key").Error())
	assert.Equal(t, "build tools: boom", NewUpstreamTool("build tools", errors.New("boom")).Error())
}
