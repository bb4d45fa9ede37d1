package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindNotFound, "no server with id abc")
	assert.Equal(t, "[NOT_FOUND] no server with id abc", err.Error())

	wrapped := Wrap(KindBackend, "failed to query servers", errors.New("db locked"))
	assert.Equal(t, "[BACKEND] failed to query servers: db locked", wrapped.Error())
}

func TestIsKind(t *testing.T) {
	err := Newf(KindForbidden, "user %s lacks write on %s", "u1", "b1")
	assert.True(t, IsKind(err, KindForbidden))
	assert.False(t, IsKind(err, KindNotFound))

	// kind survives fmt wrapping
	outer := fmt.Errorf("handling request: %w", err)
	assert.True(t, IsKind(outer, KindForbidden))

	assert.False(t, IsKind(errors.New("plain"), KindForbidden))
	assert.False(t, IsKind(nil, KindForbidden))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(New(KindValidation, "bad id")))
	assert.Equal(t, KindInternal, KindOf(errors.New("unknown")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindPeripheryUnreachable, "probing server", cause)
	assert.ErrorIs(t, err, cause)
}
