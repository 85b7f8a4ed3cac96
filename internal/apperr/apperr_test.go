package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("annotation", "abc")))
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindUnauthorized, KindOf(Unauthorized("no credential")))
	assert.Equal(t, KindTransient, KindOf(Transient("op", errors.New("boom"))))
	assert.Equal(t, KindFatal, KindOf(Fatal("op", errors.New("boom"))))
}

func TestKindOf_UnknownErrorDefaultsToTransient(t *testing.T) {
	assert.Equal(t, KindTransient, KindOf(errors.New("plain error")))
}

func TestIs(t *testing.T) {
	err := NotFound("session", "xyz")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindValidation))
}

func TestNotFound_MessageIncludesEntityAndID(t *testing.T) {
	err := NotFound("annotation", "abc123")
	assert.Contains(t, err.Error(), "annotation")
	assert.Contains(t, err.Error(), "abc123")
}
