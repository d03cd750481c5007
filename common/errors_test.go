package common

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf_Wrapped(t *testing.T) {
	err := errors.Wrapf(ErrInvalidPDA, "vault %v", "abc")

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, InvalidPDA, code)
	assert.Equal(t, ErrInvalidPDA, errors.Cause(err))
	assert.True(t, Is(err, InvalidPDA))
	assert.False(t, Is(err, InvalidOwner))
}

func TestCodeOf_Foreign(t *testing.T) {
	_, ok := CodeOf(errors.New("boom"))
	assert.False(t, ok)

	_, ok = CodeOf(nil)
	assert.False(t, ok)
}

func TestError_Tag(t *testing.T) {
	assert.Equal(t, "TokenAccountOwnerMismatch", ErrTokenAccountOwnerMismatch.Tag())
	assert.Equal(t, "CastOverflow", CastOverflow.String())
	assert.Equal(t, "Code(1)", Code(1).String())
	assert.Equal(t, Code(6000), ErrMissingSignature.Code())
}
