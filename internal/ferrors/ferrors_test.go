package ferrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
)

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := ferrors.Wrap(ferrors.CategoryRunner, "RUN_FAILED", "failed to run", nil, cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestNewHasNoCause(t *testing.T) {
	err := ferrors.New(ferrors.CategoryConfig, "BAD", "bad config", nil)
	assert.Nil(t, errors.Unwrap(err))
}

func TestErrorMessageIncludesCategoryAndCode(t *testing.T) {
	err := ferrors.New(ferrors.CategoryMutate, "OP_FAILED", "operator failed", nil)
	assert.Contains(t, err.Error(), "MUTATE")
	assert.Contains(t, err.Error(), "OP_FAILED")
	assert.Contains(t, err.Error(), "operator failed")
}

func TestMissingSeedDirNamesThePath(t *testing.T) {
	err := ferrors.MissingSeedDir("/tmp/does-not-exist")
	assert.Contains(t, err.Error(), "/tmp/does-not-exist")
}

func TestAsRecoversConcreteType(t *testing.T) {
	var err error = ferrors.NoTargets()
	var target *ferrors.Error
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, ferrors.CategoryConfig, target.Category)
}
