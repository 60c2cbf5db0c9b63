package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndRetryable(t *testing.T) {
	err := New(ErrCodeTimeout, "analysis timed out", nil)

	assert.Equal(t, CategoryInference, err.Category)
	assert.True(t, err.Retryable)
	assert.Equal(t, "[ERR_402_TIMEOUT] analysis timed out", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := Wrap(ErrCodeStoreUnavailable, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := NotFound("/media/missing.mp4")
	target := New(ErrCodeNotFound, "", nil)

	assert.ErrorIs(t, err, target)
}

func TestGetCode_ThroughWrappedChain(t *testing.T) {
	inner := AlreadyProcessing("abc123")
	outer := fmt.Errorf("submit failed: %w", inner)

	assert.Equal(t, ErrCodeAlreadyProcessing, GetCode(outer))
	assert.True(t, HasCode(outer, ErrCodeAlreadyProcessing))
	assert.True(t, IsRetryable(outer))
}

func TestCategoryFromCode(t *testing.T) {
	cases := map[string]Category{
		ErrCodeConfigInvalid:     CategoryConfig,
		ErrCodeCorruptInput:      CategoryInput,
		ErrCodeDimensionMismatch: CategoryStore,
		ErrCodeInferenceFailed:   CategoryInference,
		ErrCodeAlreadyProcessing: CategoryConcurrency,
		ErrCodeInternal:          CategoryInternal,
	}
	for code, want := range cases {
		assert.Equal(t, want, categoryFromCode(code), code)
	}
}

func TestIsRetryable_NonMediaError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
