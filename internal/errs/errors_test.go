package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_NilCause(t *testing.T) {
	assert.NoError(t, Wrap(nil, CategoryConfiguration, "x"))
}

func TestConfiguration_IsAndCategory(t *testing.T) {
	err := Configuration("invalid_preset", errors.New("invalid preset name"))

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, errors.Is(err, ErrDependencyViolation))
	assert.Equal(t, CategoryConfiguration, CategoryOf(err))
	assert.Equal(t, "invalid_preset", CodeOf(err))
	assert.Equal(t, "invalid preset name", err.Error())
}

func TestDependencyViolation_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("failed to remove step: %w",
		DependencyViolation("step_required", errors.New("required by sessions_with_channel")))

	assert.True(t, errors.Is(err, ErrDependencyViolation))
	assert.Equal(t, CategoryDependencyViolation, CategoryOf(err))
	assert.Equal(t, "step_required", CodeOf(err))
}

func TestMissingTarget(t *testing.T) {
	err := MissingTarget("table_name_required", errors.New("table name is required"))

	assert.True(t, errors.Is(err, ErrMissingTarget))
	assert.Equal(t, CategoryMissingTarget, CategoryOf(err))
}

func TestCategoryOf_PlainError(t *testing.T) {
	assert.Equal(t, Category(""), CategoryOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}
