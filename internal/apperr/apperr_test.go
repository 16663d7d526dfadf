package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindClassification(t *testing.T) {
	err := Validation("level_order %d already used", 3)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, "level_order 3 already used", err.Error())
}

func TestKindsAreDistinct(t *testing.T) {
	kinds := []error{ErrValidation, ErrPermissionDenied, ErrNotFound, ErrConfig}
	builders := []error{
		Validation("v"),
		PermissionDenied("p"),
		NotFound("n"),
		Config("c"),
	}
	for i, err := range builders {
		for j, kind := range kinds {
			assert.Equal(t, i == j, errors.Is(err, kind), "builder %d vs kind %d", i, j)
		}
	}
}

func TestWrappedKindSurvives(t *testing.T) {
	err := fmt.Errorf("transitioning item: %w", PermissionDenied("permission denied"))
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}
