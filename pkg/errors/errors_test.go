package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputShapeError_IsErrInputShape(t *testing.T) {
	shapeErr := &InputShapeError{}
	require.NoError(t, shapeErr.ToError())

	shapeErr.Add("N", "missing field", nil)
	shapeErr.Add("ph", "must be a number", "acid")

	err := Wrap(shapeErr.ToError(), "parse request")
	assert.True(t, Is(err, ErrInputShape))
	assert.Contains(t, err.Error(), "N: missing field")
	assert.Contains(t, err.Error(), "ph: must be a number")

	var target *InputShapeError
	require.True(t, As(err, &target))
	assert.Len(t, target.Problems, 2)
}

func TestNewArtifactMismatch(t *testing.T) {
	err := NewArtifactMismatch("scaler has %d features, centers have %d", 7, 6)

	assert.True(t, Is(err, ErrArtifactMismatch))
	assert.Equal(t, "artifact_mismatch", err.Code)
	assert.Contains(t, err.Error(), "scaler has 7 features, centers have 6")
}

func TestMultiError_UnwrapsAll(t *testing.T) {
	var multi MultiError
	assert.Nil(t, multi.ToError())

	multi.Add(nil)
	multi.Add(fmt.Errorf("k=9: %w", ErrInsufficientData))
	multi.Add(New("other"))

	err := multi.ToError()
	require.Error(t, err)
	assert.True(t, Is(err, ErrInsufficientData))
	assert.Contains(t, err.Error(), "multiple errors (2)")
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
}
