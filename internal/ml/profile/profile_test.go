package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBuild(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		10, 100,
		20, 200,
		90, 5,
		110, 15,
	})

	set, err := Build(X, []int{0, 0, 1, 1}, 2, []string{"N", "rainfall"})
	require.NoError(t, err)
	require.Len(t, set.Profiles, 2)

	p0, ok := set.Get(0)
	require.True(t, ok)
	assert.Equal(t, 2, p0.Size)
	assert.Equal(t, 15.0, p0.Characteristics["N"])
	assert.Equal(t, 150.0, p0.Characteristics["rainfall"])

	p1, _ := set.Get(1)
	assert.Equal(t, 1, p1.ClusterID)
	assert.Equal(t, 100.0, p1.Characteristics["N"])
	assert.Equal(t, 10.0, p1.Characteristics["rainfall"])

	_, ok = set.Get(2)
	assert.False(t, ok)
}

func TestBuild_Errors(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, 2})

	_, err := Build(X, []int{0}, 2, []string{"N"})
	assert.Error(t, err)

	_, err = Build(X, []int{0, 5}, 2, []string{"N"})
	assert.Error(t, err)

	_, err = Build(X, []int{0, 1}, 2, []string{"N", "P"})
	assert.Error(t, err)
}
