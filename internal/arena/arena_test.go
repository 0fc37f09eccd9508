package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAndExhaustion(t *testing.T) {
	a, err := New[int](2)
	require.NoError(t, err)

	p1 := a.Allocate()
	require.NotNil(t, p1)
	p2 := a.Allocate()
	require.NotNil(t, p2)

	p3 := a.Allocate()
	require.Nil(t, p3, "arena should refuse allocations beyond capacity")
	require.EqualValues(t, 1, a.Overflow())
}

func TestResetReclaims(t *testing.T) {
	a, err := New[int](1)
	require.NoError(t, err)

	p := a.Allocate()
	require.NotNil(t, p)
	*p = 42

	a.Reset()
	require.Equal(t, 0, a.Len())

	p2 := a.Allocate()
	require.NotNil(t, p2)
	require.Equal(t, 0, *p2, "reclaimed slot must be zeroed")
}

func TestInvalidCapacity(t *testing.T) {
	_, err := New[int](0)
	require.Error(t, err)
}
