package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_AllocateAndView(t *testing.T) {
	p := NewPool[int]()
	var ids []int
	for i := 0; i < poolPageSize*2+3; i++ {
		ptr, id := p.Allocate()
		*ptr = i
		ids = append(ids, id)
	}
	require.Equal(t, poolPageSize*2+3, p.Allocated())
	for i, id := range ids {
		require.Equal(t, i, *p.View(id))
	}
}

func TestPool_Reset(t *testing.T) {
	p := NewPool[int]()
	ptr, id := p.Allocate()
	*ptr = 42
	p.Reset()
	require.Equal(t, 0, p.Allocated())
	ptr2, id2 := p.Allocate()
	require.Equal(t, id, id2)
	require.Equal(t, 0, *ptr2, "reset must zero reused storage")
}

func TestSecondaryMap_DefaultAndSet(t *testing.T) {
	m := NewSecondaryMap[uint32, string]("default")
	require.Equal(t, "default", m.Get(7))
	require.False(t, m.IsSet(7))

	m.Set(7, "seven")
	require.Equal(t, "seven", m.Get(7))
	require.True(t, m.IsSet(7))
	require.Equal(t, "default", m.Get(3))

	m.Reset()
	require.Equal(t, "default", m.Get(7))
	require.False(t, m.IsSet(7))
}
