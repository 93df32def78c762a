package diag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/envstream/internal/model"
)

func entry(i int) model.DiagnosticEntry {
	return model.DiagnosticEntry{Level: "INFO", Source: "test", Message: fmt.Sprintf("m%d", i), Timestamp: uint64(i)}
}

func TestRingRejectsWhenFull(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Push(entry(i)))
	}
	assert.ErrorIs(t, r.Push(entry(3)), ErrRingFull)
	assert.Equal(t, 3, r.Len())

	got := r.Drain()
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i), e.Message)
	}
}

func TestRingDrainTwice(t *testing.T) {
	r := NewRing(2)
	require.NoError(t, r.Push(entry(0)))

	assert.Len(t, r.Drain(), 1)
	second := r.Drain()
	require.NotNil(t, second)
	assert.Empty(t, second)
}

func TestRingDrainDoesNotAlias(t *testing.T) {
	r := NewRing(2)
	require.NoError(t, r.Push(entry(0)))
	got := r.Drain()

	require.NoError(t, r.Push(entry(1)))
	assert.Equal(t, "m0", got[0].Message)
}

func TestRingFlush(t *testing.T) {
	r := NewRing(4)
	require.NoError(t, r.Push(entry(0)))
	require.NoError(t, r.Push(entry(1)))

	assert.Equal(t, 2, r.Flush())
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Drain())
}

func TestNewRingPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewRing(0) })
}

func TestRingInactiveRejectsAndFlushes(t *testing.T) {
	r := NewRing(4)
	require.NoError(t, r.Push(entry(0)))
	require.NoError(t, r.Push(entry(1)))

	assert.Equal(t, 2, r.SetActive(false))
	assert.ErrorIs(t, r.Push(entry(2)), ErrRingInactive)
	assert.Equal(t, 0, r.Len())

	assert.Equal(t, 0, r.SetActive(true))
	require.NoError(t, r.Push(entry(3)))
	got := r.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, entry(3), got[0])
}
