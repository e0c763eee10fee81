package rgbcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVelocityPool_CyclesWithinHint(t *testing.T) {
	p := NewVelocityPool()
	p.Add(VelocityHintFast, 1)
	p.Add(VelocityHintFast, 2)

	first, ok := p.Next(VelocityHintFast)
	require.True(t, ok)
	require.Equal(t, uint32(1), first)

	second, ok := p.Next(VelocityHintFast)
	require.True(t, ok)
	require.Equal(t, uint32(2), second)

	third, ok := p.Next(VelocityHintFast)
	require.True(t, ok)
	require.Equal(t, uint32(1), third)
}

func TestVelocityPool_FallsBackToDefault(t *testing.T) {
	p := NewVelocityPool()
	p.Add(VelocityHintDefault, 99)

	vout, ok := p.Next(VelocityHintSlow)
	require.True(t, ok)
	require.Equal(t, uint32(99), vout)
}

func TestVelocityPool_EmptyReturnsFalse(t *testing.T) {
	p := NewVelocityPool()
	_, ok := p.Next(VelocityHintNormal)
	require.False(t, ok)
}
