package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeParams(t *testing.T) {
	p, err := ComputeParams(800, 600, 1024)
	require.NoError(t, err)
	require.InDelta(t, 1.28, p.Scale, 1e-6)
	require.Equal(t, 1024, p.ScaledWidth)
	require.Equal(t, 768, p.ScaledHeight)
	require.Equal(t, 0, p.PadLeft)
	require.Equal(t, 128, p.PadTop)
	require.Equal(t, 800, p.OriginalWidth)
	require.Equal(t, 600, p.OriginalHeight)
	require.Equal(t, 1024, p.TargetSize)
}

func TestComputeParamsInvalid(t *testing.T) {
	_, err := ComputeParams(0, 600, 1024)
	require.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = ComputeParams(800, -1, 1024)
	require.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = ComputeParams(800, 600, 0)
	require.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestComputeParamsAspectFit(t *testing.T) {
	dims := [][2]int{
		{800, 600},
		{600, 800},
		{1, 1},
		{1023, 1},
		{2000, 3000},
		{1024, 1024},
	}
	for _, d := range dims {
		p, err := ComputeParams(d[0], d[1], 1024)
		require.NoError(t, err)
		require.LessOrEqual(t, p.PadLeft+p.ScaledWidth, 1024)
		require.LessOrEqual(t, p.PadTop+p.ScaledHeight, 1024)
		// 长边总是贴满模型空间
		require.True(t, p.ScaledWidth == 1024 || p.ScaledHeight == 1024)
	}
}

func TestToModelSpaceRoundTrip(t *testing.T) {
	p, err := ComputeParams(640, 480, 1024)
	require.NoError(t, err)

	points := [][2]float32{
		{0, 0},
		{123.4, 56.7},
		{639, 479},
		{320.5, 240.25},
	}
	for _, pt := range points {
		mx, my := p.ToModelSpace(pt[0], pt[1])
		x, y := p.ToOriginalSpace(mx, my)
		require.InDelta(t, pt[0], x, 1e-3)
		require.InDelta(t, pt[1], y, 1e-3)
	}
}

func TestToModelSpace(t *testing.T) {
	p, err := ComputeParams(800, 600, 1024)
	require.NoError(t, err)

	// 左上角落在黑边之后
	mx, my := p.ToModelSpace(0, 0)
	require.InDelta(t, 0, mx, 1e-6)
	require.InDelta(t, 128, my, 1e-6)

	mx, my = p.ToModelSpace(400, 300)
	require.InDelta(t, 512, mx, 1e-3)
	require.InDelta(t, 512, my, 1e-3)
}

func TestViewToOriginal(t *testing.T) {
	x, y, err := viewToOriginal(50, 25, 100, 50, 800, 600)
	require.NoError(t, err)
	require.InDelta(t, 400, x, 1e-3)
	require.InDelta(t, 300, y, 1e-3)

	_, _, err = viewToOriginal(1, 1, 0, 50, 800, 600)
	require.ErrorIs(t, err, ErrInvalidDimensions)

	_, _, err = viewToOriginal(1, 1, 100, -2, 800, 600)
	require.ErrorIs(t, err, ErrInvalidDimensions)
}
