package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(x, y float64) Vertex { return Vertex{X: x, Y: y} }

func TestDegreesMeters(t *testing.T) {
	assert.InDelta(t, 111319.888, DegreesToMeters(1), 1e-3)
	assert.InDelta(t, 1.0, MetersToDegrees(DegreesToMeters(1)), 1e-12)
}

func TestCollinear(t *testing.T) {
	assert.True(t, Collinear(v(0, 0), v(1, 1), v(2, 2), CollinearityEpsilon))
	assert.False(t, Collinear(v(0, 0), v(1, 1), v(2, 2.1), CollinearityEpsilon))
	assert.True(t, Collinear3D(Vertex{0, 0, 0}, Vertex{1, 1, 1}, Vertex{3, 3, 3}, CollinearityEpsilon))
	assert.False(t, Collinear3D(Vertex{0, 0, 0}, Vertex{1, 1, 1}, Vertex{3, 3, 2}, CollinearityEpsilon))
}

func TestPlaneEquation(t *testing.T) {
	n, d, ok := ComputePlaneEquation(Vertex{0, 0, 1}, Vertex{1, 0, 1}, Vertex{0, 1, 1})
	require.True(t, ok)
	assert.Equal(t, Vertex{0, 0, 1}, n)
	assert.Equal(t, 1.0, d)
	_, _, ok = ComputePlaneEquation(Vertex{}, Vertex{1, 1, 1}, Vertex{2, 2, 2})
	assert.False(t, ok)
}

func TestOrientationAndSegments(t *testing.T) {
	assert.Equal(t, 1, Orientation(v(0, 0), v(1, 0), v(0, 1)))
	assert.Equal(t, -1, Orientation(v(0, 0), v(1, 0), v(0, -1)))
	assert.Equal(t, 0, Orientation(v(0, 0), v(1, 0), v(2, 0)))

	assert.True(t, AreSegmentsIntersecting(v(0, 0), v(2, 2), v(0, 2), v(2, 0)))
	assert.False(t, AreSegmentsIntersecting(v(0, 0), v(1, 1), v(2, 0), v(3, 1)))
	assert.False(t, AreSegmentsIntersecting(v(0, 0), v(1, 0), v(0, 1), v(1, 1)))
}

func TestLinesIntersection2D(t *testing.T) {
	cases := []struct {
		a, b, c, d, want Vertex
	}{
		{v(.1, .1), v(.9, .1), v(.3, .05), v(.3, .3), v(.3, .1)},
		{v(.3, .05), v(.3, .3), v(.1, .1), v(.9, .1), v(.3, .1)},
		{Vertex{-.1, -.1, .5}, Vertex{.5, .5, .5}, Vertex{.2, 0, .5}, Vertex{-.2, .4, .5}, Vertex{.1, .1, .5}},
		{Vertex{-.1, -.1, .5}, Vertex{.5, .5, .5}, Vertex{.2, 0, .5}, Vertex{.2, .4, .5}, Vertex{.2, .2, .5}},
		{Vertex{-.1, -.1, .5}, Vertex{.5, .5, .5}, Vertex{.4, .3, .5}, Vertex{-.2, .3, .5}, Vertex{.3, .3, .5}},
		{v(-.2, 0), v(-.2, .4), v(.1, 0), v(-.4, .5), v(-.2, .3)},
	}
	for i, c := range cases {
		got, err := LinesIntersection2D(c.a, c.b, c.c, c.d)
		require.NoError(t, err, "case %d", i)
		assert.InDelta(t, c.want.X, got.X, 1e-12, "case %d", i)
		assert.InDelta(t, c.want.Y, got.Y, 1e-12, "case %d", i)
		assert.InDelta(t, c.want.Z, got.Z, 1e-12, "case %d", i)
	}
	_, err := LinesIntersection2D(v(0, 0), v(1, 1), v(0, 1), v(1, 2))
	assert.Error(t, err)
}

func TestSegmentClipper(t *testing.T) {
	c := NewSegmentClipper(20, 100, 20, 100)

	assert.Nil(t, c.Run(v(0, 10), v(18, 10)), "窗口外水平线段")
	assert.Nil(t, c.Run(v(0, 10), v(20, 10)))

	got := c.Run(v(0, 50), v(120, 50))
	require.Len(t, got, 2)
	assert.InDelta(t, 20, got[0].X, 1e-9)
	assert.InDelta(t, 100, got[1].X, 1e-9)
	assert.InDelta(t, 50, got[0].Y, 1e-9)

	inside := c.Run(v(30, 30), v(60, 70))
	require.Len(t, inside, 2)
	assert.Equal(t, v(30, 30), inside[0])
	assert.Equal(t, v(60, 70), inside[1])

	diag := c.Run(v(0, 0), v(120, 120))
	require.Len(t, diag, 2)
	assert.InDelta(t, 20, diag[0].X, 1e-9)
	assert.InDelta(t, 20, diag[0].Y, 1e-9)
	assert.InDelta(t, 100, diag[1].X, 1e-9)
	assert.InDelta(t, 100, diag[1].Y, 1e-9)

	vert := c.Run(v(50, 120), v(50, 0))
	require.Len(t, vert, 2)
	assert.InDelta(t, 100, vert[0].Y, 1e-9)
	assert.InDelta(t, 20, vert[1].Y, 1e-9)
}

func TestCropTile(t *testing.T) {
	// 4x4 单字节像素，值为 行*10+列
	src := make([]byte, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			src[r*4+c] = byte(r*10 + c)
		}
	}
	dst := make([]byte, 4)
	require.NoError(t, CropTile(src, 4, 4, dst, 2, 0, 2, 2, 1, false))
	assert.Equal(t, []byte{2, 3, 12, 13}, dst)

	require.NoError(t, CropTile(src, 4, 4, dst, 0, 0, 2, 2, 1, true))
	assert.Equal(t, []byte{20, 21, 30, 31}, dst, "左下原点 y=0 取底部两行")

	assert.Error(t, CropTile(src, 4, 4, dst, 3, 0, 2, 2, 1, false))
}
