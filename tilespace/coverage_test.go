package tilespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentsConstructionOrders(t *testing.T) {
	a := NSEW[uint32](4, 1, 8, 2)
	assert.Equal(t, XY[uint32](2, 8, 1, 4), a)
	assert.Equal(t, RowCol[uint32](1, 4, 2, 8), a)
	assert.True(t, XY[uint32](5, 1, 0, 1).Empty(), "反向区间应为空")
	assert.True(t, XY[uint32](1, 1, 0, 3).Empty())
	assert.False(t, XY(1.0, 1.0, 0.0, 3.0).Empty(), "浮点退化范围不算空")
	assert.True(t, Extents[float64]{}.Empty())
}

func TestExtentsIntersection(t *testing.T) {
	a := XY[uint32](0, 4, 0, 4)
	b := XY[uint32](4, 8, 0, 4)
	assert.True(t, a.Connects(b))
	assert.False(t, a.Intersects(b), "整数范围相接不算相交")
	assert.True(t, Intersection(a, b).Empty())
	assert.Equal(t, XY[uint32](2, 4, 1, 4), Intersection(a, XY[uint32](2, 9, 1, 9)))

	fa := XY(0.0, 1.0, 0.0, 1.0)
	fb := XY(1.0, 2.0, 0.0, 1.0)
	assert.True(t, fa.Intersects(fb), "浮点范围相接算相交")
	assert.Equal(t, XY(1.0, 1.0, 0.0, 1.0), Intersection(fa, fb))
	assert.True(t, Intersection(fa, XY(2.0, 3.0, 0.0, 1.0)).Empty())

	assert.True(t, a.ContainsRow(3))
	assert.False(t, a.ContainsRow(4))
	assert.True(t, fa.ContainsRow(1.0))
}

func TestExtentsGrowExpandNarrowAlign(t *testing.T) {
	e := XY[uint32](2, 4, 2, 4)
	e.Grow(XY[uint32](6, 8, 0, 1))
	assert.Equal(t, XY[uint32](2, 8, 0, 4), e)
	e.Grow(Extents[uint32]{})
	assert.Equal(t, XY[uint32](2, 8, 0, 4), e)

	e.ExpandBy(1)
	assert.Equal(t, XY[uint32](1, 9, 0, 5), e, "下限应饱和在 0")

	n := XY[uint32](0, 4, 0, 4)
	n.NarrowBy(1)
	assert.Equal(t, XY[uint32](1, 3, 1, 3), n)
	n.NarrowBy(2)
	assert.True(t, n.Empty())

	s := XY[int64](-5, 5, 3, 7)
	s.ExpandBy(2)
	assert.Equal(t, XY[int64](-7, 7, 1, 9), s)

	assert.Equal(t, XY[uint64](0, 2048, 2048, 6144), AlignBy(XY[uint64](100, 2000, 3000, 4097), 2048))

	r := XY[uint32](10, 20, 10, 20)
	r.MakeRelativeTo(10, 5)
	assert.Equal(t, XY[uint32](0, 10, 5, 15), r)
}

func TestExtentsSubtract(t *testing.T) {
	a := XY[uint32](0, 10, 0, 10)
	rem, ok := Subtract(a, XY[uint32](3, 6, 3, 6))
	require.True(t, ok)
	require.Len(t, rem, 4)
	var area uint32
	for _, r := range rem {
		area += r.Width() * r.Height()
	}
	assert.Equal(t, uint32(100-9), area)

	_, ok = Subtract(a, XY[uint32](20, 30, 20, 30))
	assert.False(t, ok)

	rem, ok = Subtract(a, a)
	assert.True(t, ok)
	assert.Empty(t, rem)
}

func TestMinifyMagnify(t *testing.T) {
	c := NewLevelCoverage(5, RowCol[uint32](3, 9, 1, 2))
	m := c.MinifiedBy(2)
	assert.Equal(t, uint32(3), m.Level)
	assert.Equal(t, RowCol[uint32](0, 3, 0, 1), m.Extents)
	assert.Equal(t, m, c.MinifiedToLevel(3))

	g := m.MagnifiedBy(2)
	assert.Equal(t, RowCol[uint32](0, 12, 0, 4), g.Extents)
	assert.True(t, g.Extents.Contains(c.Extents))

	s := c
	s.ScaleToLevel(7)
	assert.Equal(t, c.MagnifiedBy(2), s)
	s.ScaleToLevel(5)
	assert.Equal(t, c, s)
	assert.Equal(t, uint64(6), c.NumTiles())
}

func TestUpperAddrWrapsOnlyAtBoundary(t *testing.T) {
	for _, ts := range []Tilespace{ClientMapFlat, ClientMapMercator, FusionMap} {
		for level := uint32(0); level < 8; level++ {
			we := ts.WorldExtents(level)
			for row := we.BeginRow(); row < we.EndRow(); row++ {
				up := NewTileAddr(level, row, 0).UpperAddr(ts)
				assert.Equal(t, row == we.EndRow()-1, up.Row == 0,
					"%s level %d row %d -> %d", ts.Name, level, row, up.Row)
			}
			right := NewTileAddr(level, we.BeginRow(), we.EndCol()-1).RightAddr(ts)
			assert.Equal(t, uint32(0), right.Col)
		}
	}
	ur := NewTileAddr(3, 6, 7).UpperRightAddr(ClientMapFlat)
	assert.Equal(t, NewTileAddr(3, 0, 0), ur)
}

func TestNeighborCoverages(t *testing.T) {
	ts := ClientMapMercator
	c := NewLevelCoverage(3, RowCol[uint32](2, 8, 4, 6))
	assert.Equal(t, RowCol[uint32](0, 1, 4, 6), c.UpperCoverage(ts).Extents)
	assert.Equal(t, RowCol[uint32](2, 8, 6, 7), c.RightCoverage(ts).Extents)
	assert.Equal(t, RowCol[uint32](0, 1, 6, 7), c.UpperRightCoverage(ts).Extents)
	empty := NewLevelCoverage(3, Extents[uint32]{})
	assert.Equal(t, empty, empty.UpperCoverage(ts))
}

func TestGetSubsetPartitionsColumns(t *testing.T) {
	covs := []LevelCoverage{
		NewLevelCoverage(6, RowCol[uint32](0, 4, 0, 17)),
		NewLevelCoverage(6, RowCol[uint32](2, 5, 11, 14)),
		NewLevelCoverage(6, RowCol[uint32](2, 5, 30, 31)),
	}
	for _, c := range covs {
		for n := uint32(1); n <= 9; n++ {
			next := c.Extents.BeginCol()
			for i := uint32(0); i < n; i++ {
				sub := c.GetSubset(i, n)
				if sub.Empty() {
					continue
				}
				assert.Equal(t, c.Extents.BeginRow(), sub.Extents.BeginRow())
				assert.Equal(t, c.Extents.EndRow(), sub.Extents.EndRow())
				assert.Equal(t, next, sub.Extents.BeginCol(), "子集 %d/%d 不连续", i, n)
				next = sub.Extents.EndCol()
			}
			assert.Equal(t, c.Extents.EndCol(), next, "子集 %d 份未覆盖全部列", n)
		}
	}
	bad := covs[0].GetSubset(3, 3)
	assert.True(t, bad.Empty())
	assert.Equal(t, uint32(6), bad.Level)
}

func TestTranslateLevelCoverageInverse(t *testing.T) {
	c := NewLevelCoverage(5, RowCol[uint32](1, 3, 0, 2))
	client := TranslateLevelCoverage(FusionMap, c, ClientMapFlat)
	assert.Equal(t, uint32(5), client.Level)
	assert.Equal(t, RowCol[uint32](8, 24, 0, 16), client.Extents)
	assert.Equal(t, c, TranslateLevelCoverage(ClientMapFlat, client, FusionMap))

	prod := NewLevelCoverage(18, RowCol[uint32](5, 9, 5, 9))
	img := TranslateLevelCoverage(RasterProductFlat, prod, ClientImageryFlat)
	assert.Equal(t, uint32(10), img.Level)
	assert.Equal(t, RowCol[uint32](20, 36, 20, 36), img.Extents)
	back := TranslateLevelCoverage(ClientImageryFlat, img, RasterProductFlat)
	assert.Equal(t, prod, back)

	_, err := TranslateLevelCoverageChecked(RasterProductFlat, NewLevelCoverage(2, RowCol[uint32](0, 1, 0, 1)), ClientImageryFlat)
	assert.ErrorIs(t, err, ErrNegativeLevel)
}

func TestFromNormExtentsFlat(t *testing.T) {
	ts := mustNew("flat256", 8, 8, StartUpperLeft, false, FlatProjection, false)
	cov := ts.FromNormExtentsWithOversizeFactor(NSEW(10.0, -10.0, 10.0, -10.0), 5, 5, 0)
	assert.Equal(t, uint32(5), cov.Level)
	// Normalize -> *32 -> 北/东 ceil(16.89)=17，南/西 trunc(15.11)=15
	assert.Equal(t, NSEW[uint32](17, 15, 17, 15), cov.Extents)

	over := ts.FromNormExtentsWithOversizeFactor(NSEW(10.0, -10.0, 10.0, -10.0), 5, 5, 0.25)
	assert.Equal(t, NSEW[uint32](18, 14, 18, 14), over.Extents)

	point := ts.FromNormExtentsWithOversizeFactor(NSEW(0.0, 0.0, 0.0, 0.0), 5, 5, 0.25)
	assert.Equal(t, NSEW[uint32](17, 15, 17, 15), point.Extents, "零面积范围按 delta=1 扩展")

	minified := ts.FromNormExtents(NSEW(10.0, -10.0, 10.0, -10.0), 5, 3)
	assert.Equal(t, NewLevelCoverage(3, NSEW[uint32](5, 3, 5, 3)), minified)
}

func TestFromNormExtentsVectorBoundary(t *testing.T) {
	raster := ClientMapFlat
	vector := ClientVector
	exact := NSEW(11.25, 0.0, 11.25, 0.0)
	assert.Equal(t, NSEW[uint32](17, 16, 17, 16), raster.FromNormExtents(exact, 5, 5).Extents)
	assert.Equal(t, NSEW[uint32](18, 15, 18, 15), vector.FromNormExtents(exact, 5, 5).Extents,
		"南/西恰在边界时多扩一格")

	inexact := NSEW(10.0, -10.0, 10.0, -10.0)
	assert.Equal(t, NSEW[uint32](18, 15, 18, 15), vector.FromNormExtents(inexact, 5, 5).Extents)
}

func TestFromNormExtentsClampsToUnitSquare(t *testing.T) {
	cov := FromNormExtents(ClientMapFlat, NSEW(1.5, -0.5, 1.5, -0.5), 2, 2)
	assert.Equal(t, NSEW[uint32](4, 0, 4, 0), cov.Extents)

	cropped := FromNormExtentsWithCrop(ClientMapFlat, NSEW(1.0, 0.0, 1.0, 0.0), 2, 2)
	assert.Equal(t, ClientMapFlat.WorldExtents(2), cropped.Extents)
}

func TestFromNormExtentsMercatorStretching(t *testing.T) {
	ts := FusionMapMercator
	world := FromNormExtents(ts, NSEW(1.0, 0.0, 1.0, 0.0), 3, 3)
	assert.Equal(t, NSEW[uint32](1, 0, 1, 0), world.Extents)

	world5 := FromNormExtents(ts, NSEW(1.0, 0.0, 1.0, 0.0), 5, 5)
	assert.Equal(t, NSEW[uint32](4, 0, 4, 0), world5.Extents)

	east := FromNormExtents(ts, NSEW(Normalize(10), Normalize(1), Normalize(170), Normalize(100)), 5, 5)
	assert.Equal(t, uint32(2), east.Extents.BeginRow())
	assert.Equal(t, uint32(3), east.Extents.BeginCol())
	assert.Equal(t, uint32(4), east.Extents.EndCol())
}

func TestCoverageNormAndDegExtents(t *testing.T) {
	c := NewLevelCoverage(1, RowCol[uint32](0, 1, 1, 2))
	deg := c.DegExtents(ClientMapFlat)
	assert.InDelta(t, 0.0, deg.West(), 1e-12)
	assert.InDelta(t, 180.0, deg.East(), 1e-12)
	assert.InDelta(t, -180.0, deg.South(), 1e-12)
	assert.InDelta(t, 0.0, deg.North(), 1e-12)

	addr := NewTileAddr(1, 0, 1)
	assert.Equal(t, c, CoverageFromAddr(addr))
	assert.Equal(t, deg, addr.DegExtents(ClientMapFlat))
	assert.Equal(t, addr.Path(), TileAddrFromPath(addr.Path()).Path())
}

func TestTileAddrQuadChildAndMinify(t *testing.T) {
	a := NewTileAddr(3, 5, 6)
	children := []TileAddr{a.QuadChild(0), a.QuadChild(1), a.QuadChild(2), a.QuadChild(3)}
	assert.Equal(t, NewTileAddr(4, 10, 12), children[0])
	assert.Equal(t, NewTileAddr(4, 10, 13), children[1])
	assert.Equal(t, NewTileAddr(4, 11, 12), children[2])
	assert.Equal(t, NewTileAddr(4, 11, 13), children[3])
	for _, c := range children {
		assert.Equal(t, a, c.MinifiedToLevel(3))
	}
	assert.Equal(t, NewLevelCoverage(5, RowCol[uint32](20, 24, 24, 28)), a.MagnifiedToLevel(5))
}

func TestPixelTileExtents(t *testing.T) {
	tiles := PixelExtentsToTileExtents(RowCol[int64](100, 300, 0, 256), 256)
	assert.Equal(t, RowCol[uint32](0, 2, 0, 1), tiles)
	assert.Equal(t, RowCol[int64](0, 512, 0, 256), TileExtentsToPixelExtents(tiles, 256))

	size := DegExtentsToPixelLevelRasterSize(NSEW(45.0, 0.0, 90.0, 0.0), 10)
	assert.Equal(t, Size{Width: 256, Height: 128}, size)
	msize := MeterExtentsToPixelLevelRasterSize(NSEW(MercatorEarthCircumference/4, 0, MercatorEarthCircumference/2, 0), 2)
	assert.Equal(t, Size{Width: 2, Height: 1}, msize)
}
