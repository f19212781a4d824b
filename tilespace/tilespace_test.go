package tilespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metersToDeg(m float64) float64 { return m * 360.0 / FlatEarthCircumference }

func TestMercatorLatitudeRoundTripAndOdd(t *testing.T) {
	for d := -90.0; d <= 90.0; d += 0.5 {
		m := FromFlatDegLatitudeToMercatorMeterLatitude(d)
		assert.InDelta(t, d, FromMercatorMeterLatitudeToFlatDegLatitude(m), 1e-6, "往返 %v", d)
		assert.Equal(t, -m, FromFlatDegLatitudeToMercatorMeterLatitude(-d), "奇函数 %v", d)
		assert.Equal(t, -FromMercatorMeterLatitudeToFlatDegLatitude(m),
			FromMercatorMeterLatitudeToFlatDegLatitude(-m))
	}
}

func TestLevelFromDegPixelSize(t *testing.T) {
	ts := RasterProductFlat
	assert.Equal(t, uint32(14), ts.LevelFromDegPixelSize(metersToDeg(4000)))
	assert.Equal(t, uint32(31), ts.LevelFromDegPixelSize(metersToDeg(0.0187)))
	assert.Equal(t, uint32(MaxFusionLevel), ts.LevelFromDegPixelSize(1e-300))
	assert.Equal(t, uint32(0), ts.LevelFromDegPixelSize(1e6))

	prev := ts.LevelFromDegPixelSize(1e-12)
	for x := 1e-12; x < 1e4; x *= 1.7 {
		l := ts.LevelFromDegPixelSize(x)
		require.LessOrEqual(t, l, prev, "像素尺寸 %g 的层级应单调不增", x)
		prev = l
	}
}

func TestLevelFromPixelSizeInMeters(t *testing.T) {
	ts := RasterProductMercator
	for level := uint32(0); level < MaxFusionLevel; level++ {
		assert.Equal(t, level, ts.LevelFromPixelSizeInMeters(ts.AveragePixelSizeInMercatorMeters(level)))
	}
	assert.Equal(t, uint32(MaxFusionLevel), ts.LevelFromPixelSizeInMeters(1e-12))
}

func TestLevelArithmetic(t *testing.T) {
	assert.Equal(t, uint32(3), FusionMap.SingleTileLevel())
	assert.Equal(t, uint32(1), FusionMap.MaxNumTiles(3))
	assert.Equal(t, uint32(4), FusionMap.MaxNumTiles(5))
	assert.Equal(t, int64(256<<5), FusionMap.MaxNumPixels(5))
	assert.Equal(t, int64(1), RasterProductFlat.MaxNumPixels(0))
	assert.InDelta(t, 1.0/32, ClientMapFlat.NormTileSize(5), 1e-15)
	assert.InDelta(t, 2048.0/(256<<5), FusionMap.NormTileSize(5), 1e-15)
	assert.InDelta(t, 360.0/1024, RasterProductFlat.DegPixelSize(10), 1e-15)
}

func TestWorldExtentsEmptyRows(t *testing.T) {
	assert.Equal(t, uint32(0), ClientMapFlat.NumEmptyRows(1))
	assert.Equal(t, uint32(1), ClientMapFlat.NumEmptyRows(2))
	assert.Equal(t, uint32(4), ClientMapFlat.NumEmptyRows(4))
	assert.Equal(t, RowCol[uint32](1, 3, 0, 4), ClientMapFlat.WorldExtents(2))
	assert.Equal(t, uint32(0), ClientMapMercator.NumEmptyRows(10))
	assert.Equal(t, RowCol[uint32](0, 1024, 0, 1024), ClientMapMercator.WorldExtents(10))
	assert.Equal(t, RowCol[int64](256, 768, 0, 1024), RasterProductFlat.WorldPixelExtents(10))
	assert.Equal(t, RowCol[int64](0, 1024, 0, 1024), RasterProductMercator.WorldPixelExtents(10))
}

func TestNormalizeConversions(t *testing.T) {
	assert.Equal(t, 0.5, Normalize(0))
	assert.Equal(t, 0.0, Normalize(-180))
	assert.Equal(t, 45.0, Denormalize(Normalize(45)))
	assert.InDelta(t, 1234.5, DeNormalizeMeter(NormalizeMeter(1234.5)), 1e-6)

	deg := NSEW(10.0, -10.0, 20.0, -20.0)
	back := NormToDegExtents(DegToNormExtents(deg))
	assert.InDelta(t, 10.0, back.North(), 1e-12)
	assert.InDelta(t, -20.0, back.West(), 1e-12)

	assert.True(t, IsExtentsWithinWorldBoundary(WorldExtent, FlatProjection))
	assert.False(t, IsExtentsWithinWorldBoundary(NSEW(91.0, 0, 10, 0), FlatProjection))
	assert.True(t, IsExtentsWithinWorldBoundary(NSEW(1e7, -1e7, 2e7, -2e7), MercatorProjectionType))
}

func TestMercatorProjection(t *testing.T) {
	p := NewMercatorProjection(256)
	assert.Equal(t, PixelPoint{X: 128, Y: 128}, p.FromLatLngToPixel(LatLng{}, 0))
	top := p.FromLatLngToPixel(LatLng{Lat: 89.9, Lng: -180}, 0)
	assert.Equal(t, PixelPoint{X: 0, Y: 256}, top, "纬度应截断到 MaxLatitude")

	ll := LatLng{Lat: 39.9, Lng: 116.4}
	px := p.FromLatLngToPixel(ll, 20)
	back := p.FromPixelToLatLng(px, 20)
	assert.InDelta(t, ll.Lat, back.Lat, 1e-4)
	assert.InDelta(t, ll.Lng, back.Lng, 1e-4)

	norm := p.FromNormLatLngToPixel(LatLng{Lat: Normalize(ll.Lat), Lng: Normalize(ll.Lng)}, 20)
	assert.Equal(t, px, norm)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	ts, err := r.Lookup("FusionMapMercator")
	require.NoError(t, err)
	assert.True(t, ts.NeedStretchingForMercator())
	assert.False(t, ClientMapMercator.NeedStretchingForMercator())
	_, err = r.Lookup("nope")
	assert.Error(t, err)
	assert.Error(t, r.Register(FusionMap))
	assert.Len(t, r.Names(), 11)

	fusion, client := r.MapSpaces(false)
	assert.Equal(t, "FusionMap", fusion.Name)
	assert.Equal(t, "ClientMapFlat", client.Name)

	assert.Equal(t, uint32(2048), FusionMap.TileSize)
	assert.Equal(t, StartLowerLeft, RasterProductFlat.Orientation)
	assert.Equal(t, StartUpperLeft, ClientImageryFlat.Orientation)
	assert.Equal(t, uint32(32), ClientTmeshFlat.TileSize)
	assert.True(t, ClientVector.IsVector)
}

func TestNewRejectsTileSmallerThanLevel0(t *testing.T) {
	_, err := New("bad", 4, 8, StartLowerLeft, false, FlatProjection, false)
	require.ErrorIs(t, err, ErrInvalidTilespace)
}

func TestWorldBoundary(t *testing.T) {
	wb := DefaultWorldBoundary()
	assert.Equal(t, WorldExtent, wb.Degrees())
	m := wb.Mercator()
	assert.InDelta(t, MercatorEarthCircumference/2, m.East(), 1e-6)
	assert.InDelta(t, -MercatorEarthCircumference/2, m.West(), 1e-6)
	assert.Equal(t, -m.North(), m.South())

	custom := NewWorldBoundary(NSEW(60.0, -60.0, 180.0, -180.0))
	assert.Equal(t, 60.0, custom.For(FusionMap).North())
	assert.Equal(t, WorldExtent, NewWorldBoundary(Extents[float64]{}).Degrees())
}

func TestLevelTranslationHelpers(t *testing.T) {
	assert.Equal(t, uint32(0), ProductToImageryLevel(8))
	assert.Equal(t, uint32(18), ImageryToProductLevel(10))
	assert.Equal(t, uint32(5), ProductToTmeshLevel(10))
	assert.Equal(t, uint32(10), TmeshToProductLevel(5))

	_, err := TranslateTileLevelChecked(RasterProductFlat, 3, ClientImageryFlat)
	assert.ErrorIs(t, err, ErrNegativeLevel)
	l, err := TranslateTileLevelChecked(ClientImageryFlat, 3, RasterProductFlat)
	require.NoError(t, err)
	assert.Equal(t, uint32(11), l)
}

func TestEfficientLOD(t *testing.T) {
	assert.Equal(t, 0, EfficientLOD(0, ClientMapFlat, 1))
	assert.Equal(t, 5, EfficientLOD(1.0/256/20, ClientMapFlat, 1))
	assert.Equal(t, 0, EfficientLOD(1, ClientMapFlat, 1))
}

func TestPackTileAddr(t *testing.T) {
	id := PackTileAddr(1, 2, 3, 1, 5)
	assert.Equal(t, uint64(3)<<40|uint64(2)<<16|uint64(1)<<11|uint64(1)<<10|5, id)
	assert.Equal(t, uint32(5), SrcFromAddr(id))
	assert.Equal(t, uint32(1), SubFromAddr(id))
	assert.Equal(t, uint32(1), LevelFromAddr(id))
	assert.Equal(t, uint32(2), RowFromAddr(id))
	assert.Equal(t, uint32(3), ColFromAddr(id))
	assert.Equal(t, uint64(1)<<10, InvalidTileAddrHash)

	a := NewTileAddr(21, 0xabcdef, 0x123456)
	assert.Equal(t, a, TileAddrFromHash(a.Id(0, 7)))
}
