package tilespace

import (
	"errors"
	"fmt"
	"math"
)

// Orientation 行号起始方向，数值会持久化，不得修改
type Orientation int

const (
	StartUpperLeft Orientation = 0
	StartLowerLeft Orientation = 1
)

func (o Orientation) String() string {
	switch o {
	case StartUpperLeft:
		return "StartUpperLeft"
	case StartLowerLeft:
		return "StartLowerLeft"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// ProjectionType 投影类型标签
type ProjectionType int

const (
	FlatProjection ProjectionType = iota
	MercatorProjectionType
)

func (p ProjectionType) String() string {
	if p == MercatorProjectionType {
		return "mercator"
	}
	return "flat"
}

// ErrInvalidTilespace 构造参数非法
var ErrInvalidTilespace = errors.New("瓦片空间参数非法")

// Tilespace 瓦片寻址方案。构造后不可修改，按值传递。
// 与投影相关的计算按 Projection 标签分派。
type Tilespace struct {
	Name               string
	TileSize           uint32
	TileSizeLog2       uint32
	PixelsAtLevel0     uint32
	PixelsAtLevel0Log2 uint32
	Orientation        Orientation
	IsVector           bool
	Projection         ProjectionType

	// 仅在 Mercator 需要像素拉伸时非空
	mercator *MercatorProjection
}

// New 构造瓦片空间，stretch 仅对 Mercator 有效
func New(name string, tileSizeLog2, pixelsAtLevel0Log2 uint32, orientation Orientation,
	isVector bool, proj ProjectionType, stretch bool) (Tilespace, error) {
	if tileSizeLog2 < pixelsAtLevel0Log2 {
		return Tilespace{}, fmt.Errorf("%s: tileSizeLog2=%d < pixelsAtLevel0Log2=%d: %w",
			name, tileSizeLog2, pixelsAtLevel0Log2, ErrInvalidTilespace)
	}
	if tileSizeLog2 > 16 {
		return Tilespace{}, fmt.Errorf("%s: tileSizeLog2=%d 过大: %w", name, tileSizeLog2, ErrInvalidTilespace)
	}
	ts := Tilespace{
		Name:               name,
		TileSize:           1 << tileSizeLog2,
		TileSizeLog2:       tileSizeLog2,
		PixelsAtLevel0:     1 << pixelsAtLevel0Log2,
		PixelsAtLevel0Log2: pixelsAtLevel0Log2,
		Orientation:        orientation,
		IsVector:           isVector,
		Projection:         proj,
	}
	if stretch && proj == MercatorProjectionType {
		ts.mercator = NewMercatorProjection(ts.PixelsAtLevel0)
	}
	return ts, nil
}

func mustNew(name string, tileSizeLog2, pixelsAtLevel0Log2 uint32, orientation Orientation,
	isVector bool, proj ProjectionType, stretch bool) Tilespace {
	ts, err := New(name, tileSizeLog2, pixelsAtLevel0Log2, orientation, isVector, proj, stretch)
	if err != nil {
		panic(err)
	}
	return ts
}

// WithProjection 复制基础参数并换投影（对应同一基础空间的 Flat/Mercator 两种形式）
func (ts Tilespace) WithProjection(name string, proj ProjectionType, stretch bool) Tilespace {
	return mustNew(name, ts.TileSizeLog2, ts.PixelsAtLevel0Log2, ts.Orientation, ts.IsVector, proj, stretch)
}

func (ts Tilespace) IsMercator() bool { return ts.Projection == MercatorProjectionType }

// NeedStretchingForMercator 是否持有 Mercator 像素投影
func (ts Tilespace) NeedStretchingForMercator() bool { return ts.mercator != nil }

// MercatorProjection 返回像素投影，未启用拉伸时为 nil
func (ts Tilespace) MercatorProjection() *MercatorProjection { return ts.mercator }

// SingleTileLevel 单张瓦片覆盖全世界的最深层级
func (ts Tilespace) SingleTileLevel() uint32 {
	return ts.TileSizeLog2 - ts.PixelsAtLevel0Log2
}

func (ts Tilespace) MaxNumTiles(level uint32) uint32 {
	stl := ts.SingleTileLevel()
	if level <= stl {
		return 1
	}
	return 1 << (level - stl)
}

func (ts Tilespace) SinglePixelLevel() int {
	return -int(ts.PixelsAtLevel0Log2)
}

func (ts Tilespace) MaxNumPixels(level uint32) int64 {
	spl := ts.SinglePixelLevel()
	if int(level) <= spl {
		return 1
	}
	return int64(1) << (int(level) - spl)
}

func (ts Tilespace) NormPixelSize(level uint32) float64 {
	return 1.0 / float64(uint64(ts.PixelsAtLevel0)<<level)
}

func (ts Tilespace) NormTileSize(level uint32) float64 {
	if ts.PixelsAtLevel0 == ts.TileSize {
		return 1.0 / float64(uint64(1)<<level)
	}
	return ts.NormPixelSize(level) * float64(ts.TileSize)
}

// NumEmptyRows Flat 投影在层级 >= SingleTileLevel+2 时上下各保留的空行数
func (ts Tilespace) NumEmptyRows(level uint32) uint32 {
	switch ts.Projection {
	case FlatProjection:
		stl := ts.SingleTileLevel()
		if level < stl+2 {
			return 0
		}
		return 1 << (level - stl - 2)
	case MercatorProjectionType:
		return 0
	}
	return 0
}

// WorldExtents 该层级有效的行列范围
func (ts Tilespace) WorldExtents(level uint32) Extents[uint32] {
	end := ts.MaxNumTiles(level)
	empty := ts.NumEmptyRows(level)
	return RowCol(empty, end-empty, 0, end)
}

func (ts Tilespace) NumEmptyPixels(level uint32) int64 {
	if ts.Projection == MercatorProjectionType {
		return 0
	}
	spl := ts.SinglePixelLevel()
	if int(level) < spl+2 {
		return 0
	}
	return int64(1) << (int(level) - spl - 2)
}

// WorldPixelExtents 该层级有效的像素范围，Mercator 为整幅正方形
func (ts Tilespace) WorldPixelExtents(level uint32) Extents[int64] {
	end := ts.MaxNumPixels(level)
	empty := ts.NumEmptyPixels(level)
	return RowCol(empty, end-empty, 0, end)
}

// DegPixelSize 每像素的经度跨度
func (ts Tilespace) DegPixelSize(level uint32) float64 {
	return 360.0 / float64(uint64(ts.PixelsAtLevel0)<<level)
}

// LevelFromDegPixelSize 返回像素尺寸不大于给定值的最浅层级（只向精细方向取整），上限 MaxFusionLevel
func (ts Tilespace) LevelFromDegPixelSize(degPixelSize float64) uint32 {
	level := uint32(0)
	for ; level < MaxFusionLevel; level++ {
		if degPixelSize >= ts.DegPixelSize(level) {
			break
		}
	}
	return level
}

func (ts Tilespace) AveragePixelSizeInMercatorMeters(level uint32) float64 {
	return MercatorEarthCircumference / float64(uint64(ts.PixelsAtLevel0)<<level)
}

// LevelFromPixelSizeInMeters 同 LevelFromDegPixelSize，单位为 Mercator 米
func (ts Tilespace) LevelFromPixelSizeInMeters(meters float64) uint32 {
	level := uint32(0)
	for ; level < MaxFusionLevel; level++ {
		if meters >= ts.AveragePixelSizeInMercatorMeters(level) {
			break
		}
	}
	return level
}

// FromNormExtents 输入为度（Flat）或 Mercator 米
func (ts Tilespace) FromNormExtents(extents Extents[float64], fullresLevel, targetLevel uint32) LevelCoverage {
	return FromNormExtents(ts, ts.ToNormExtents(extents), fullresLevel, targetLevel)
}

func (ts Tilespace) FromNormExtentsWithOversizeFactor(extents Extents[float64], fullresLevel, targetLevel uint32,
	oversizeFactor float64) LevelCoverage {
	return FromNormExtentsWithOversizeFactor(ts, ts.ToNormExtents(extents), fullresLevel, targetLevel, oversizeFactor)
}

// ToNormExtents 按投影把度或米范围转为归一化范围
func (ts Tilespace) ToNormExtents(extents Extents[float64]) Extents[float64] {
	if ts.IsMercator() {
		return MeterToNormExtents(extents)
	}
	return DegToNormExtents(extents)
}

func (ts Tilespace) String() string {
	return fmt.Sprintf("%s(tile=%d, level0=%d, %s, vector=%v, %s)",
		ts.Name, ts.TileSize, ts.PixelsAtLevel0, ts.Orientation, ts.IsVector, ts.Projection)
}

// Normalize 经纬度（度）转归一化 [0,1]
func Normalize(deg float64) float64 { return (deg + 180.0) / 360.0 }

func Denormalize(norm float64) float64 { return norm*360.0 - 180.0 }

// NormalizeMeter Mercator 米转归一化
func NormalizeMeter(m float64) float64 { return m/MercatorEarthCircumference + 0.5 }

func DeNormalizeMeter(norm float64) float64 { return (norm - 0.5) * MercatorEarthCircumference }

func mapExtents(e Extents[float64], f func(float64) float64) Extents[float64] {
	return NSEW(f(e.North()), f(e.South()), f(e.East()), f(e.West()))
}

func DegToNormExtents(deg Extents[float64]) Extents[float64]    { return mapExtents(deg, Normalize) }
func MeterToNormExtents(m Extents[float64]) Extents[float64]    { return mapExtents(m, NormalizeMeter) }
func NormToDegExtents(norm Extents[float64]) Extents[float64]   { return mapExtents(norm, Denormalize) }
func NormToMeterExtents(norm Extents[float64]) Extents[float64] { return mapExtents(norm, DeNormalizeMeter) }

// IsExtentsWithinWorldBoundary Flat 为 ±180/±90 度，Mercator 为 ±半周长米
func IsExtentsWithinWorldBoundary(extents Extents[float64], proj ProjectionType) bool {
	xMax := 180.0
	yMax := 90.0
	if proj == MercatorProjectionType {
		xMax = MercatorEarthCircumference / 2.0
		yMax = xMax
	}
	return extents.North() <= yMax && extents.South() >= -yMax &&
		extents.East() <= xMax && extents.West() >= -xMax
}

// TranslateTileLevel 仅做层级换算，不检查结果是否合法
func TranslateTileLevel(from Tilespace, level uint32, to Tilespace) uint32 {
	return uint32(int(level) + int(from.PixelsAtLevel0Log2) - int(to.PixelsAtLevel0Log2))
}

// ErrNegativeLevel 层级换算结果为负
var ErrNegativeLevel = errors.New("层级换算结果为负")

// TranslateTileLevelChecked 与 TranslateTileLevel 相同，但结果越界时返回错误
func TranslateTileLevelChecked(from Tilespace, level uint32, to Tilespace) (uint32, error) {
	l := int(level) + int(from.PixelsAtLevel0Log2) - int(to.PixelsAtLevel0Log2)
	if l < 0 {
		return 0, fmt.Errorf("%s 层级 %d -> %s: %w", from.Name, level, to.Name, ErrNegativeLevel)
	}
	if l > MaxFusionLevel {
		return 0, fmt.Errorf("%s 层级 %d -> %s 得到 %d，超过 %d", from.Name, level, to.Name, l, MaxFusionLevel)
	}
	return uint32(l), nil
}

// EfficientLOD 要素直径（归一化）在 diameterAtLOD 像素下可见的最浅层级
func EfficientLOD(featureDiameter float64, ts Tilespace, diameterAtLOD float64) int {
	if featureDiameter == 0 {
		return 0
	}
	// 3/2 为整数除法，m 恒为 0
	m := math.Log(float64(3/2)) / math.Ln2
	lod := math.Log(diameterAtLOD/(featureDiameter*float64(ts.PixelsAtLevel0))) / math.Ln2
	if lod < 0 {
		return 0
	}
	return int(lod + (1.0 - m))
}
