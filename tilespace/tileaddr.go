package tilespace

import (
	"fmt"

	"maptile-platform/quadtree"
)

// TileAddr 瓦片地址，所属瓦片空间由调用方提供
type TileAddr struct {
	Level uint32
	Row   uint32
	Col   uint32
}

func NewTileAddr(level, row, col uint32) TileAddr {
	return TileAddr{Level: level, Row: row, Col: col}
}

// TileAddrFromHash 从压缩值解出地址，忽略 sub/src
func TileAddrFromHash(id uint64) TileAddr {
	return TileAddr{Level: LevelFromAddr(id), Row: RowFromAddr(id), Col: ColFromAddr(id)}
}

// TileAddrFromPath 四叉树路径转地址
func TileAddrFromPath(p quadtree.Path) TileAddr {
	level, row, col := p.LevelRowCol()
	return TileAddr{Level: level, Row: row, Col: col}
}

// Path 转为四叉树路径
func (a TileAddr) Path() quadtree.Path {
	return quadtree.New(a.Level, a.Row, a.Col)
}

// Id 压缩编码，可作为哈希键
func (a TileAddr) Id(sub, src uint32) uint64 {
	return PackTileAddr(a.Level, a.Row, a.Col, sub, src)
}

// UpperAddr 上方相邻瓦片，位于最后一行时回绕到第 0 行
func (a TileAddr) UpperAddr(ts Tilespace) TileAddr {
	return TileAddr{Level: a.Level, Row: a.wrapRow(ts), Col: a.Col}
}

// RightAddr 右侧相邻瓦片，位于最后一列时回绕到第 0 列
func (a TileAddr) RightAddr(ts Tilespace) TileAddr {
	return TileAddr{Level: a.Level, Row: a.Row, Col: a.wrapCol(ts)}
}

func (a TileAddr) UpperRightAddr(ts Tilespace) TileAddr {
	return TileAddr{Level: a.Level, Row: a.wrapRow(ts), Col: a.wrapCol(ts)}
}

func (a TileAddr) wrapRow(ts Tilespace) uint32 {
	if ts.WorldExtents(a.Level).EndRow()-1 > a.Row {
		return a.Row + 1
	}
	return 0
}

func (a TileAddr) wrapCol(ts Tilespace) uint32 {
	if ts.WorldExtents(a.Level).EndCol()-1 > a.Col {
		return a.Col + 1
	}
	return 0
}

func (a TileAddr) MinifiedBy(numLevels uint32) TileAddr {
	return TileAddr{Level: a.Level - numLevels, Row: a.Row >> numLevels, Col: a.Col >> numLevels}
}

// MinifiedToLevel targetLevel 必须不大于当前层级
func (a TileAddr) MinifiedToLevel(targetLevel uint32) TileAddr {
	return a.MinifiedBy(a.Level - targetLevel)
}

// MagnifiedBy 放大后覆盖的瓦片范围
func (a TileAddr) MagnifiedBy(numLevels uint32) LevelCoverage {
	return LevelCoverage{
		Level: a.Level + numLevels,
		Extents: RowCol(a.Row<<numLevels, (a.Row+1)<<numLevels,
			a.Col<<numLevels, (a.Col+1)<<numLevels),
	}
}

// MagnifiedToLevel targetLevel 必须不小于当前层级
func (a TileAddr) MagnifiedToLevel(targetLevel uint32) LevelCoverage {
	return a.MagnifiedBy(targetLevel - a.Level)
}

func (a TileAddr) NormExtents(ts Tilespace) Extents[float64] {
	nts := ts.NormTileSize(a.Level)
	return RowCol(float64(a.Row)*nts, float64(a.Row+1)*nts,
		float64(a.Col)*nts, float64(a.Col+1)*nts)
}

func (a TileAddr) DegExtents(ts Tilespace) Extents[float64] {
	return NormToDegExtents(a.NormExtents(ts))
}

func (a TileAddr) MeterExtents(ts Tilespace) Extents[float64] {
	return NormToMeterExtents(a.NormExtents(ts))
}

// QuadChild 子瓦片：0 左下、1 右下、2 左上、3 右上
func (a TileAddr) QuadChild(child uint32) TileAddr {
	row, col := quadtree.MagnifyQuadAddr(a.Row, a.Col, child)
	return TileAddr{Level: a.Level + 1, Row: row, Col: col}
}

func (a TileAddr) String() string {
	return fmt.Sprintf("(lrc %d,%d,%d)", a.Level, a.Row, a.Col)
}

// PixelExtentsToTileExtents 像素范围转为向外取整的瓦片范围
func PixelExtentsToTileExtents(pixels Extents[int64], tileResolution uint32) Extents[uint32] {
	r := int64(tileResolution)
	return RowCol(
		uint32(pixels.BeginRow()/r),
		uint32((pixels.EndRow()+r-1)/r),
		uint32(pixels.BeginCol()/r),
		uint32((pixels.EndCol()+r-1)/r))
}

func TileExtentsToPixelExtents(tiles Extents[uint32], tileResolution uint32) Extents[int64] {
	r := int64(tileResolution)
	return RowCol(
		int64(tiles.BeginRow())*r,
		int64(tiles.EndRow())*r,
		int64(tiles.BeginCol())*r,
		int64(tiles.EndCol())*r)
}

// Size 二维尺寸
type Size struct {
	Width, Height uint64
}

// DegExtentsToPixelLevelRasterSize 按栅格产品 Flat 空间在给定层级的像素尺寸四舍五入
func DegExtentsToPixelLevelRasterSize(deg Extents[float64], level uint32) Size {
	ps := RasterProductFlat.DegPixelSize(level)
	return Size{
		Width:  uint64(deg.Width()/ps + 0.5),
		Height: uint64(deg.Height()/ps + 0.5),
	}
}

func MeterExtentsToPixelLevelRasterSize(m Extents[float64], level uint32) Size {
	ps := RasterProductMercator.AveragePixelSizeInMercatorMeters(level)
	return Size{
		Width:  uint64(m.Width()/ps + 0.5),
		Height: uint64(m.Height()/ps + 0.5),
	}
}
