package tilespace

import (
	"fmt"
	"math"

	"maptile-platform/logger"
)

// LevelCoverage 某一层级上的矩形瓦片范围
type LevelCoverage struct {
	Level   uint32
	Extents Extents[uint32]
}

func NewLevelCoverage(level uint32, extents Extents[uint32]) LevelCoverage {
	return LevelCoverage{Level: level, Extents: extents}
}

// CoverageFromAddr 单个瓦片的覆盖范围
func CoverageFromAddr(a TileAddr) LevelCoverage {
	return LevelCoverage{Level: a.Level, Extents: RowCol(a.Row, a.Row+1, a.Col, a.Col+1)}
}

func (c LevelCoverage) Empty() bool { return c.Extents.Empty() }

func (c LevelCoverage) NumTiles() uint64 {
	return uint64(c.Extents.NumRows()) * uint64(c.Extents.NumCols())
}

// MinifyBy 缩小 numLevels 级，end 向上取整
func (c *LevelCoverage) MinifyBy(numLevels uint32) {
	*c = c.MinifiedBy(numLevels)
}

func (c LevelCoverage) MinifiedBy(numLevels uint32) LevelCoverage {
	pad := uint32(1)<<numLevels - 1
	e := c.Extents
	return LevelCoverage{
		Level: c.Level - numLevels,
		Extents: XY(e.BeginX()>>numLevels, (e.EndX()+pad)>>numLevels,
			e.BeginY()>>numLevels, (e.EndY()+pad)>>numLevels),
	}
}

// MinifiedToLevel targetLevel 必须不大于当前层级
func (c LevelCoverage) MinifiedToLevel(targetLevel uint32) LevelCoverage {
	return c.MinifiedBy(c.Level - targetLevel)
}

func (c *LevelCoverage) MagnifyBy(numLevels uint32) {
	*c = c.MagnifiedBy(numLevels)
}

func (c LevelCoverage) MagnifiedBy(numLevels uint32) LevelCoverage {
	e := c.Extents
	return LevelCoverage{
		Level: c.Level + numLevels,
		Extents: XY(e.BeginX()<<numLevels, e.EndX()<<numLevels,
			e.BeginY()<<numLevels, e.EndY()<<numLevels),
	}
}

// ScaleToLevel 放大或缩小到目标层级
func (c *LevelCoverage) ScaleToLevel(targetLevel uint32) {
	switch {
	case c.Level < targetLevel:
		c.MagnifyBy(targetLevel - c.Level)
	case c.Level > targetLevel:
		c.MinifyBy(c.Level - targetLevel)
	}
}

func (c *LevelCoverage) ExpandBy(num uint32) {
	c.Extents.ExpandBy(num)
}

func (c *LevelCoverage) CropTo(crop Extents[uint32]) {
	c.Extents = Intersection(c.Extents, crop)
}

func (c *LevelCoverage) CropToWorld(ts Tilespace) {
	c.CropTo(ts.WorldExtents(c.Level))
}

// Grow 合并同层级的覆盖范围
func (c *LevelCoverage) Grow(o LevelCoverage) {
	c.Extents.Grow(o.Extents)
}

func (c LevelCoverage) NormExtents(ts Tilespace) Extents[float64] {
	nts := ts.NormTileSize(c.Level)
	e := c.Extents
	return NSEW(float64(e.North())*nts, float64(e.South())*nts,
		float64(e.East())*nts, float64(e.West())*nts)
}

func (c LevelCoverage) DegExtents(ts Tilespace) Extents[float64] {
	return NormToDegExtents(c.NormExtents(ts))
}

func (c LevelCoverage) MeterExtents(ts Tilespace) Extents[float64] {
	return NormToMeterExtents(c.NormExtents(ts))
}

// GetSubset 按列把覆盖范围均分为 subsetTotal 份，返回第 subsetThis 份。
// 列数不足时后面的份为空；subsetThis 越界视为调用错误，记录警告并返回空。
func (c LevelCoverage) GetSubset(subsetThis, subsetTotal uint32) LevelCoverage {
	if subsetThis >= subsetTotal {
		logger.Warn("内部错误: 非法的子集划分 %d/%d", subsetThis, subsetTotal)
		return LevelCoverage{Level: c.Level}
	}
	if subsetTotal == 1 {
		return c
	}
	e := c.Extents
	colsPerSubset := (e.Width() + subsetTotal - 1) / subsetTotal
	begin := e.BeginCol() + subsetThis*colsPerSubset
	end := min(e.BeginCol()+(subsetThis+1)*colsPerSubset, e.EndCol())
	if begin >= end {
		return LevelCoverage{Level: c.Level}
	}
	return LevelCoverage{Level: c.Level, Extents: RowCol(e.BeginRow(), e.EndRow(), begin, end)}
}

// UpperCoverage 顶行之上（带回绕）的一行
func (c LevelCoverage) UpperCoverage(ts Tilespace) LevelCoverage {
	if c.Extents.Empty() {
		return c
	}
	e := c.Extents
	upper := TileAddr{Level: c.Level, Row: e.EndRow() - 1, Col: e.BeginCol()}.UpperAddr(ts)
	return LevelCoverage{Level: c.Level, Extents: RowCol(upper.Row, upper.Row+1, e.BeginCol(), e.EndCol())}
}

// RightCoverage 最右列之右（带回绕）的一列
func (c LevelCoverage) RightCoverage(ts Tilespace) LevelCoverage {
	if c.Extents.Empty() {
		return c
	}
	e := c.Extents
	right := TileAddr{Level: c.Level, Row: e.BeginRow(), Col: e.EndCol() - 1}.RightAddr(ts)
	return LevelCoverage{Level: c.Level, Extents: RowCol(e.BeginRow(), e.EndRow(), right.Col, right.Col+1)}
}

func (c LevelCoverage) UpperRightCoverage(ts Tilespace) LevelCoverage {
	if c.Extents.Empty() {
		return c
	}
	e := c.Extents
	ur := TileAddr{Level: c.Level, Row: e.EndRow() - 1, Col: e.EndCol() - 1}.UpperRightAddr(ts)
	return LevelCoverage{Level: c.Level, Extents: RowCol(ur.Row, ur.Row+1, ur.Col, ur.Col+1)}
}

func (c LevelCoverage) String() string {
	return fmt.Sprintf("level %d %s", c.Level, c.Extents)
}

// FromNormExtents 无扩展的归一化范围转换
func FromNormExtents(ts Tilespace, norm Extents[float64], fullresLevel, targetLevel uint32) LevelCoverage {
	return FromNormExtentsWithOversizeFactor(ts, norm, fullresLevel, targetLevel, 0)
}

// FromNormExtentsWithCrop 转换后裁剪到世界范围
func FromNormExtentsWithCrop(ts Tilespace, norm Extents[float64], fullresLevel, targetLevel uint32) LevelCoverage {
	cov := FromNormExtents(ts, norm, fullresLevel, targetLevel)
	cov.CropToWorld(ts)
	return cov
}

// FromNormExtentsWithOversizeFactor 归一化地理范围转为 fullresLevel 的瓦片范围，
// 再缩放到 targetLevel。
//
// 北/东向上取整、南/西截断；oversizeFactor 按南北、东西瓦片数各向外扩展一半；
// 矢量空间北/东多加一行一列，南/西恰好落在瓦片边界时再向外扩一格。
func FromNormExtentsWithOversizeFactor(ts Tilespace, norm Extents[float64], fullresLevel, targetLevel uint32,
	oversizeFactor float64) LevelCoverage {
	bounded := Intersection(norm, RowCol(0.0, 1.0, 0.0, 1.0))

	var north, south, east, west uint32
	numTiles := ts.MaxNumTiles(fullresLevel)
	if proj := ts.MercatorProjection(); proj != nil {
		ul := proj.FromNormLatLngToPixel(LatLng{Lat: bounded.North(), Lng: bounded.West()}, fullresLevel)
		lr := proj.FromNormLatLngToPixel(LatLng{Lat: bounded.South(), Lng: bounded.East()}, fullresLevel)
		pixels := AlignBy(XY(uint64(ul.X), uint64(lr.X), uint64(lr.Y), uint64(ul.Y)), uint64(ts.TileSize))
		tileSize := uint64(ts.TileSize)
		north = uint32(pixels.North() / tileSize)
		south = uint32(pixels.South() / tileSize)
		east = uint32(pixels.East() / tileSize)
		west = uint32(pixels.West() / tileSize)
	} else {
		n := float64(numTiles)
		north = uint32(math.Ceil(bounded.North() * n))
		south = uint32(bounded.South() * n)
		east = uint32(math.Ceil(bounded.East() * n))
		west = uint32(bounded.West() * n)
	}

	if oversizeFactor != 0 {
		moreEach := oversizeFactor / 2.0
		delta := north - south
		if delta == 0 {
			delta = 1
		}
		more := uint32(math.Ceil(moreEach * float64(delta)))
		north += more
		if south < more {
			south = 0
		} else {
			south -= more
		}
		delta = east - west
		if delta == 0 {
			delta = 1
		}
		more = uint32(math.Ceil(moreEach * float64(delta)))
		east += more
		if west < more {
			west = 0
		} else {
			west -= more
		}
	}

	if ts.IsVector {
		north++
		east++
		n := float64(numTiles)
		if south > 0 && bounded.South()*n-float64(south) == 0 {
			south--
		}
		if west > 0 && bounded.West()*n-float64(west) == 0 {
			west--
		}
	}

	cov := LevelCoverage{Level: fullresLevel, Extents: NSEW(north, south, east, west)}
	if targetLevel != fullresLevel {
		cov.ScaleToLevel(targetLevel)
	}
	return cov
}

// TranslateLevelCoverage 在不同瓦片尺寸的空间之间换算覆盖范围。
// 不检查结果层级是否合法，需要检查时使用 TranslateLevelCoverageChecked。
func TranslateLevelCoverage(from Tilespace, cov LevelCoverage, to Tilespace) LevelCoverage {
	diff := int(to.TileSizeLog2) - int(from.TileSizeLog2)
	tmp := cov
	switch {
	case diff > 0:
		tmp = tmp.MinifiedBy(uint32(diff))
	case diff < 0:
		tmp = tmp.MagnifiedBy(uint32(-diff))
	}
	return LevelCoverage{Level: TranslateTileLevel(from, cov.Level, to), Extents: tmp.Extents}
}

func TranslateLevelCoverageChecked(from Tilespace, cov LevelCoverage, to Tilespace) (LevelCoverage, error) {
	level, err := TranslateTileLevelChecked(from, cov.Level, to)
	if err != nil {
		return LevelCoverage{}, err
	}
	out := TranslateLevelCoverage(from, cov, to)
	out.Level = level
	return out, nil
}
