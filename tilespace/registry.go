package tilespace

import (
	"fmt"
	"sort"
)

// 标准瓦片空间，进程启动时构造，之后只读
var (
	// 栅格产品：1024 像素瓦片，第 0 层为覆盖全球的 1 个像素
	RasterProductFlat     = mustNew("RasterProductFlat", 10, 0, StartLowerLeft, false, FlatProjection, false)
	RasterProductMercator = RasterProductFlat.WithProjection("RasterProductMercator", MercatorProjectionType, false)

	// 客户端影像包：256 像素，第 0 层为一张瓦片
	ClientImageryFlat     = mustNew("ClientImageryFlat", 8, 8, StartUpperLeft, false, FlatProjection, false)
	ClientImageryMercator = ClientImageryFlat.WithProjection("ClientImageryMercator", MercatorProjectionType, false)

	// 客户端地形网格：32 像素，网格生成要求左下原点
	ClientTmeshFlat     = mustNew("ClientTmeshFlat", 5, 5, StartLowerLeft, false, FlatProjection, false)
	ClientTmeshMercator = ClientTmeshFlat.WithProjection("ClientTmeshMercator", MercatorProjectionType, false)

	ClientVector      = mustNew("ClientVector", 8, 8, StartUpperLeft, true, FlatProjection, false)
	ClientMapFlat     = mustNew("ClientMapFlat", 8, 8, StartUpperLeft, false, FlatProjection, false)
	ClientMapMercator = mustNew("ClientMapMercator", 8, 8, StartUpperLeft, false, MercatorProjectionType, false)

	// Fusion 地图超级瓦片：2048 像素，层级与客户端地图一致
	FusionMap         = mustNew("FusionMap", 11, ClientMapFlat.PixelsAtLevel0Log2, StartLowerLeft, false, FlatProjection, false)
	FusionMapMercator = mustNew("FusionMapMercator", FusionMap.TileSizeLog2, FusionMap.PixelsAtLevel0Log2,
		StartLowerLeft, false, MercatorProjectionType, true)
)

// RasterProduct 按投影选择栅格产品空间
func RasterProduct(mercator bool) Tilespace {
	if mercator {
		return RasterProductMercator
	}
	return RasterProductFlat
}

func ProductToImageryLevel(level uint32) uint32 {
	return TranslateTileLevel(RasterProductFlat, level, ClientImageryFlat)
}

func ImageryToProductLevel(level uint32) uint32 {
	return TranslateTileLevel(ClientImageryFlat, level, RasterProductFlat)
}

func ProductToTmeshLevel(level uint32) uint32 {
	return TranslateTileLevel(RasterProductFlat, level, ClientTmeshFlat)
}

func TmeshToProductLevel(level uint32) uint32 {
	return TranslateTileLevel(ClientTmeshFlat, level, RasterProductFlat)
}

// Registry 按名称查找的瓦片空间集合
type Registry struct {
	spaces map[string]Tilespace
}

// NewRegistry 包含全部标准瓦片空间
func NewRegistry() *Registry {
	r := &Registry{spaces: make(map[string]Tilespace)}
	for _, ts := range []Tilespace{
		RasterProductFlat, RasterProductMercator,
		ClientImageryFlat, ClientImageryMercator,
		ClientTmeshFlat, ClientTmeshMercator,
		ClientVector, ClientMapFlat, ClientMapMercator,
		FusionMap, FusionMapMercator,
	} {
		r.spaces[ts.Name] = ts
	}
	return r
}

// Register 注册自定义瓦片空间，名称重复时返回错误
func (r *Registry) Register(ts Tilespace) error {
	if _, ok := r.spaces[ts.Name]; ok {
		return fmt.Errorf("瓦片空间 %s 已存在", ts.Name)
	}
	r.spaces[ts.Name] = ts
	return nil
}

func (r *Registry) Lookup(name string) (Tilespace, error) {
	ts, ok := r.spaces[name]
	if !ok {
		return Tilespace{}, fmt.Errorf("未知的瓦片空间: %s", name)
	}
	return ts, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.spaces))
	for n := range r.spaces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MapSpaces 地图渲染用的超级瓦片空间与客户端瓦片空间
func (r *Registry) MapSpaces(mercator bool) (fusion, client Tilespace) {
	if mercator {
		return r.spaces[FusionMapMercator.Name], r.spaces[ClientMapMercator.Name]
	}
	return r.spaces[FusionMap.Name], r.spaces[ClientMapFlat.Name]
}

// WorldBoundary 裁剪范围（度），运行期间只读
type WorldBoundary struct {
	cut Extents[float64]
}

// WorldExtent 全球范围
var WorldExtent = NSEW(90.0, -90.0, 180.0, -180.0)

// NewWorldBoundary 空范围视为全球
func NewWorldBoundary(cut Extents[float64]) WorldBoundary {
	if cut.Empty() {
		cut = WorldExtent
	}
	return WorldBoundary{cut: cut}
}

func DefaultWorldBoundary() WorldBoundary { return WorldBoundary{cut: WorldExtent} }

// Degrees 裁剪范围（度）
func (w WorldBoundary) Degrees() Extents[float64] { return w.cut }

// Mercator 裁剪范围（Mercator 米）
func (w WorldBoundary) Mercator() Extents[float64] { return ConvertFlatToMercator(w.cut) }

// For 按投影返回度或米范围
func (w WorldBoundary) For(ts Tilespace) Extents[float64] {
	if ts.IsMercator() {
		return w.Mercator()
	}
	return w.cut
}

// ConvertFlatToMercator 度范围转 Mercator 米范围
func ConvertFlatToMercator(deg Extents[float64]) Extents[float64] {
	return NSEW(
		FromFlatDegLatitudeToMercatorMeterLatitude(deg.North()),
		FromFlatDegLatitudeToMercatorMeterLatitude(deg.South()),
		deg.East()/360.0*MercatorEarthCircumference,
		deg.West()/360.0*MercatorEarthCircumference)
}
