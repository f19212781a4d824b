package tilespace

// 层级与分辨率常量
const (
	NumFusionLevels  = 32
	MaxFusionLevel   = NumFusionLevels - 1
	MaxClientLevel   = 24
	Max2DClientLevel = MaxFusionLevel // 投影预计算表的最大层级

	ImageryQuadnodeResolution   = 256
	TmeshQuadnodeResolution     = 32
	HeightmapTileSize           = 1024
	RasterProductTileResolution = 1024

	WidthAtMaxResolution = 0.0186
)

// 地球参数
const (
	// MaxLatitude Mercator 世界图为正方形时的纬度上限
	MaxLatitude = 85.051128779806575

	// MercatorEarthCircumference Mercator 米坐标使用的赤道周长（与 GDAL 一致）
	MercatorEarthCircumference = 40075016.6855784

	// FlatEarthCircumference 平面投影度-米换算使用的大地周长
	FlatEarthCircumference = 40075160.00
)

// TileAddr 压缩编码：col:24 | row:24 | level:5 | sub:1 | src:10（高位到低位）
const (
	srcMask   = 0x0003ff
	subMask   = 0x000001
	levelMask = 0x00001f
	rcMask    = 0xffffff

	subShift   = 10
	levelShift = 11
	rowShift   = 16
	colShift   = 40
)

// PackTileAddr 按固定位布局打包瓦片地址
func PackTileAddr(level, row, col, sub, src uint32) uint64 {
	return (uint64(src) & srcMask) |
		((uint64(sub) & subMask) << subShift) |
		((uint64(level) & levelMask) << levelShift) |
		((uint64(row) & rcMask) << rowShift) |
		((uint64(col) & rcMask) << colShift)
}

// SrcFromAddr 等解包函数
func SrcFromAddr(addr uint64) uint32   { return uint32(addr & srcMask) }
func SubFromAddr(addr uint64) uint32   { return uint32((addr >> subShift) & subMask) }
func LevelFromAddr(addr uint64) uint32 { return uint32((addr >> levelShift) & levelMask) }
func RowFromAddr(addr uint64) uint32   { return uint32((addr >> rowShift) & rcMask) }
func ColFromAddr(addr uint64) uint32   { return uint32((addr >> colShift) & rcMask) }

// InvalidTileAddrHash 基础纹理不会带 alpha 标记，实际中不会出现
var InvalidTileAddrHash = PackTileAddr(0, 0, 0, 1, 0)
