package maprender

import (
	"fmt"
	"image"

	"maptile-platform/geom"
	"maptile-platform/quadtree"
)

// Record 要素绑定的标注字段，nil 表示该要素不生成标注与盾标
type Record struct {
	Label        string
	Shield       string
	OutlineLabel string
}

// Geometry 归一化坐标下的一个几何体（x 为经度方向，y 为纬度方向），
// 多部件时每个部件为一条轮廓
type Geometry struct {
	Parts [][]geom.Vertex
	// Multi 多面几何，不支持渲染
	Multi bool
}

// InFeature 已查询、裁剪到瓦片范围的要素几何，Records 与 Geometries 一一对应
type InFeature struct {
	Geometries []Geometry
	Records    []*Record
}

// InSite 点位（点要素或面中心点）及其标注字段
type InSite struct {
	Points  []geom.Vertex
	Records []Record
}

type InDisplayRule struct {
	Config  *DisplayRuleConfig
	Feature InFeature
	Site    InSite
}

// InLayer 一个子图层在某个瓦片上的输入
type InLayer struct {
	DisplayRules []*InDisplayRule
}

// Reset 清空内容但保留已分配的切片
func (l *InLayer) Reset() {
	for _, d := range l.DisplayRules {
		d.Feature.Geometries = d.Feature.Geometries[:0]
		d.Feature.Records = d.Feature.Records[:0]
		d.Site.Points = d.Site.Points[:0]
		d.Site.Records = d.Site.Records[:0]
	}
}

// Empty 没有任何几何与点位
func (l *InLayer) Empty() bool {
	for _, d := range l.DisplayRules {
		if len(d.Feature.Geometries) > 0 || len(d.Site.Points) > 0 {
			return false
		}
	}
	return true
}

// FeatureLabel 沿路径放置的标注
type FeatureLabel struct {
	Text        string
	Path        *Path
	HorizOffset float64
	VertOffset  float64
}

// FeatureShield 一条路径上放置的全部盾标
type FeatureShield struct {
	Text       string
	Points     []Point
	Bounds     []Rect
	IconBounds []Rect
}

type Feature struct {
	Config  *FeatureConfig
	Paths   []*Path
	Labels  []FeatureLabel
	Shields []FeatureShield
}

// SiteLabel 点位标注，Visible 由 Combiner 的避让计算决定
type SiteLabel struct {
	Text        string
	OutlineText string
	Point       Point
	Visible     bool
}

type Site struct {
	Config *SiteConfig
	Labels []SiteLabel
}

type DisplayRule struct {
	Config  *DisplayRuleConfig
	Feature Feature
	Site    Site
}

type SubLayer struct {
	DisplayRules []*DisplayRule
}

// CombinedTile Combiner 的输出：像素坐标下的路径与已放置的标注
type CombinedTile struct {
	Path      quadtree.Path
	SubLayers []*SubLayer
}

// Reset 清空子图层，保留容量以便在瓦片之间复用
func (t *CombinedTile) Reset(path quadtree.Path) {
	t.Path = path
	for i := range t.SubLayers {
		t.SubLayers[i] = nil
	}
	t.SubLayers = t.SubLayers[:0]
}

// RasterTile Renderer 的输出：预乘 alpha 的 RGBA 像素缓冲区。
// 缓冲区可以自有，也可以借用外部内存池；借用时 Renderer 不负责清空。
type RasterTile struct {
	Path       quadtree.Path
	Image      *image.RGBA
	ownsBuffer bool
}

// NewRasterTile 分配 size×size 的缓冲区
func NewRasterTile(size int) *RasterTile {
	return &RasterTile{
		Image:      image.NewRGBA(image.Rect(0, 0, size, size)),
		ownsBuffer: true,
	}
}

// NewRasterTileWithBuffer 使用外部缓冲区，长度必须为 size*size*4
func NewRasterTileWithBuffer(size int, buf []byte) (*RasterTile, error) {
	if len(buf) != size*size*4 {
		return nil, fmt.Errorf("缓冲区长度 %d 与瓦片尺寸 %d 不符", len(buf), size)
	}
	return &RasterTile{
		Image: &image.RGBA{
			Pix:    buf,
			Stride: size * 4,
			Rect:   image.Rect(0, 0, size, size),
		},
	}, nil
}

// OwnsBuffer 缓冲区是否由瓦片自行分配
func (t *RasterTile) OwnsBuffer() bool { return t.ownsBuffer }

// Size 边长（像素）
func (t *RasterTile) Size() int { return t.Image.Rect.Dx() }
