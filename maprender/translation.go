package maprender

import (
	"maptile-platform/geom"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

// TranslationContext 把归一化坐标转换为某个瓦片内的像素坐标（左上角原点）
type TranslationContext struct {
	ts             tilespace.Tilespace
	proj           *tilespace.MercatorProjection
	level          uint32
	originX        float64
	originY        float64
	scaleX, scaleY float64
}

func NewTranslationContext(ts tilespace.Tilespace, path quadtree.Path) TranslationContext {
	level, row, col := path.LevelRowCol()
	t := TranslationContext{ts: ts, level: level}
	if ts.IsMercator() {
		t.proj = ts.MercatorProjection()
		if t.proj == nil {
			t.proj = tilespace.NewMercatorProjection(ts.PixelsAtLevel0)
		}
		t.originX = float64(col) * float64(ts.TileSize)
		t.originY = float64(row) * float64(ts.TileSize)
		return t
	}
	normTileSize := ts.NormTileSize(level)
	t.originX = float64(col) * normTileSize
	// +1：y 轴翻转，原点取瓦片上边
	t.originY = float64(row+1) * normTileSize
	t.scaleX = normTileSize / float64(ts.TileSize)
	t.scaleY = t.scaleX
	return t
}

// TranslatePoint v.X 为归一化经度，v.Y 为归一化纬度
func (t TranslationContext) TranslatePoint(v geom.Vertex) Point {
	if t.proj != nil {
		px := t.proj.FromNormLatLngToPixel(tilespace.LatLng{Lat: v.Y, Lng: v.X}, t.level)
		return Point{
			X: float64(px.X) - t.originX,
			Y: float64(t.ts.TileSize) - (float64(px.Y) - t.originY),
		}
	}
	return Point{
		X: (v.X - t.originX) / t.scaleX,
		Y: (t.originY - v.Y) / t.scaleY,
	}
}

// PathFromGeometry 每个部件生成一条轮廓；多面几何不支持，返回空路径
func (t TranslationContext) PathFromGeometry(g Geometry) *Path {
	p := &Path{Contours: make([][]Point, 0, len(g.Parts))}
	if g.Multi {
		return p
	}
	for _, part := range g.Parts {
		if len(part) == 0 {
			continue
		}
		contour := make([]Point, len(part))
		for i, v := range part {
			contour[i] = t.TranslatePoint(v)
		}
		p.Contours = append(p.Contours, contour)
	}
	return p
}

// GetTranslation 外围标注相对点符号中心的偏移。marker 为点符号相对中心的包围盒。
func GetTranslation(dir EightSides, text *TextRenderer, outlineText string, marker Rect) Point {
	length, above, below := text.MeasureText(outlineText)
	// 文字上下不对称
	heightAdjust := -(above + below) / 2
	// 字与框之间另留 2 像素
	halfLength := length/2 + 2
	leftMargin := -marker.Left + 1
	rightMargin := marker.Right + 1
	topMargin := -marker.Top + 1
	bottomMargin := marker.Bottom + 1
	switch dir {
	case SideTopRight:
		return Point{rightMargin + halfLength, -topMargin - below}
	case SideTop:
		return Point{marker.CenterX(), -topMargin - below}
	case SideTopLeft:
		return Point{-leftMargin - halfLength, -topMargin - below}
	case SideLeft:
		return Point{-leftMargin - halfLength, marker.CenterY() + heightAdjust}
	case SideBottomLeft:
		return Point{-leftMargin - halfLength, bottomMargin - above}
	case SideBottom:
		return Point{marker.CenterX(), bottomMargin - above}
	case SideBottomRight:
		return Point{rightMargin + halfLength, bottomMargin - above}
	case SideRight:
		return Point{rightMargin + halfLength, marker.CenterY() + heightAdjust}
	}
	return Point{}
}
