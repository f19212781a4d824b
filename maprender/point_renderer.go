package maprender

import (
	"fmt"
	"image"
	"math"
)

var (
	sqrt3       = math.Sqrt(3)
	sqrt3Half   = sqrt3 / 2
	sqrt2m1Half = (math.Sqrt2 - 1) / 2
)

type shapeKind int

const (
	shapeTriangle shapeKind = iota
	shapeRectangle
	shapeOval
	shapeIcon
)

// markerText 点符号中心标注，使用盾标文字样式
type markerText struct {
	tr      *TextRenderer
	text    string
	box     Rect
	adjustY float64
	wrap    bool
}

func newMarkerText(cfg *ShieldConfig, text string, wrap bool) *markerText {
	m := &markerText{tr: NewTextRenderer(cfg.TextStyle, true), text: text, wrap: wrap}
	length, top, bottom := m.tr.MeasureText(text)
	length *= TextLengthSlack
	// 文字包围盒上下不对称，调整绘制基线
	m.adjustY = (-top - bottom) / 2
	m.box.Bottom = bottom + m.adjustY
	m.box.Right = length / 2
	m.box.Left = -m.box.Right
	m.box.Top = -m.box.Bottom

	m.box.Top -= cfg.TopMargin
	m.box.Left -= cfg.LeftMargin
	m.box.Bottom += cfg.BottomMargin
	m.box.Right += cfg.RightMargin
	return m
}

func (m *markerText) render(c *Canvas, p Point) {
	if m.wrap {
		m.tr.DrawText(c, m.text, p.X, p.Y+m.adjustY)
		return
	}
	// 边距全为 0 时盒子以原点为中心
	m.tr.DrawText(c, m.text, p.X-(m.box.Left+m.box.Right), p.Y+m.adjustY-(m.box.Bottom+m.box.Top))
}

// PointRenderer 绘制点符号（三角形、矩形、椭圆或图标）及可选的中心标注。
// 各形状的填充区与描边区相对点位计算，包围盒用于外围标注定位。
type PointRenderer struct {
	cfg  *FeatureConfig
	kind shapeKind

	halfWidth   float64
	height      float64
	fillMode    PolygonDrawMode
	halfOutline float64

	fillRect    Rect
	fillColor   Color
	outlineRect Rect
	outlineW    float64
	outlineCol  Color
	// outlineBounds 带描边时的外包围盒
	outlineBounds Rect

	icon         image.Image
	iconBox      Rect
	adjustedIcon Rect
	centerLabel  *markerText
}

// NewPointRenderer 图标符号从 cfg.Shield.Icon 读取，读取失败返回错误
func NewPointRenderer(cfg *FeatureConfig, icons *IconCache) (*PointRenderer, error) {
	p := &PointRenderer{cfg: cfg}
	switch cfg.PointMarker {
	case MarkerCircle, MarkerOval:
		p.kind = shapeOval
		p.initRectangle()
	case MarkerSquare, MarkerRectangle:
		p.kind = shapeRectangle
		p.initRectangle()
	case MarkerTriangle, MarkerEquilateralTriangle:
		p.kind = shapeTriangle
		p.initTriangle()
	case MarkerIcon:
		p.kind = shapeIcon
		if icons == nil {
			icons = NewIconCache()
		}
		img, err := icons.Load(cfg.Shield.Icon)
		if err != nil {
			return nil, err
		}
		p.icon = img
		b := img.Bounds()
		p.iconBox.Right = float64(b.Dx()) / 2
		// 图标按上下三段存放
		p.iconBox.Bottom = float64(b.Dy()) / 3 / 2
		p.iconBox.Left = -p.iconBox.Right
		p.iconBox.Top = -p.iconBox.Bottom
		if !cfg.CenterLabelDependentMarker() {
			p.adjustedIcon = p.iconBox
		}
	default:
		return nil, fmt.Errorf("不支持的点符号: %d", cfg.PointMarker)
	}
	return p, nil
}

func (p *PointRenderer) initPaints(width, height float64) {
	cfg := p.cfg
	p.halfWidth = width / 2
	p.height = height
	p.fillMode = cfg.PolygonDrawMode
	if p.fillMode != FillOnly {
		p.halfOutline = cfg.StrokeWidth / 2
		p.outlineW = cfg.StrokeWidth
		p.outlineCol = cfg.StrokeColor
	}
	if p.fillMode != OutlineOnly {
		p.fillColor = cfg.FillColor
	}
}

// degradeToFill 描边太粗时整个符号改为描边色填充
func (p *PointRenderer) degradeToFill(initFill func()) {
	p.fillMode = FillOnly
	p.fillColor = p.cfg.StrokeColor
	initFill()
}

func (p *PointRenderer) initTriangleFill() {
	p.fillRect.Right = p.halfWidth
	p.fillRect.Left = -p.halfWidth
	p.fillRect.Bottom = p.height / 3
	p.fillRect.Top = p.fillRect.Bottom - p.height
}

func (p *PointRenderer) initTriangle() {
	cfg := p.cfg
	height := cfg.PointHeight
	if cfg.PointMarker == MarkerEquilateralTriangle {
		height = cfg.PointWidth * sqrt3Half
	}
	p.initPaints(cfg.PointWidth, height)
	if cfg.CenterLabelDependentMarker() {
		return
	}
	if p.fillMode == FillOnly {
		p.initTriangleFill()
		return
	}
	tan := p.height / p.halfWidth
	cot := p.halfWidth / p.height
	cosec := math.Sqrt(1 + cot*cot)
	dFill := cfg.StrokeWidth * (cosec + cot)
	if dFill >= p.halfWidth {
		p.degradeToFill(p.initTriangleFill)
		return
	}
	dOutline := dFill / 2
	p.outlineRect.Right = p.halfWidth - dOutline
	p.outlineRect.Left = -p.outlineRect.Right
	p.outlineRect.Bottom = p.height/3 - p.halfOutline
	p.outlineRect.Top = p.outlineRect.Bottom - p.outlineRect.Right*tan
	if p.outlineRect.Bottom <= p.outlineRect.Top {
		p.degradeToFill(p.initTriangleFill)
	}
	p.outlineBounds = Rect{
		Left:   -p.halfWidth,
		Right:  p.halfWidth,
		Bottom: p.outlineRect.Bottom + p.halfOutline,
	}
	p.outlineBounds.Top = p.outlineBounds.Bottom - p.height

	if p.fillMode == FillAndOutline {
		p.fillRect.Right = p.halfWidth - dFill
		p.fillRect.Left = -p.fillRect.Right
		p.fillRect.Bottom = p.outlineRect.Bottom - p.halfOutline
		p.fillRect.Top = p.fillRect.Bottom - p.fillRect.Right*tan
	}
}

func (p *PointRenderer) initRectangleFill() {
	p.fillRect.Right = p.halfWidth
	p.fillRect.Left = -p.halfWidth
	p.fillRect.Bottom = p.height / 2
	p.fillRect.Top = p.fillRect.Bottom - p.height
}

func (p *PointRenderer) initRectangle() {
	cfg := p.cfg
	height := cfg.PointHeight
	if cfg.PointMarker == MarkerSquare || cfg.PointMarker == MarkerCircle {
		height = cfg.PointWidth
	}
	p.initPaints(cfg.PointWidth, height)
	if cfg.CenterLabelDependentMarker() {
		return
	}
	if p.fillMode == FillOnly {
		p.initRectangleFill()
		return
	}
	if cfg.StrokeWidth >= p.halfWidth {
		p.degradeToFill(p.initRectangleFill)
		return
	}
	p.outlineRect.Right = p.halfWidth - cfg.StrokeWidth/2
	p.outlineRect.Left = -p.outlineRect.Right
	p.outlineRect.Bottom = p.height/2 - p.halfOutline
	p.outlineRect.Top = -p.outlineRect.Bottom
	if p.outlineRect.Bottom <= p.outlineRect.Top {
		p.degradeToFill(p.initRectangleFill)
	}
	p.outlineBounds = p.outlineRect.Inset(-p.halfOutline, -p.halfOutline)

	if p.fillMode == FillAndOutline {
		p.fillRect.Right = p.halfWidth - cfg.StrokeWidth
		p.fillRect.Left = -p.fillRect.Right
		p.fillRect.Bottom = p.outlineRect.Bottom - p.halfOutline
		p.fillRect.Top = -p.fillRect.Bottom
	}
}

// resizeBox 矩形类符号包住文字框；保持比例时按较紧的方向补齐
func resizeBox(text Rect, scaling ShieldScaling, halfWidth, height float64) Rect {
	box := text
	if scaling != IconFixedAspect {
		return box
	}
	diff := text.Width()/(halfWidth*2) - text.Height()/height
	if diff > 0 {
		extra := diff * height / 2
		box.Bottom += extra
		box.Top -= extra
	} else {
		extra := -diff * halfWidth
		box.Right += extra
		box.Left -= extra
	}
	return box
}

func (p *PointRenderer) adjustRects(box Rect) {
	if p.fillMode != OutlineOnly {
		p.fillRect = box
		if p.fillMode == FillOnly {
			return
		}
	}
	p.outlineRect = box.Inset(-p.halfOutline, -p.halfOutline)
	p.outlineBounds = p.outlineRect.Inset(-p.halfOutline, -p.halfOutline)
}

// resizeToWrap 按文字框重新计算符号尺寸。文字框不一定以原点对称。
func (p *PointRenderer) resizeToWrap(text Rect, scaling ShieldScaling) {
	switch p.kind {
	case shapeRectangle:
		p.adjustRects(resizeBox(text, scaling, p.halfWidth, p.height))

	case shapeOval:
		w, h := text.Width(), text.Height()
		var wExtra, hExtra float64
		if scaling == IconFixedAspect {
			ratio := p.height / (p.halfWidth * 2)
			ovalW := math.Sqrt(w*w + h*h/(ratio*ratio))
			ovalH := ovalW * ratio
			wExtra = (ovalW - w) / 2
			hExtra = (ovalH - h) / 2
		} else {
			// 椭圆超出文字框的部分在 x、y 方向均分
			wExtra = w * sqrt2m1Half
			hExtra = h * sqrt2m1Half
		}
		p.adjustRects(text.Inset(-wExtra, -hExtra))

	case shapeTriangle:
		tan := sqrt3
		if scaling == IconFixedAspect {
			tan = p.height / p.halfWidth
		}
		dHalf := text.Height() / tan
		if p.fillMode != OutlineOnly {
			p.fillRect.Right = text.Right + dHalf
			p.fillRect.Left = text.Left - dHalf
			p.fillRect.Bottom = text.Bottom
			p.fillRect.Top = p.fillRect.Bottom - p.fillRect.Right*tan
			if p.fillMode == FillOnly {
				return
			}
		}
		cot := 1 / tan
		cosec := math.Sqrt(1 + cot*cot)
		dOutline := p.halfOutline * (cosec + cot)
		p.outlineRect.Right = text.Right + dHalf + dOutline
		p.outlineRect.Left = text.Left - dHalf - dOutline
		p.outlineRect.Bottom = text.Bottom + p.halfOutline
		p.outlineRect.Top = p.outlineRect.Bottom - p.outlineRect.Width()/2*tan
		p.outlineBounds.Right = p.outlineRect.Right + dOutline
		p.outlineBounds.Left = p.outlineRect.Left - dOutline
		p.outlineBounds.Bottom = p.outlineRect.Bottom + p.halfOutline
		p.outlineBounds.Top = p.outlineBounds.Bottom - p.outlineBounds.Width()/2*tan

	case shapeIcon:
		p.adjustedIcon = resizeBox(text, scaling, p.iconBox.Right, p.iconBox.Height())
	}
}

// SetCenterLabel 设置中心标注；符号尺寸随标注变化时重新计算形状
func (p *PointRenderer) SetCenterLabel(text string) {
	wrap := p.cfg.CenterLabelDependentMarker()
	p.centerLabel = newMarkerText(&p.cfg.Shield, text, wrap)
	if !wrap {
		return
	}
	scaling := p.cfg.Shield.Scaling
	switch p.cfg.PointMarker {
	case MarkerCircle, MarkerSquare, MarkerEquilateralTriangle:
		scaling = IconFixedAspect
	}
	p.resizeToWrap(p.centerLabel.box, scaling)
}

// BoundingBox 符号相对点位的包围盒
func (p *PointRenderer) BoundingBox() Rect {
	if p.kind == shapeIcon {
		return p.adjustedIcon
	}
	if p.fillMode == FillOnly {
		return p.fillRect
	}
	return p.outlineBounds
}

func triangleContour(box Rect, x float64) []Point {
	return []Point{{x, box.Top}, {box.Left, box.Bottom}, {box.Right, box.Bottom}}
}

func (p *PointRenderer) drawShape(c *Canvas, box Rect, x float64, fill bool) {
	col := p.fillColor
	if !fill {
		col = p.outlineCol
	}
	switch p.kind {
	case shapeTriangle:
		if fill {
			c.FillContours([][]Point{triangleContour(box, x)}, col)
		} else {
			c.StrokeContours([][]Point{triangleContour(box, x)}, p.outlineW, col, true)
		}
	case shapeRectangle:
		if fill {
			c.FillRect(box, col)
		} else {
			c.StrokeRect(box, p.outlineW, col)
		}
	case shapeOval:
		if fill {
			c.FillOval(box, col)
		} else {
			c.StrokeOval(box, p.outlineW, col)
		}
	}
}

// Render 在 pt 处绘制符号与中心标注
func (p *PointRenderer) Render(c *Canvas, pt Point) {
	if p.kind == shapeIcon {
		c.DrawIcon(p.icon, p.adjustedIcon.Offset(pt.X, pt.Y))
	} else {
		if p.fillMode != OutlineOnly {
			p.drawShape(c, p.fillRect.Offset(pt.X, pt.Y), pt.X, true)
		}
		if p.fillMode != FillOnly {
			p.drawShape(c, p.outlineRect.Offset(pt.X, pt.Y), pt.X, false)
		}
	}
	if p.centerLabel != nil {
		p.centerLabel.render(c, pt)
	}
}
