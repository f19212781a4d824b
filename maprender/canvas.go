package maprender

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Canvas 在预乘 RGBA 缓冲区上做抗锯齿填充与描边。
// 描边由线段四边形与圆形连接点拼成，所有图形按相同绕向累加，重叠处不会抵消。
type Canvas struct {
	img *image.RGBA
	r   vector.Rasterizer
}

func NewCanvas(img *image.RGBA) *Canvas {
	return &Canvas{img: img}
}

func (c *Canvas) Image() *image.RGBA { return c.img }

// Clear 清为全透明；debug 时填充 50% 灰便于观察瓦片边界
func (c *Canvas) Clear(debug bool) {
	if debug {
		for i := range c.img.Pix {
			c.img.Pix[i] = 128
		}
		return
	}
	clear(c.img.Pix)
}

func (c *Canvas) begin() {
	b := c.img.Bounds()
	c.r.Reset(b.Dx(), b.Dy())
	c.r.DrawOp = draw.Over
}

func (c *Canvas) paint(col Color) {
	c.r.Draw(c.img, c.img.Bounds(), image.NewUniform(color.NRGBA(col)), image.Point{})
}

func (c *Canvas) addPolygon(pts []Point) {
	c.r.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		c.r.LineTo(float32(p.X), float32(p.Y))
	}
	c.r.ClosePath()
}

// FillContours 按非零规则填充闭合轮廓
func (c *Canvas) FillContours(contours [][]Point, col Color) {
	if col.Transparent() {
		return
	}
	c.begin()
	n := 0
	for _, ct := range contours {
		if len(ct) < 3 {
			continue
		}
		c.addPolygon(ct)
		n++
	}
	if n > 0 {
		c.paint(col)
	}
}

// StrokeContours 圆形连接、平头端点描边。width <= 0 视为 1 像素细线。
func (c *Canvas) StrokeContours(contours [][]Point, width float64, col Color, closed bool) {
	if col.Transparent() {
		return
	}
	if width <= 0 {
		width = 1
	}
	c.begin()
	n := 0
	for _, ct := range contours {
		n += c.addStroke(ct, width/2, closed)
	}
	if n > 0 {
		c.paint(col)
	}
}

func (c *Canvas) addStroke(in []Point, half float64, closed bool) int {
	pts := make([]Point, 0, len(in)+1)
	for _, p := range in {
		if len(pts) == 0 || p != pts[len(pts)-1] {
			pts = append(pts, p)
		}
	}
	if closed && len(pts) > 2 && pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	if len(pts) < 2 {
		return 0
	}
	for i := 1; i < len(pts); i++ {
		c.addSegment(pts[i-1], pts[i], half)
	}
	for i := 1; i < len(pts)-1; i++ {
		c.addDisc(pts[i], half)
	}
	if len(pts) > 2 && pts[0] == pts[len(pts)-1] {
		c.addDisc(pts[0], half)
	}
	return 1
}

// addSegment 线段两侧各偏移 half 的四边形，面积恒为负向
func (c *Canvas) addSegment(a, b Point, half float64) {
	d, ok := b.Sub(a).Normalize()
	if !ok {
		return
	}
	n := d.Perp().Scale(half)
	c.addPolygon([]Point{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)})
}

const discSegments = 16

// addDisc 与 addSegment 同绕向的圆
func (c *Canvas) addDisc(center Point, radius float64) {
	pts := make([]Point, discSegments)
	for i := range pts {
		a := -2 * math.Pi * float64(i) / discSegments
		pts[i] = Point{center.X + radius*math.Cos(a), center.Y + radius*math.Sin(a)}
	}
	c.addPolygon(pts)
}

func rectContour(r Rect) []Point {
	return []Point{{r.Left, r.Top}, {r.Right, r.Top}, {r.Right, r.Bottom}, {r.Left, r.Bottom}}
}

const ovalSegments = 48

func ovalContour(r Rect) []Point {
	cx, cy := r.CenterX(), r.CenterY()
	rx, ry := r.Width()/2, r.Height()/2
	pts := make([]Point, ovalSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / ovalSegments
		pts[i] = Point{cx + rx*math.Cos(a), cy + ry*math.Sin(a)}
	}
	return pts
}

func (c *Canvas) FillRect(r Rect, col Color) {
	if r.IsEmpty() {
		return
	}
	c.FillContours([][]Point{rectContour(r)}, col)
}

func (c *Canvas) StrokeRect(r Rect, width float64, col Color) {
	c.StrokeContours([][]Point{rectContour(r)}, width, col, true)
}

func (c *Canvas) FillOval(r Rect, col Color) {
	if r.IsEmpty() {
		return
	}
	c.FillContours([][]Point{ovalContour(r)}, col)
}

func (c *Canvas) StrokeOval(r Rect, width float64, col Color) {
	if r.IsEmpty() {
		return
	}
	c.StrokeContours([][]Point{ovalContour(r)}, width, col, true)
}

// FillCircle 以 (x, y) 为圆心
func (c *Canvas) FillCircle(x, y, radius float64, col Color) {
	c.FillOval(Rect{x - radius, y - radius, x + radius, y + radius}, col)
}

func (c *Canvas) StrokeCircle(x, y, radius, width float64, col Color) {
	c.StrokeOval(Rect{x - radius, y - radius, x + radius, y + radius}, width, col)
}

// DrawIcon 把图标的下三分之一拉伸绘制到 box。图标按上下三段存放，只用最下一段。
func (c *Canvas) DrawIcon(icon image.Image, box Rect) {
	if icon == nil || box.IsEmpty() {
		return
	}
	b := icon.Bounds()
	sr := image.Rect(b.Min.X, b.Min.Y+b.Dy()*2/3, b.Max.X, b.Max.Y)
	dr := image.Rect(
		int(math.Floor(box.Left)), int(math.Floor(box.Top)),
		int(math.Ceil(box.Right)), int(math.Ceil(box.Bottom)),
	)
	if sr.Empty() || dr.Empty() {
		return
	}
	draw.BiLinear.Scale(c.img, dr, icon, sr, draw.Over, nil)
}
