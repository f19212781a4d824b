package maprender

import "math"

// Point 瓦片像素坐标，左上角为原点，y 向下
type Point struct {
	X, Y float64
}

func (p Point) Add(o Point) Point     { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point     { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }
func (p Point) Dot(o Point) float64   { return p.X*o.X + p.Y*o.Y }
func (p Point) Length() float64       { return math.Hypot(p.X, p.Y) }
func (p Point) Perp() Point           { return Point{-p.Y, p.X} }

// Lerp 线性插值
func (p Point) Lerp(o Point, t float64) Point {
	return Point{p.X + (o.X-p.X)*t, p.Y + (o.Y-p.Y)*t}
}

// Normalize 单位化，零向量返回 false
func (p Point) Normalize() (Point, bool) {
	l := p.Length()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Point{}, false
	}
	return Point{p.X / l, p.Y / l}, true
}

// Rect 轴对齐矩形，Top < Bottom
type Rect struct {
	Left, Top, Right, Bottom float64
}

func (r Rect) Width() float64   { return r.Right - r.Left }
func (r Rect) Height() float64  { return r.Bottom - r.Top }
func (r Rect) CenterX() float64 { return (r.Left + r.Right) / 2 }
func (r Rect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }

// IsEmpty 宽或高不为正
func (r Rect) IsEmpty() bool { return !(r.Left < r.Right && r.Top < r.Bottom) }

func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{r.Left + dx, r.Top + dy, r.Right + dx, r.Bottom + dy}
}

// Inset 正值向内收缩，负值向外扩张
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{r.Left + dx, r.Top + dy, r.Right - dx, r.Bottom - dy}
}

// Intersects 两矩形内部相交（仅边相接不算），空矩形不与任何矩形相交
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom &&
		!r.IsEmpty() && !o.IsEmpty()
}

// Contains o 完全位于 r 内，空矩形不被包含
func (r Rect) Contains(o Rect) bool {
	return !r.IsEmpty() && !o.IsEmpty() &&
		r.Left <= o.Left && r.Top <= o.Top && r.Right >= o.Right && r.Bottom >= o.Bottom
}

// Extend 扩展到包含 p
func (r *Rect) Extend(p Point) {
	if p.X < r.Left {
		r.Left = p.X
	}
	if p.X > r.Right {
		r.Right = p.X
	}
	if p.Y < r.Top {
		r.Top = p.Y
	}
	if p.Y > r.Bottom {
		r.Bottom = p.Y
	}
}

// Path 由若干折线轮廓组成的绘制路径。同一路径在要素与标注之间共享，不复制。
type Path struct {
	Contours [][]Point
}

func (p *Path) MoveTo(pt Point) {
	p.Contours = append(p.Contours, []Point{pt})
}

func (p *Path) LineTo(pt Point) {
	if len(p.Contours) == 0 {
		p.MoveTo(pt)
		return
	}
	last := len(p.Contours) - 1
	p.Contours[last] = append(p.Contours[last], pt)
}

// Points 按顺序返回全部轮廓的点
func (p *Path) Points() []Point {
	n := 0
	for _, c := range p.Contours {
		n += len(c)
	}
	out := make([]Point, 0, n)
	for _, c := range p.Contours {
		out = append(out, c...)
	}
	return out
}

// Empty 没有任何点
func (p *Path) Empty() bool {
	for _, c := range p.Contours {
		if len(c) > 0 {
			return false
		}
	}
	return true
}

// Bounds 全部点的包围盒
func (p *Path) Bounds() Rect {
	first := true
	var r Rect
	for _, c := range p.Contours {
		for _, pt := range c {
			if first {
				r = Rect{pt.X, pt.Y, pt.X, pt.Y}
				first = false
				continue
			}
			r.Extend(pt)
		}
	}
	return r
}

// PathMeasure 沿路径第一条轮廓按弧长取位置与切线
type PathMeasure struct {
	pts  []Point
	dist []float64
}

func NewPathMeasure(p *Path) *PathMeasure {
	m := &PathMeasure{}
	for _, c := range p.Contours {
		if len(c) == 0 {
			continue
		}
		m.pts = c
		break
	}
	m.dist = make([]float64, len(m.pts))
	for i := 1; i < len(m.pts); i++ {
		m.dist[i] = m.dist[i-1] + m.pts[i].Sub(m.pts[i-1]).Length()
	}
	return m
}

func (m *PathMeasure) Length() float64 {
	if len(m.dist) == 0 {
		return 0
	}
	return m.dist[len(m.dist)-1]
}

// PosTan 距起点 d 处的坐标与单位切线，路径长度为零时返回 false。
// d 被限制在 [0, Length]。
func (m *PathMeasure) PosTan(d float64) (pos, tan Point, ok bool) {
	length := m.Length()
	if length <= 0 {
		return Point{}, Point{}, false
	}
	d = math.Max(0, math.Min(d, length))
	i := 0
	for j := 1; j < len(m.pts); j++ {
		if m.dist[j] == m.dist[j-1] {
			continue
		}
		i = j
		if d <= m.dist[j] {
			break
		}
	}
	seg := m.pts[i].Sub(m.pts[i-1])
	t := (d - m.dist[i-1]) / (m.dist[i] - m.dist[i-1])
	tan, _ = seg.Normalize()
	return m.pts[i-1].Lerp(m.pts[i], t), tan, true
}
