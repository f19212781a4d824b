// Package geom 提供矢量处理中的数值工具：共线与方向判断、线段求交与裁剪、
// 度与米换算、瓦片像素裁剪，以及合并区间集合 MultiRange。
package geom

import (
	"fmt"
	"math"

	"maptile-platform/tilespace"
)

const (
	// DblEpsilon 机器精度，方向判断的零阈值
	DblEpsilon = 2.220446049250313e-16
	// Epsilon 裁剪窗口边界上的端点挪动量
	Epsilon = 1e-12
	// AlmostZero 水平/竖直线段的斜率替代值
	AlmostZero = 1e-15
	// CollinearityEpsilon Collinear 的默认容差
	CollinearityEpsilon = 1e-20
)

// Vertex 带高程的二维点
type Vertex struct {
	X, Y, Z float64
}

func (v Vertex) Sub(o Vertex) Vertex { return Vertex{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vertex) Cross(o Vertex) Vertex {
	return Vertex{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vertex) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// DegreesToMeters 按大地周长换算
func DegreesToMeters(deg float64) float64 {
	return deg * tilespace.FlatEarthCircumference / 360.0
}

func MetersToDegrees(m float64) float64 {
	return m * 360.0 / tilespace.FlatEarthCircumference
}

// Collinear 判断 a、b、c 是否共线：|ac × ab|² <= eps·|ac|²·|ab|²
func Collinear(a, b, c Vertex, eps float64) bool {
	dx, dy := c.X-a.X, c.Y-a.Y
	ax, ay := b.X-a.X, b.Y-a.Y
	d2 := dx*dx + dy*dy
	a2 := ax*ax + ay*ay
	nda := dx*ay - dy*ax
	return nda*nda <= eps*d2*a2
}

// Collinear3D 三维共线判断
func Collinear3D(a, b, c Vertex, eps float64) bool {
	u := b.Sub(a)
	v := c.Sub(a)
	x := u.Cross(v)
	du := u.X*u.X + u.Y*u.Y + u.Z*u.Z
	dv := v.X*v.X + v.Y*v.Y + v.Z*v.Z
	dx := x.X*x.X + x.Y*x.Y + x.Z*x.Z
	return dx <= eps*du*dv
}

// ComputePlaneEquation 过三点的平面单位法向量与原点距离，三点共线时 ok 为 false
func ComputePlaneEquation(a, b, c Vertex) (normal Vertex, distance float64, ok bool) {
	normal = b.Sub(a).Cross(c.Sub(a))
	mod := normal.Length()
	if mod == 0 {
		return Vertex{}, 0, false
	}
	normal = Vertex{normal.X / mod, normal.Y / mod, normal.Z / mod}
	return normal, normal.X*a.X + normal.Y*a.Y + normal.Z*a.Z, true
}

// Orientation c 相对有向线段 ab：1 左侧，-1 右侧，0 共线
func Orientation(a, b, c Vertex) int {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case math.Abs(cross) <= DblEpsilon:
		return 0
	case cross > 0:
		return 1
	default:
		return -1
	}
}

// AreSegmentsIntersecting 线段 ab 与 cd 是否相交（端点接触但不穿越时为 false）
func AreSegmentsIntersecting(a, b, c, d Vertex) bool {
	oc := Orientation(a, b, c)
	od := Orientation(a, b, d)
	if oc*od == 1 {
		return false
	}
	oa := Orientation(c, d, a)
	ob := Orientation(c, d, b)
	return oa*ob == -1 || (oa*ob == 0 && oc*od == -1)
}

func lineYFromX(a, b Vertex, x float64) float64 {
	return a.Y + (x-a.X)*(b.Y-a.Y)/(b.X-a.X)
}

func lineXFromY(a, b Vertex, y float64) float64 {
	return a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
}

// lineZFromXY 按 pt 在 ab 上的位置线性插值高程
func lineZFromXY(a, b Vertex, pt *Vertex) {
	if a.Z == b.Z {
		pt.Z = a.Z
		return
	}
	ab := math.Hypot(b.X-a.X, b.Y-a.Y)
	if ab == 0 {
		pt.Z = a.Z
		return
	}
	t := math.Hypot(pt.X-a.X, pt.Y-a.Y) / ab
	pt.Z = a.Z + t*(b.Z-a.Z)
}

// LinesIntersection2D 直线 ab 与 cd 的交点，两线不得平行。高程按 ab 插值。
func LinesIntersection2D(a, b, c, d Vertex) (Vertex, error) {
	ux, uy := b.X-a.X, b.Y-a.Y
	vx, vy := d.X-c.X, d.Y-c.Y
	if ux*vy-uy*vx == 0 {
		return Vertex{}, fmt.Errorf("直线 %v-%v 与 %v-%v 平行", a, b, c, d)
	}
	var pt Vertex
	switch {
	case ux == 0:
		pt.X = a.X
		pt.Y = lineYFromX(c, d, pt.X)
	case uy == 0:
		if vx == 0 {
			pt = Vertex{X: c.X, Y: a.Y}
		} else {
			pt.Y = a.Y
			pt.X = lineXFromY(c, d, pt.Y)
		}
	case vx == 0:
		pt.X = c.X
		pt.Y = lineYFromX(a, b, pt.X)
	case vy == 0:
		pt.Y = c.Y
		pt.X = lineXFromY(a, b, pt.Y)
	default:
		den := ux*vy - uy*vx
		t := ((c.X-a.X)*vy - (c.Y-a.Y)*vx) / den
		pt.X = a.X + t*ux
		pt.Y = a.Y + t*uy
	}
	lineZFromXY(a, b, &pt)
	return pt, nil
}

// SegmentClipper 用矩形窗口裁剪线段（Liang-Barsky）
type SegmentClipper struct {
	wx1, wx2, wy1, wy2 float64
}

func NewSegmentClipper(wx1, wx2, wy1, wy2 float64) SegmentClipper {
	return SegmentClipper{wx1: wx1, wx2: wx2, wy1: wy1, wy2: wy2}
}

// Run 返回线段在窗口内部分的两个端点，不相交时返回 nil。
// 落在窗口边界上的端点先挪动 Epsilon，水平/竖直线段用 AlmostZero 代替零增量。
func (s SegmentClipper) Run(v1, v2 Vertex) []Vertex {
	x1, y1, x2, y2 := v1.X, v1.Y, v2.X, v2.Y
	if x1 == s.wx1 || x1 == s.wx2 {
		x1 += Epsilon
	}
	if x2 == s.wx1 || x2 == s.wx2 {
		x2 += Epsilon
	}
	if y1 == s.wy1 || y1 == s.wy2 {
		y1 += Epsilon
	}
	if y2 == s.wy1 || y2 == s.wy2 {
		y2 += Epsilon
	}

	dx := x2 - x1
	if dx == 0 {
		if x1 > s.wx1 {
			dx = -AlmostZero
		} else {
			dx = AlmostZero
		}
	}
	dy := y2 - y1
	if dy == 0 {
		if y1 > s.wy1 {
			dy = -AlmostZero
		} else {
			dy = AlmostZero
		}
	}

	xin, xout := s.wx2, s.wx1
	if dx > 0 {
		xin, xout = s.wx1, s.wx2
	}
	yin, yout := s.wy2, s.wy1
	if dy > 0 {
		yin, yout = s.wy1, s.wy2
	}

	tinx := (xin - x1) / dx
	tiny := (yin - y1) / dy
	tin1, tin2 := tiny, tinx
	if tinx < tiny {
		tin1, tin2 = tinx, tiny
	}
	if tin1 > 1 || tin2 > 1 {
		return nil
	}
	toutx := (xout - x1) / dx
	touty := (yout - y1) / dy
	tout1 := touty
	if toutx < touty {
		tout1 = toutx
	}
	if !(tin2 >= 0 || tout1 >= 0) || tin2 > tout1 {
		return nil
	}

	out := make([]Vertex, 0, 2)
	if tin2 > 0 {
		if tinx > tiny {
			out = append(out, Vertex{X: xin, Y: y1 + tinx*dy})
		} else {
			out = append(out, Vertex{X: x1 + tiny*dx, Y: yin})
		}
	} else {
		out = append(out, Vertex{X: x1, Y: y1})
	}
	if tout1 < 1 {
		if toutx < touty {
			out = append(out, Vertex{X: xout, Y: y1 + toutx*dy})
		} else {
			out = append(out, Vertex{X: x1 + touty*dx, Y: yout})
		}
	} else {
		out = append(out, Vertex{X: x2, Y: y2})
	}
	return out
}

// CropTile 从 src（srcWidth 像素宽、按行连续）中复制 (x, y, w, h) 区域到 dst。
// lowerLeft 为 true 时 y 从缓冲区底部起算，且输出行序自上而下。
func CropTile(src []byte, srcWidth, srcHeight int, dst []byte, x, y, w, h, bytesPerPixel int, lowerLeft bool) error {
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > srcWidth || y+h > srcHeight {
		return fmt.Errorf("裁剪区域 (%d,%d %dx%d) 超出 %dx%d", x, y, w, h, srcWidth, srcHeight)
	}
	if len(src) < srcWidth*srcHeight*bytesPerPixel || len(dst) < w*h*bytesPerPixel {
		return fmt.Errorf("缓冲区长度不足")
	}
	rowBytes := w * bytesPerPixel
	srcStride := srcWidth * bytesPerPixel
	for r := 0; r < h; r++ {
		srcRow := y + r
		if lowerLeft {
			srcRow = srcHeight - 1 - (y + h - 1 - r)
		}
		off := srcRow*srcStride + x*bytesPerPixel
		copy(dst[r*rowBytes:(r+1)*rowBytes], src[off:off+rowBytes])
	}
	return nil
}
