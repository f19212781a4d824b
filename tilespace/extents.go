package tilespace

import (
	"fmt"
	"math"
)

// Integer 支持对齐运算的整数类型
type Integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

// Number 范围类型支持的数值类型
type Number interface {
	Integer | ~float64
}

// Extents 轴对齐矩形，end 为“最后一个之后”
//
// 整数类型：宽或高为 0 即为空；浮点类型：四个值全为 0 才为空。
type Extents[T Number] struct {
	beginX, endX T
	beginY, endY T
}

// XY 以 (beginX, endX, beginY, endY) 顺序构造，反向区间得到空范围
func XY[T Number](beginX, endX, beginY, endY T) Extents[T] {
	if endX < beginX || endY < beginY {
		return Extents[T]{}
	}
	return Extents[T]{beginX: beginX, endX: endX, beginY: beginY, endY: endY}
}

// RowCol 以 (beginRow, endRow, beginCol, endCol) 顺序构造
func RowCol[T Number](beginRow, endRow, beginCol, endCol T) Extents[T] {
	return XY(beginCol, endCol, beginRow, endRow)
}

// NSEW 以 (north, south, east, west) 顺序构造
func NSEW[T Number](north, south, east, west T) Extents[T] {
	return XY(west, east, south, north)
}

func isFloat[T Number]() bool {
	var z T
	switch any(z).(type) {
	case float64:
		return true
	}
	return false
}

func limits[T Number]() (lo, hi T) {
	var z T
	switch any(z).(type) {
	case int32:
		return any(int32(math.MinInt32)).(T), any(int32(math.MaxInt32)).(T)
	case int64:
		return any(int64(math.MinInt64)).(T), any(int64(math.MaxInt64)).(T)
	case uint32:
		return 0, any(uint32(math.MaxUint32)).(T)
	case uint64:
		return 0, any(uint64(math.MaxUint64)).(T)
	}
	return any(-math.MaxFloat64).(T), any(math.MaxFloat64).(T)
}

func (e Extents[T]) BeginX() T { return e.beginX }
func (e Extents[T]) EndX() T   { return e.endX }
func (e Extents[T]) BeginY() T { return e.beginY }
func (e Extents[T]) EndY() T   { return e.endY }

func (e Extents[T]) North() T { return e.endY }
func (e Extents[T]) South() T { return e.beginY }
func (e Extents[T]) East() T  { return e.endX }
func (e Extents[T]) West() T  { return e.beginX }

func (e Extents[T]) BeginRow() T { return e.beginY }
func (e Extents[T]) EndRow() T   { return e.endY }
func (e Extents[T]) BeginCol() T { return e.beginX }
func (e Extents[T]) EndCol() T   { return e.endX }

func (e Extents[T]) Width() T   { return e.endX - e.beginX }
func (e Extents[T]) Height() T  { return e.endY - e.beginY }
func (e Extents[T]) NumRows() T { return e.endY - e.beginY }
func (e Extents[T]) NumCols() T { return e.endX - e.beginX }

// Degenerate 宽或高为 0
func (e Extents[T]) Degenerate() bool {
	return e.Width() == 0 || e.Height() == 0
}

// Empty 见类型说明
func (e Extents[T]) Empty() bool {
	if isFloat[T]() {
		return e.beginX == 0 && e.endX == 0 && e.beginY == 0 && e.endY == 0
	}
	return e.Degenerate()
}

// Connects 相交或相接
func (e Extents[T]) Connects(o Extents[T]) bool {
	return min(e.endX, o.endX) >= max(e.beginX, o.beginX) &&
		min(e.endY, o.endY) >= max(e.beginY, o.beginY)
}

// Intersects 整数类型要求面积相交，浮点类型相接也算
func (e Extents[T]) Intersects(o Extents[T]) bool {
	if isFloat[T]() {
		return e.Connects(o)
	}
	return min(e.endX, o.endX) > max(e.beginX, o.beginX) &&
		min(e.endY, o.endY) > max(e.beginY, o.beginY)
}

// ContainsRow 整数类型为半开区间，浮点类型为闭区间
func (e Extents[T]) ContainsRow(row T) bool {
	if isFloat[T]() {
		return row >= e.beginY && row <= e.endY
	}
	return row >= e.beginY && row < e.endY
}

func (e Extents[T]) ContainsCol(col T) bool {
	if isFloat[T]() {
		return col >= e.beginX && col <= e.endX
	}
	return col >= e.beginX && col < e.endX
}

func (e Extents[T]) ContainsRowCol(row, col T) bool { return e.ContainsRow(row) && e.ContainsCol(col) }
func (e Extents[T]) ContainsXY(x, y T) bool         { return e.ContainsRowCol(y, x) }

// Contains o 完全落在 e 内
func (e Extents[T]) Contains(o Extents[T]) bool {
	return e.beginX <= o.beginX && e.endX >= o.endX &&
		e.beginY <= o.beginY && e.endY >= o.endY
}

// Grow 并入 o，空范围不参与
func (e *Extents[T]) Grow(o Extents[T]) {
	switch {
	case o.Empty():
	case e.Empty():
		*e = o
	default:
		e.beginX = min(e.beginX, o.beginX)
		e.beginY = min(e.beginY, o.beginY)
		e.endX = max(e.endX, o.endX)
		e.endY = max(e.endY, o.endY)
	}
}

// ExpandBy 四周各扩展 t（t >= 0），按类型上下限饱和
func (e *Extents[T]) ExpandBy(t T) {
	lo, hi := limits[T]()
	e.beginX = subSat(e.beginX, t, lo)
	e.endX = addSat(e.endX, t, hi)
	e.beginY = subSat(e.beginY, t, lo)
	e.endY = addSat(e.endY, t, hi)
}

// NarrowBy 四周各收缩 t，收缩过头时变为空
func (e *Extents[T]) NarrowBy(t T) {
	lo, hi := limits[T]()
	e.beginX = addSat(e.beginX, t, hi)
	e.endX = subSat(e.endX, t, lo)
	e.beginY = addSat(e.beginY, t, hi)
	e.endY = subSat(e.endY, t, lo)
	if e.endX < e.beginX || e.endY < e.beginY {
		*e = Extents[T]{}
	}
}

func addSat[T Number](v, t, hi T) T {
	if v <= hi-t {
		return v + t
	}
	return hi
}

func subSat[T Number](v, t, lo T) T {
	if v >= lo+t {
		return v - t
	}
	return lo
}

// MakeRelativeTo 平移到以 (x, y) 为原点
func (e *Extents[T]) MakeRelativeTo(x, y T) {
	if e.Empty() {
		return
	}
	e.beginX -= x
	e.endX -= x
	e.beginY -= y
	e.endY -= y
}

// AlignBy 向外对齐到 t 的整数倍
func AlignBy[T Integer](e Extents[T], t T) Extents[T] {
	e.beginX -= e.beginX % t
	e.endX += t - 1
	e.endX -= e.endX % t
	e.beginY -= e.beginY % t
	e.endY += t - 1
	e.endY -= e.endY % t
	return e
}

// Intersection 交集。整数类型仅当两个方向都反向时直接返回空，
// 其余情况交给构造函数判定；浮点类型任一方向反向即为空。
func Intersection[T Number](a, b Extents[T]) Extents[T] {
	bx, ex := max(a.beginX, b.beginX), min(a.endX, b.endX)
	by, ey := max(a.beginY, b.beginY), min(a.endY, b.endY)
	if isFloat[T]() {
		if ex >= bx && ey >= by {
			return XY(bx, ex, by, ey)
		}
		return Extents[T]{}
	}
	if ex < bx && ey < by {
		return Extents[T]{}
	}
	return XY(bx, ex, by, ey)
}

// Subtract 从 a 中减去 b，剩余部分（最多 4 块）追加到返回切片。
// 两者不相交时 ok 为 false。
func Subtract[T Number](a, b Extents[T]) (remainder []Extents[T], ok bool) {
	inter := Intersection(a, b)
	if inter.Empty() {
		return nil, false
	}
	parts := []Extents[T]{
		XY(a.beginX, inter.beginX, a.beginY, a.endY),
		XY(inter.endX, a.endX, a.beginY, a.endY),
		XY(inter.beginX, inter.endX, inter.endY, a.endY),
		XY(inter.beginX, inter.endX, a.beginY, inter.beginY),
	}
	for _, p := range parts {
		if !p.Degenerate() {
			remainder = append(remainder, p)
		}
	}
	return remainder, true
}

func (e Extents[T]) String() string {
	return fmt.Sprintf("(n:%v s:%v e:%v w:%v)", e.North(), e.South(), e.East(), e.West())
}
