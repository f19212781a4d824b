package geom

import (
	"fmt"
	"sort"
	"strings"
)

// Integer MultiRange 支持的整数类型
type Integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Range 闭区间 [Lo, Hi]
type Range[T Integer] struct {
	Lo, Hi T
}

// MultiRange 有序、互不相交且不相邻的闭区间集合，插入时自动合并
type MultiRange[T Integer] struct {
	ranges []Range[T]
}

// NewMultiRange 由若干区间构造，Lo > Hi 的区间被忽略
func NewMultiRange[T Integer](ranges ...Range[T]) *MultiRange[T] {
	m := &MultiRange[T]{}
	for _, r := range ranges {
		m.Add(r.Lo, r.Hi)
	}
	return m
}

// Add 插入 [lo, hi]，与重叠或相邻的区间合并
func (m *MultiRange[T]) Add(lo, hi T) {
	if lo > hi {
		return
	}
	// 第一个可能与新区间合并的位置：Hi+1 >= lo
	i := sort.Search(len(m.ranges), func(i int) bool {
		return m.ranges[i].Hi >= lo || m.ranges[i].Hi+1 == lo
	})
	j := i
	for j < len(m.ranges) && (m.ranges[j].Lo <= hi || m.ranges[j].Lo == hi+1) {
		lo = min(lo, m.ranges[j].Lo)
		hi = max(hi, m.ranges[j].Hi)
		j++
	}
	merged := append([]Range[T]{}, m.ranges[:i]...)
	merged = append(merged, Range[T]{Lo: lo, Hi: hi})
	m.ranges = append(merged, m.ranges[j:]...)
}

// AddRange 合并另一个集合
func (m *MultiRange[T]) AddRange(o *MultiRange[T]) {
	if o == nil {
		return
	}
	for _, r := range o.ranges {
		m.Add(r.Lo, r.Hi)
	}
}

// Contains v 是否落在任一区间内
func (m *MultiRange[T]) Contains(v T) bool {
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].Hi >= v })
	return i < len(m.ranges) && m.ranges[i].Lo <= v
}

func (m *MultiRange[T]) Empty() bool { return len(m.ranges) == 0 }

// Ranges 返回区间副本
func (m *MultiRange[T]) Ranges() []Range[T] {
	return append([]Range[T](nil), m.ranges...)
}

// Min 最小值，集合为空时 ok 为 false
func (m *MultiRange[T]) Min() (v T, ok bool) {
	if len(m.ranges) == 0 {
		return v, false
	}
	return m.ranges[0].Lo, true
}

func (m *MultiRange[T]) Max() (v T, ok bool) {
	if len(m.ranges) == 0 {
		return v, false
	}
	return m.ranges[len(m.ranges)-1].Hi, true
}

func (m *MultiRange[T]) String() string {
	parts := make([]string, len(m.ranges))
	for i, r := range m.ranges {
		if r.Lo == r.Hi {
			parts[i] = fmt.Sprint(r.Lo)
		} else {
			parts[i] = fmt.Sprintf("%v-%v", r.Lo, r.Hi)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}
