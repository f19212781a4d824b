package quadtree

import (
	"errors"
	"fmt"
)

// 四叉树路径常量
const (
	MaxLevel   = 24 // 最大层级
	ChildCount = 4  // 每层子节点数量
)

// ErrNotAncestor 表示 parent 不是 child 的祖先
var ErrNotAncestor = errors.New("路径不是祖先")

// Path 压缩存储的四叉树路径
// 高 48 位存路径（每层 2 bit），低位存层级。
//
// 编号规则（行号自下而上）：
//
//	    c0  c1
//	r1 [3] [2]
//	r0 [0] [1]
type Path struct {
	path uint64
}

const (
	levelBits    = 2
	levelBitMask = 0x03
	totalBits    = 64
	pathMask     = ^(^uint64(0) >> (MaxLevel * levelBits))
	levelMask    = ^pathMask
)

// order[colBit][rowBit]
var order = [2][2]uint64{{0, 3}, {1, 2}}

var (
	rowBitOf = [4]uint32{0, 0, 1, 1}
	colBitOf = [4]uint32{0, 1, 1, 0}
)

// New 从层级、行、列构造路径，层级超过 MaxLevel 时截断
func New(level, row, col uint32) Path {
	if level > MaxLevel {
		level = MaxLevel
	}
	var path uint64
	for j := uint32(0); j < level; j++ {
		right := (col >> (level - j - 1)) & 0x01
		top := (row >> (level - j - 1)) & 0x01
		path |= order[right][top] << (totalBits - (j+1)*levelBits)
	}
	return Path{path: path | uint64(level)}
}

// FromString 从字符串构造路径（如 "0123"），非法字符按 0 处理
func FromString(s string) Path {
	level := len(s)
	if level > MaxLevel {
		level = MaxLevel
	}
	var path uint64
	for j := 0; j < level; j++ {
		val := uint64(s[j] - '0')
		if val > 3 {
			val = 0
		}
		path |= (val & levelBitMask) << (totalBits - uint64(j+1)*levelBits)
	}
	return Path{path: path | uint64(level)}
}

// ParseString 与 FromString 相同，但遇到非法字符或层级过深时返回错误
func ParseString(s string) (Path, error) {
	if len(s) > MaxLevel {
		return Path{}, fmt.Errorf("路径 %q 层级 %d 超过最大值 %d", s, len(s), MaxLevel)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '3' {
			return Path{}, fmt.Errorf("路径 %q 第 %d 位字符非法", s, i)
		}
	}
	return FromString(s), nil
}

// FromUint64 从压缩值还原路径
func FromUint64(v uint64) Path { return Path{path: v} }

// Uint64 返回压缩值，可作为存储键
func (p Path) Uint64() uint64 { return p.path }

// Level 返回路径层级
func (p Path) Level() uint32 {
	return uint32(p.path & levelMask)
}

// LevelRowCol 返回层级、行、列（行号自下而上）
func (p Path) LevelRowCol() (level, row, col uint32) {
	level = p.Level()
	for j := uint32(0); j < level; j++ {
		b := p.at(j)
		row = (row << 1) | rowBitOf[b]
		col = (col << 1) | colBitOf[b]
	}
	return level, row, col
}

func (p Path) at(position uint32) uint32 {
	return uint32((p.path >> (totalBits - (position+1)*levelBits)) & levelBitMask)
}

func (p Path) pathBits() uint64 { return p.path & pathMask }

func (p Path) pathBitsAtLevel(level uint32) uint64 {
	return p.path & (pathMask << ((MaxLevel - level) * levelBits))
}

// Parent 返回父路径，根节点返回自身
func (p Path) Parent() Path {
	level := p.Level()
	if level == 0 {
		return p
	}
	return Path{path: p.pathBitsAtLevel(level-1) | uint64(level-1)}
}

// Child 返回第 child 个子路径（0-3）
func (p Path) Child(child uint32) Path {
	if child > 3 {
		child = 0
	}
	level := p.Level()
	if level >= MaxLevel {
		return p
	}
	newLevel := level + 1
	return Path{path: p.pathBits() | (uint64(child) << (totalBits - newLevel*levelBits)) | uint64(newLevel)}
}

// WhichChild 返回当前节点是父节点的第几个孩子
func (p Path) WhichChild() uint32 {
	level := p.Level()
	if level == 0 {
		return 0
	}
	return p.at(level - 1)
}

// At 返回指定位置的分支值
func (p Path) At(position uint32) uint32 {
	if position >= p.Level() {
		return 0
	}
	return p.at(position)
}

// String 字符串表示（如 "0123"），根节点为空串
func (p Path) String() string {
	level := p.Level()
	out := make([]byte, level)
	for i := uint32(0); i < level; i++ {
		out[i] = byte('0' + p.at(i))
	}
	return string(out)
}

// IsAncestorOf 判断是否是 other 的祖先（包括自身）
func (p Path) IsAncestorOf(other Path) bool {
	level := p.Level()
	if level > other.Level() {
		return false
	}
	return p.pathBitsAtLevel(level) == other.pathBitsAtLevel(level)
}

// Concatenate 拼接子路径，超过 MaxLevel 时返回自身
func (p Path) Concatenate(sub Path) Path {
	level := p.Level() + sub.Level()
	if level > MaxLevel {
		return p
	}
	return Path{path: p.pathBits() | (sub.pathBits() >> (p.Level() * levelBits)) | uint64(level)}
}

// Truncate 截取前 newLevel 层
func (p Path) Truncate(newLevel uint32) Path {
	if newLevel >= p.Level() {
		return p
	}
	return Path{path: p.pathBitsAtLevel(newLevel) | uint64(newLevel)}
}

// Advance 按前序遍历前进到下一个节点，maxLevel 为 0 时使用 MaxLevel
func (p *Path) Advance(maxLevel uint32) bool {
	if maxLevel == 0 || maxLevel > MaxLevel {
		maxLevel = MaxLevel
	}
	level := p.Level()
	if level > maxLevel {
		return false
	}
	if level < maxLevel {
		*p = p.Child(0)
		return true
	}
	for p.WhichChild() == ChildCount-1 {
		if p.Level() == 0 {
			return false
		}
		*p = p.Parent()
	}
	return p.AdvanceInLevel()
}

// AdvanceInLevel 在同一层级前进到下一个节点
func (p *Path) AdvanceInLevel() bool {
	level := p.Level()
	if level == 0 {
		return false
	}
	if p.pathBits() != pathMask<<((MaxLevel-level)*levelBits) {
		p.path += uint64(1) << (totalBits - level*levelBits)
		return true
	}
	return false
}

// LessThan 前序比较：祖先排在子孙之前
func (p Path) LessThan(other Path) bool {
	minLevel := p.Level()
	if l := other.Level(); l < minLevel {
		minLevel = l
	}
	mask := ^(^uint64(0) >> (minLevel * levelBits))
	if mask&(p.path^other.path) != 0 {
		return p.pathBits() < other.pathBits()
	}
	return p.Level() < other.Level()
}

// Compare 返回 -1、0、1，可直接用于 slices.SortFunc
func (p Path) Compare(other Path) int {
	switch {
	case p.path == other.path:
		return 0
	case p.LessThan(other):
		return -1
	default:
		return 1
	}
}

// AsIndex 转换为指定层级的数组索引
func (p Path) AsIndex(level uint32) uint64 {
	return p.path >> (totalBits - level*levelBits)
}

// RelativePath 计算从 parent 到 child 的相对路径
func RelativePath(parent, child Path) (Path, error) {
	if !parent.IsAncestorOf(child) {
		return Path{}, fmt.Errorf("%s -> %s: %w", parent, child, ErrNotAncestor)
	}
	levelDiff := child.Level() - parent.Level()
	return Path{path: (child.pathBits() << (parent.Level() * levelBits)) | uint64(levelDiff)}, nil
}

// MagnifyQuadAddr 计算 (row, col) 在下一层级第 quad 个子格的行列
//
//	+---+---+
//	| 2 | 3 |
//	+---+---+
//	| 0 | 1 |
//	+---+---+
func MagnifyQuadAddr(row, col, quad uint32) (outRow, outCol uint32) {
	return row*2 + (quad >> 1), col*2 + (quad & 1)
}

// QuadToBufferOffset 返回子格在父像素缓冲区（自左向右、自下而上）中的起始偏移
func QuadToBufferOffset(quad, tileWidth, tileHeight uint32) uint32 {
	offset := uint32(0)
	if quad&1 != 0 {
		offset += tileWidth / 2
	}
	if quad&2 != 0 {
		offset += tileHeight / 2 * tileWidth
	}
	return offset
}
