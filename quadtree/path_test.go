package quadtree

import (
	"errors"
	"slices"
	"testing"
)

func TestNewFromLevelRowCol(t *testing.T) {
	tests := []struct {
		level, row, col uint32
		expected        string
	}{
		{0, 0, 0, ""},
		{1, 0, 0, "0"},
		{1, 0, 1, "1"},
		{1, 1, 1, "2"},
		{1, 1, 0, "3"},
		{2, 1, 1, "02"},
		{3, 2, 3, "021"},
		{6, 31, 7, "033222"},
	}
	for _, tt := range tests {
		p := New(tt.level, tt.row, tt.col)
		if got := p.String(); got != tt.expected {
			t.Errorf("New(%d,%d,%d) = %q, 期望 %q", tt.level, tt.row, tt.col, got, tt.expected)
		}
		level, row, col := p.LevelRowCol()
		if level != tt.level || row != tt.row || col != tt.col {
			t.Errorf("LevelRowCol() = (%d,%d,%d), 期望 (%d,%d,%d)", level, row, col, tt.level, tt.row, tt.col)
		}
	}
}

func TestFromStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "0", "123", "0123", "321032"} {
		if got := FromString(s).String(); got != s {
			t.Errorf("FromString(%q) = %q", s, got)
		}
	}
	if _, err := ParseString("0124"); err == nil {
		t.Error("ParseString 应拒绝非法字符")
	}
	if p := FromUint64(FromString("2301").Uint64()); p.String() != "2301" {
		t.Errorf("Uint64 往返失败: %q", p)
	}
}

func TestParentChild(t *testing.T) {
	parent := FromString("012")
	for i := uint32(0); i < 4; i++ {
		child := parent.Child(i)
		if !parent.IsAncestorOf(child) {
			t.Errorf("%q 应是 %q 的祖先", parent, child)
		}
		if child.Parent() != parent {
			t.Errorf("Parent() = %q, 期望 %q", child.Parent(), parent)
		}
		if child.WhichChild() != i {
			t.Errorf("WhichChild() = %d, 期望 %d", child.WhichChild(), i)
		}
	}
	if FromString("").Parent() != FromString("") {
		t.Error("根节点的父节点应为自身")
	}
}

func TestConcatenateAndRelative(t *testing.T) {
	if got := FromString("01").Concatenate(FromString("23")).String(); got != "0123" {
		t.Errorf("Concatenate() = %q", got)
	}
	rel, err := RelativePath(FromString("01"), FromString("0123"))
	if err != nil {
		t.Fatalf("RelativePath() 错误: %v", err)
	}
	if rel.String() != "23" {
		t.Errorf("RelativePath() = %q, 期望 \"23\"", rel)
	}
	if _, err := RelativePath(FromString("12"), FromString("0123")); !errors.Is(err, ErrNotAncestor) {
		t.Errorf("非祖先应返回 ErrNotAncestor, 实际 %v", err)
	}
	if got := FromString("0123").Truncate(2).String(); got != "01" {
		t.Errorf("Truncate(2) = %q", got)
	}
}

func TestAdvancePreorder(t *testing.T) {
	p := FromString("")
	visited := []Path{p}
	for p.Advance(2) {
		visited = append(visited, p)
		if len(visited) > 100 {
			t.Fatal("Advance() 死循环")
		}
	}
	if len(visited) != 1+4+16 {
		t.Fatalf("遍历节点数 = %d, 期望 21", len(visited))
	}
	if !slices.IsSortedFunc(visited, Path.Compare) {
		t.Error("前序遍历结果应按 Compare 有序")
	}
}

func TestLessThan(t *testing.T) {
	tests := []struct {
		p1, p2   string
		expected bool
	}{
		{"0", "1", true},
		{"1", "0", false},
		{"01", "1", true},
		{"1", "01", false},
		{"0", "01", true},
		{"012", "013", true},
	}
	for _, tt := range tests {
		if got := FromString(tt.p1).LessThan(FromString(tt.p2)); got != tt.expected {
			t.Errorf("%q.LessThan(%q) = %v, 期望 %v", tt.p1, tt.p2, got, tt.expected)
		}
	}
}

func TestAsIndex(t *testing.T) {
	if got := FromString("23").AsIndex(2); got != 11 {
		t.Errorf("AsIndex(2) = %d, 期望 11", got)
	}
}

func TestMagnifyQuadAddr(t *testing.T) {
	cases := []struct {
		row, col uint32
		golden   [4][2]uint32
	}{
		{0, 0, [4][2]uint32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}},
		{1, 1, [4][2]uint32{{2, 2}, {2, 3}, {3, 2}, {3, 3}}},
		{3, 4, [4][2]uint32{{6, 8}, {6, 9}, {7, 8}, {7, 9}}},
	}
	for _, c := range cases {
		for quad := uint32(0); quad < 4; quad++ {
			r, col := MagnifyQuadAddr(c.row, c.col, quad)
			if r != c.golden[quad][0] || col != c.golden[quad][1] {
				t.Errorf("MagnifyQuadAddr(%d,%d,%d) = (%d,%d), 期望 %v", c.row, c.col, quad, r, col, c.golden[quad])
			}
		}
	}
}

func TestQuadToBufferOffset(t *testing.T) {
	cases := []struct {
		w, h   uint32
		golden [4]uint32
	}{
		{10, 30, [4]uint32{0, 5, 150, 155}},
		{30, 10, [4]uint32{0, 15, 150, 165}},
	}
	for _, c := range cases {
		for quad := uint32(0); quad < 4; quad++ {
			if got := QuadToBufferOffset(quad, c.w, c.h); got != c.golden[quad] {
				t.Errorf("QuadToBufferOffset(%d,%d,%d) = %d, 期望 %d", quad, c.w, c.h, got, c.golden[quad])
			}
		}
	}
}
