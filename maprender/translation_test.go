package maprender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maptile-platform/geom"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

func TestTranslateFlat(t *testing.T) {
	trans := NewTranslationContext(tilespace.ClientMapFlat, quadtree.New(1, 0, 0))
	tests := []struct {
		in   geom.Vertex
		want Point
	}{
		{geom.Vertex{X: 0.25, Y: 0.25}, Point{128, 128}},
		{geom.Vertex{X: 0, Y: 0.5}, Point{0, 0}},
		{geom.Vertex{X: 0.5, Y: 0}, Point{256, 256}},
	}
	for _, tt := range tests {
		got := trans.TranslatePoint(tt.in)
		assert.InDelta(t, tt.want.X, got.X, 1e-9, "%v", tt.in)
		assert.InDelta(t, tt.want.Y, got.Y, 1e-9, "%v", tt.in)
	}
}

func TestTranslateMercator(t *testing.T) {
	center := geom.Vertex{X: 0.5, Y: 0.5}

	lowerLeft := NewTranslationContext(tilespace.ClientMapMercator, quadtree.New(1, 0, 0))
	assert.Equal(t, Point{256, 0}, lowerLeft.TranslatePoint(center), "赤道与本初子午线交点位于左下瓦片右上角")

	upperRight := NewTranslationContext(tilespace.ClientMapMercator, quadtree.New(1, 1, 1))
	assert.Equal(t, Point{0, 256}, upperRight.TranslatePoint(center))

	north := geom.Vertex{X: 0.5, Y: tilespace.Normalize(tilespace.MaxLatitude)}
	assert.Equal(t, Point{0, 0}, upperRight.TranslatePoint(north))

	// 带拉伸投影的超级瓦片空间
	super := NewTranslationContext(tilespace.FusionMapMercator, quadtree.New(1, 0, 0))
	assert.Equal(t, Point{256, 2048 - 256}, super.TranslatePoint(center))
}

func TestPathFromGeometry(t *testing.T) {
	trans := NewTranslationContext(tilespace.ClientMapFlat, quadtree.New(1, 0, 0))
	g := Geometry{Parts: [][]geom.Vertex{
		{{X: 0, Y: 0.5}, {X: 0.25, Y: 0.25}},
		{},
		{{X: 0.5, Y: 0}},
	}}
	p := trans.PathFromGeometry(g)
	require.Len(t, p.Contours, 2)
	assert.Len(t, p.Contours[0], 2)
	assert.Equal(t, 3, len(p.Points()))

	multi := trans.PathFromGeometry(Geometry{Parts: g.Parts, Multi: true})
	assert.True(t, multi.Empty())
}

func TestGetTranslation(t *testing.T) {
	tr := NewTextRenderer(TextStyle{Size: 12}, true)
	marker := Rect{-5, -5, 5, 5}
	length, above, below := tr.MeasureText("Label")

	right := GetTranslation(SideRight, tr, "Label", marker)
	assert.InDelta(t, 6+length/2+2, right.X, 1e-9)
	assert.InDelta(t, -(above+below)/2, right.Y, 1e-9)

	left := GetTranslation(SideLeft, tr, "Label", marker)
	assert.InDelta(t, -right.X, left.X, 1e-9)

	top := GetTranslation(SideTop, tr, "Label", marker)
	bottom := GetTranslation(SideBottom, tr, "Label", marker)
	assert.Equal(t, 0.0, top.X)
	assert.InDelta(t, -6-below, top.Y, 1e-9)
	assert.InDelta(t, 6-above, bottom.Y, 1e-9)
	assert.Less(t, top.Y, bottom.Y)

	tl := GetTranslation(SideTopLeft, tr, "Label", marker)
	br := GetTranslation(SideBottomRight, tr, "Label", marker)
	assert.Equal(t, left.X, tl.X)
	assert.Equal(t, top.Y, tl.Y)
	assert.Equal(t, right.X, br.X)
	assert.Equal(t, bottom.Y, br.Y)

	assert.Equal(t, Point{}, GetTranslation(SideNone, tr, "Label", marker))
}
