package maprender

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func polygonTile(fc FeatureConfig) *CombinedTile {
	cfg := &DisplayRuleConfig{Name: "area", Feature: fc}
	square := &Path{Contours: [][]Point{{{8, 8}, {24, 8}, {24, 24}, {8, 24}, {8, 8}}}}
	rule := &DisplayRule{
		Config:  cfg,
		Feature: Feature{Config: &cfg.Feature, Paths: []*Path{square}},
		Site:    Site{Config: &cfg.Site},
	}
	return &CombinedTile{SubLayers: []*SubLayer{{DisplayRules: []*DisplayRule{rule}}}}
}

func allZero(pix []byte) bool {
	for _, b := range pix {
		if b != 0 {
			return false
		}
	}
	return true
}

func TestRendererEmptyTile(t *testing.T) {
	tile := NewRasterTile(32)
	for i := range tile.Image.Pix {
		tile.Image.Pix[i] = 7
	}
	r := NewRenderer(nil, false)
	assert.False(t, r.Process(tile, &CombinedTile{}))
	assert.True(t, allZero(tile.Image.Pix), "自有缓冲区先清空")

	debug := NewRenderer(nil, true)
	assert.False(t, debug.Process(tile, &CombinedTile{}))
	assert.Equal(t, color.RGBA{128, 128, 128, 128}, tile.Image.RGBAAt(1, 1))
}

func TestRendererBorrowedBuffer(t *testing.T) {
	_, err := NewRasterTileWithBuffer(32, make([]byte, 10))
	assert.Error(t, err)

	buf := make([]byte, 32*32*4)
	for i := range buf {
		buf[i] = 9
	}
	tile, err := NewRasterTileWithBuffer(32, buf)
	require.NoError(t, err)
	assert.False(t, tile.OwnsBuffer())
	assert.Equal(t, 32, tile.Size())

	assert.False(t, NewRenderer(nil, false).Process(tile, &CombinedTile{}))
	assert.Equal(t, byte(9), buf[0], "借用的缓冲区不清空")
}

func TestRendererPolygon(t *testing.T) {
	r := NewRenderer(nil, false)

	tile := NewRasterTile(32)
	transparent := FeatureConfig{DisplayType: DisplayPolygon, FillColor: Color{R: 255}, StrokeColor: blue}
	assert.False(t, r.Process(tile, polygonTile(transparent)), "透明填充且无描边宽度")
	assert.True(t, allZero(tile.Image.Pix))

	tile = NewRasterTile(32)
	opaque := FeatureConfig{DisplayType: DisplayPolygon, FillColor: red, StrokeColor: blue, StrokeWidth: 2}
	assert.True(t, r.Process(tile, polygonTile(opaque)))
	assertOpaque(t, tile.Image, 16, 16, red)
	assertOpaque(t, tile.Image, 8, 16, blue)

	tile = NewRasterTile(32)
	outline := FeatureConfig{DisplayType: DisplayPolygon, PolygonDrawMode: OutlineOnly, FillColor: red, StrokeColor: blue, StrokeWidth: 2}
	assert.True(t, r.Process(tile, polygonTile(outline)))
	assert.Equal(t, uint8(0), tile.Image.RGBAAt(16, 16).A)
}

func TestRendererLine(t *testing.T) {
	r := NewRenderer(nil, false)
	tile := NewRasterTile(32)
	line := FeatureConfig{DisplayType: DisplayLine, StrokeColor: blue, StrokeWidth: 4}
	assert.True(t, r.Process(tile, polygonTile(line)))
	assertOpaque(t, tile.Image, 16, 8, blue)
	assert.Equal(t, uint8(0), tile.Image.RGBAAt(16, 16).A, "线不填充")

	tile = NewRasterTile(32)
	line.StrokeWidth = 0
	assert.False(t, r.Process(tile, polygonTile(line)))
}

func TestRendererSiteLabels(t *testing.T) {
	r := NewRenderer(nil, false)
	ct := polygonTile(FeatureConfig{DisplayType: DisplayPoint})
	ct.SubLayers[0].DisplayRules[0].Config.Site.Label.TextStyle = TextStyle{Size: 14, Color: Color{A: 255}}
	site := &ct.SubLayers[0].DisplayRules[0].Site
	site.Labels = []SiteLabel{{Text: "Hidden", Point: Point{16, 16}}}

	tile := NewRasterTile(32)
	assert.False(t, r.Process(tile, ct))

	site.Labels[0].Visible = true
	tile = NewRasterTile(32)
	assert.True(t, r.Process(tile, ct))
	assert.False(t, allZero(tile.Image.Pix))
}

func TestRendererIconSites(t *testing.T) {
	r := NewRenderer(nil, false)
	fc := FeatureConfig{DisplayType: DisplayIcon, PointMarker: MarkerSquare, PointWidth: 6, PolygonDrawMode: FillOnly, FillColor: red}
	ct := polygonTile(fc)
	rule := ct.SubLayers[0].DisplayRules[0]
	rule.Feature.Paths = nil
	rule.Site.Labels = []SiteLabel{{Point: Point{10, 10}, Visible: true}, {Point: Point{20, 20}, Visible: true}}

	tile := NewRasterTile(32)
	assert.True(t, r.Process(tile, ct))
	assertOpaque(t, tile.Image, 10, 10, red)
	assertOpaque(t, tile.Image, 20, 20, red)
}

func TestCombineAndRender(t *testing.T) {
	layer := lineLayer(LevelRange{Enabled: true, MaxLevel: 10}, &Record{Label: "Main St"})
	ct := combine(t, layer)
	tile := NewRasterTile(256)
	tile.Path = ct.Path
	assert.True(t, NewRenderer(nil, false).Process(tile, ct))
	assertOpaque(t, tile.Image, 40, 127, blue)
}
