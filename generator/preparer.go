package generator

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"maptile-platform/config"
	"maptile-platform/geom"
	"maptile-platform/maprender"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

// PreparedTile 一个子图层在某个超级瓦片上的渲染输入
type PreparedTile struct {
	Path  quadtree.Path
	Layer *maprender.InLayer
}

// Preparer 按选择器给出的顺序把要素裁剪到超级瓦片并转换为渲染输入
type Preparer struct {
	sel   *Selector
	ts    tilespace.Tilespace
	out   chan *PreparedTile
	rules []*config.DisplayRuleConfig
}

// NewPreparer queueSize 为输出通道容量，决定预处理可以领先合并循环多少个瓦片
func NewPreparer(sel *Selector, ts tilespace.Tilespace, queueSize int) *Preparer {
	return &Preparer{
		sel:   sel,
		ts:    ts,
		out:   make(chan *PreparedTile, queueSize),
		rules: sel.Rules(),
	}
}

// Output 按四叉树路径有序，Run 结束后关闭
func (p *Preparer) Output() <-chan *PreparedTile { return p.out }

func (p *Preparer) Run(ctx context.Context) error {
	defer close(p.out)
	for _, t := range p.sel.Tiles() {
		prepared, err := p.prepare(t)
		if err != nil {
			return fmt.Errorf("子图层 %s 瓦片 %s: %w", p.sel.Name(), t.Path, err)
		}
		select {
		case p.out <- prepared:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// superTileBound 超级瓦片的归一化范围，四周按 superTileOversize 的一半外扩
func superTileBound(ts tilespace.Tilespace, path quadtree.Path) orb.Bound {
	level, row, col := path.LevelRowCol()
	var b orb.Bound
	if proj := ts.MercatorProjection(); proj != nil {
		size := int64(ts.TileSize)
		sw := proj.FromPixelToLatLng(tilespace.PixelPoint{X: int64(col) * size, Y: int64(row) * size}, level)
		ne := proj.FromPixelToLatLng(tilespace.PixelPoint{X: int64(col+1) * size, Y: int64(row+1) * size}, level)
		b = orb.Bound{
			Min: orb.Point{tilespace.Normalize(sw.Lng), tilespace.Normalize(sw.Lat)},
			Max: orb.Point{tilespace.Normalize(ne.Lng), tilespace.Normalize(ne.Lat)},
		}
	} else {
		e := tilespace.NewTileAddr(level, row, col).NormExtents(ts)
		b = orb.Bound{Min: orb.Point{e.West(), e.South()}, Max: orb.Point{e.East(), e.North()}}
	}
	return b.Pad((b.Max[0] - b.Min[0]) * superTileOversize / 2)
}

func (p *Preparer) prepare(t SelectedTile) (*PreparedTile, error) {
	box := superTileBound(p.ts, t.Path)
	layer := &maprender.InLayer{DisplayRules: make([]*maprender.InDisplayRule, len(p.rules))}
	for i, rule := range p.rules {
		in := &maprender.InDisplayRule{Config: &rule.DisplayRuleConfig}
		layer.DisplayRules[i] = in
		if i >= len(t.Rules) {
			continue
		}
		for _, idx := range t.Rules[i] {
			if err := p.prepareFeature(in, rule, p.sel.Source().feature(idx), box); err != nil {
				return nil, err
			}
		}
	}
	return &PreparedTile{Path: t.Path, Layer: layer}, nil
}

func featureRecord(rule *config.DisplayRuleConfig, f *sourceFeature) *maprender.Record {
	if rule.LabelField == "" && rule.ShieldField == "" {
		return nil
	}
	return &maprender.Record{
		Label:  propString(f.props, rule.LabelField),
		Shield: propString(f.props, rule.ShieldField),
	}
}

func siteRecord(rule *config.DisplayRuleConfig, f *sourceFeature) maprender.Record {
	return maprender.Record{
		Label:        propString(f.props, rule.LabelField),
		OutlineLabel: propString(f.props, rule.OutlineLabelField),
	}
}

func (p *Preparer) prepareFeature(in *maprender.InDisplayRule, rule *config.DisplayRuleConfig,
	f *sourceFeature, box orb.Bound) error {
	switch rule.Feature.DisplayType {
	case maprender.DisplayPoint, maprender.DisplayIcon:
		addSites(in, siteRecord(rule, f), f.geom, box)
		return nil
	case maprender.DisplayLine:
		clipped := clip.Geometry(box, orb.Clone(f.geom))
		rec := featureRecord(rule, f)
		for _, line := range lineParts(clipped) {
			in.Feature.Geometries = append(in.Feature.Geometries, maprender.Geometry{Parts: [][]geom.Vertex{line}})
			in.Feature.Records = append(in.Feature.Records, rec)
		}
		return nil
	case maprender.DisplayPolygon:
		clipped := clip.Geometry(box, orb.Clone(f.geom))
		rec := featureRecord(rule, f)
		for _, g := range polygonParts(clipped) {
			in.Feature.Geometries = append(in.Feature.Geometries, g)
			in.Feature.Records = append(in.Feature.Records, rec)
		}
		// 面标注放在未裁剪几何的中心，保证相邻瓦片位置一致
		if rule.Site.Label.Enabled && len(polygonParts(f.geom)) > 0 {
			addSites(in, siteRecord(rule, f), f.geom, box)
		}
		return nil
	}
	return fmt.Errorf("显示规则 %s: 不支持的显示类型 %v", rule.Name, rule.Feature.DisplayType)
}

// addSites 点与多点逐个加入，其余几何取面积中心
func addSites(in *maprender.InDisplayRule, rec maprender.Record, g orb.Geometry, box orb.Bound) {
	add := func(pt orb.Point) {
		if box.Contains(pt) {
			in.Site.Points = append(in.Site.Points, geom.Vertex{X: pt[0], Y: pt[1]})
			in.Site.Records = append(in.Site.Records, rec)
		}
	}
	switch v := g.(type) {
	case orb.Point:
		add(v)
	case orb.MultiPoint:
		for _, pt := range v {
			add(pt)
		}
	default:
		if g == nil {
			return
		}
		c, _ := planar.CentroidArea(g)
		add(c)
	}
}

func toVertices(pts []orb.Point) []geom.Vertex {
	out := make([]geom.Vertex, len(pts))
	for i, pt := range pts {
		out[i] = geom.Vertex{X: pt[0], Y: pt[1]}
	}
	return out
}

// lineParts 线按折线输出，面的每个环也当作折线
func lineParts(g orb.Geometry) [][]geom.Vertex {
	var out [][]geom.Vertex
	addLine := func(ls []orb.Point) {
		if len(ls) >= 2 {
			out = append(out, toVertices(ls))
		}
	}
	switch v := g.(type) {
	case orb.LineString:
		addLine(v)
	case orb.MultiLineString:
		for _, ls := range v {
			addLine(ls)
		}
	case orb.Ring:
		addLine(v)
	case orb.Polygon:
		for _, r := range v {
			addLine(r)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			for _, r := range poly {
				addLine(r)
			}
		}
	case orb.Collection:
		for _, c := range v {
			out = append(out, lineParts(c)...)
		}
	}
	return out
}

// polygonParts 多面拆成单面；集合中混入的多面保留 Multi 标记，由渲染端跳过
func polygonParts(g orb.Geometry) []maprender.Geometry {
	var out []maprender.Geometry
	addPolygon := func(poly orb.Polygon) {
		var parts [][]geom.Vertex
		for _, r := range poly {
			if len(r) >= 3 {
				parts = append(parts, toVertices(r))
			}
		}
		if len(parts) > 0 {
			out = append(out, maprender.Geometry{Parts: parts})
		}
	}
	switch v := g.(type) {
	case orb.Ring:
		addPolygon(orb.Polygon{v})
	case orb.Polygon:
		addPolygon(v)
	case orb.MultiPolygon:
		for _, poly := range v {
			addPolygon(poly)
		}
	case orb.Collection:
		for _, c := range v {
			if _, multi := c.(orb.MultiPolygon); multi {
				out = append(out, maprender.Geometry{Multi: true})
				continue
			}
			out = append(out, polygonParts(c)...)
		}
	}
	return out
}
