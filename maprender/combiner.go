package maprender

import (
	"maptile-platform/logger"
	"maptile-platform/tilespace"
)

// Combiner 把各子图层的输入几何转换到瓦片像素坐标，并放置标注与盾标。
// 每个渲染 goroutine 持有一个 Combiner。
type Combiner struct {
	ts      tilespace.Tilespace
	labeler *LabelPaths
}

func NewCombiner(ts tilespace.Tilespace, params LabelParams, icons *IconCache) *Combiner {
	return &Combiner{
		ts:      ts,
		labeler: NewLabelPaths(int(ts.TileSize), params, icons),
	}
}

// Process out.Path 须由调用方设置；in 的顺序即子图层顺序
func (c *Combiner) Process(out *CombinedTile, in []*InLayer) bool {
	trans := NewTranslationContext(c.ts, out.Path)
	for _, layer := range in {
		out.SubLayers = append(out.SubLayers, c.convertSubLayer(trans, layer))
	}
	c.PlaceLabels(out, in)
	return true
}

func (c *Combiner) convertSubLayer(trans TranslationContext, in *InLayer) *SubLayer {
	sub := &SubLayer{DisplayRules: make([]*DisplayRule, 0, len(in.DisplayRules))}
	for _, d := range in.DisplayRules {
		sub.DisplayRules = append(sub.DisplayRules, c.convertDisplayRule(trans, d))
	}
	return sub
}

func (c *Combiner) convertDisplayRule(trans TranslationContext, in *InDisplayRule) *DisplayRule {
	d := &DisplayRule{Config: in.Config}
	d.Feature.Config = &in.Config.Feature
	d.Site.Config = &in.Config.Site

	d.Feature.Paths = make([]*Path, 0, len(in.Feature.Geometries))
	for _, g := range in.Feature.Geometries {
		if g.Multi {
			logger.Warn("多面要素不支持渲染，已跳过")
		}
		d.Feature.Paths = append(d.Feature.Paths, trans.PathFromGeometry(g))
	}

	// 标注或盾标在 PlaceLabels 中生成
	d.Site.Labels = make([]SiteLabel, 0, len(in.Site.Points))
	for i, v := range in.Site.Points {
		var rec Record
		if i < len(in.Site.Records) {
			rec = in.Site.Records[i]
		}
		d.Site.Labels = append(d.Site.Labels, SiteLabel{
			Text:        rec.Label,
			OutlineText: rec.OutlineLabel,
			Point:       trans.TranslatePoint(v),
		})
	}
	return d
}

// PlaceLabels 依次处理各显示规则。点位标注与路径标注（线标注、盾标）分别登记包围盒，
// 互不避让。
func (c *Combiner) PlaceLabels(out *CombinedTile, in []*InLayer) {
	siteBounds := make(map[string]Rect)
	var pathBounds []Rect
	level := out.Path.Level()

	for s, sub := range out.SubLayers {
		for d, rule := range sub.DisplayRules {
			inRule := in[s].DisplayRules[d]
			fc := &inRule.Config.Feature
			sc := &inRule.Config.Site
			feature := &rule.Feature
			site := &rule.Site

			switch {
			case fc.DisplayType == DisplayIcon:
				// 图标总是绘制，不做避让
				for i := range site.Labels {
					site.Labels[i].Visible = true
				}
			case fc.DisplayType == DisplayPolygon && sc.Label.DisplayAll:
				// 全部显示模式：只压掉与同名标注重叠的
				for i := range site.Labels {
					c.labeler.CheckSiteVisibility(sc, &site.Labels[i], siteBounds, true)
				}
			default:
				for i := range site.Labels {
					c.labeler.CheckSiteVisibility(sc, &site.Labels[i], siteBounds, false)
				}
			}

			for p, path := range feature.Paths {
				if p >= len(inRule.Feature.Records) || inRule.Feature.Records[p] == nil {
					continue
				}
				rec := inRule.Feature.Records[p]
				if fc.Label.EnabledForLevel(level) {
					feature.Labels, pathBounds = c.labeler.AddPathLabels(fc, rec.Label, path, feature.Labels, pathBounds)
				}
				if fc.Shield.EnabledForLevel(level) {
					feature.Shields, pathBounds = c.labeler.AddPathShields(fc, rec.Shield, path, feature.Shields, pathBounds)
				}
			}
		}
	}
}
