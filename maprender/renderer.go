package maprender

import (
	"image"

	"maptile-platform/logger"
)

// Renderer 把 CombinedTile 栅格化到 RasterTile。先画全部路径，再画全部标注，
// 保证路径不会压住标注。每个渲染 goroutine 持有一个 Renderer。
type Renderer struct {
	// Debug 为 true 时底色为 50% 灰
	Debug bool

	icons  *IconCache
	texts  map[textKey]*TextRenderer
	points map[*FeatureConfig]*PointRenderer
}

func NewRenderer(icons *IconCache, debug bool) *Renderer {
	if icons == nil {
		icons = NewIconCache()
	}
	return &Renderer{
		Debug:  debug,
		icons:  icons,
		texts:  make(map[textKey]*TextRenderer),
		points: make(map[*FeatureConfig]*PointRenderer),
	}
}

func (r *Renderer) text(style TextStyle, center bool) *TextRenderer {
	k := textKey{style, center}
	if t, ok := r.texts[k]; ok {
		return t
	}
	t := NewTextRenderer(style, center)
	r.texts[k] = t
	return t
}

// Process 返回是否画出了任何内容；false 表示瓦片为空
func (r *Renderer) Process(out *RasterTile, in *CombinedTile) bool {
	canvas := NewCanvas(out.Image)
	if out.ownsBuffer {
		canvas.Clear(r.Debug)
	}
	empty := true

	for _, sub := range in.SubLayers {
		for _, rule := range sub.DisplayRules {
			f := &rule.Feature
			for _, path := range f.Paths {
				switch f.Config.DisplayType {
				case DisplayLine:
					if r.renderLine(canvas, f.Config, path) {
						empty = false
					}
				case DisplayPolygon:
					if r.renderPolygon(canvas, f.Config, path) {
						empty = false
					}
				}
			}
		}
	}

	for _, sub := range in.SubLayers {
		for _, rule := range sub.DisplayRules {
			f := &rule.Feature
			if len(f.Labels) > 0 || len(f.Shields) > 0 {
				empty = false
			}
			for i := range f.Labels {
				r.renderFeatureLabel(canvas, &f.Config.Label, &f.Labels[i])
			}
			for i := range f.Shields {
				r.renderShield(canvas, &f.Config.Shield, &f.Shields[i])
			}

			site := &rule.Site
			if f.Config.DisplayType == DisplayIcon {
				if len(site.Labels) > 0 {
					empty = false
				}
				r.renderIconSites(canvas, f.Config, site)
				continue
			}
			for i := range site.Labels {
				l := &site.Labels[i]
				if !l.Visible {
					continue
				}
				empty = false
				r.text(site.Config.Label.TextStyle, true).DrawText(canvas, l.Text, l.Point.X, l.Point.Y)
			}
		}
	}
	return !empty
}

// renderLine 零宽度或全透明的线不画
func (r *Renderer) renderLine(c *Canvas, cfg *FeatureConfig, path *Path) bool {
	if cfg.StrokeWidth == 0 || cfg.StrokeColor.Transparent() {
		return false
	}
	c.StrokeContours(path.Contours, cfg.StrokeWidth, cfg.StrokeColor, false)
	return true
}

// renderPolygon 先填充再描边，只有不透明的部分计为已绘制
func (r *Renderer) renderPolygon(c *Canvas, cfg *FeatureConfig, path *Path) bool {
	drawn := false
	if cfg.PolygonDrawMode == FillAndOutline || cfg.PolygonDrawMode == FillOnly {
		if !cfg.FillColor.Transparent() {
			c.FillContours(path.Contours, cfg.FillColor)
			drawn = true
		}
	}
	if cfg.StrokeWidth == 0 || cfg.StrokeColor.Transparent() {
		return drawn
	}
	if cfg.PolygonDrawMode == FillAndOutline || cfg.PolygonDrawMode == OutlineOnly {
		c.StrokeContours(path.Contours, cfg.StrokeWidth, cfg.StrokeColor, false)
		drawn = true
	}
	return drawn
}

func (r *Renderer) renderFeatureLabel(c *Canvas, cfg *LabelConfig, l *FeatureLabel) {
	r.text(cfg.TextStyle, false).DrawTextOnPath(c, l.Text, l.Path, l.HorizOffset, l.VertOffset)
}

func (r *Renderer) renderShield(c *Canvas, cfg *ShieldConfig, s *FeatureShield) {
	tr := r.text(cfg.TextStyle, true)
	var icon image.Image
	bitmap := cfg.Style == ShieldIcon
	if bitmap {
		var err error
		icon, err = r.icons.Load(cfg.Icon)
		bitmap = err == nil
	}
	for i, pt := range s.Points {
		box := s.IconBounds[i]
		switch {
		case bitmap:
			c.DrawIcon(icon, box)
		case cfg.Style == ShieldBox:
			c.FillRect(box, cfg.FillColor)
			c.StrokeRect(box, 0, cfg.BoxColor)
		default:
			c.FillOval(box, cfg.FillColor)
			c.StrokeOval(box, 0, cfg.BoxColor)
		}
		tr.DrawText(c, s.Text, pt.X, pt.Y)
	}
}

func (r *Renderer) pointRenderer(cfg *FeatureConfig) *PointRenderer {
	if pr, ok := r.points[cfg]; ok {
		return pr
	}
	pr, err := NewPointRenderer(cfg, r.icons)
	if err != nil {
		logger.Warn("点符号无法绘制: %v", err)
	}
	r.points[cfg] = pr
	return pr
}

// renderIconSites 点符号加可选中心标注与外围标注
func (r *Renderer) renderIconSites(c *Canvas, cfg *FeatureConfig, site *Site) {
	pr := r.pointRenderer(cfg)
	if pr == nil {
		return
	}
	outline := r.text(site.Config.Label.TextStyle, true)
	for i := range site.Labels {
		l := &site.Labels[i]
		if cfg.PointLabel {
			pr.SetCenterLabel(l.Text)
		}
		pr.Render(c, l.Point)
		if site.Config.Label.HasOutlineLabel {
			off := GetTranslation(cfg.OutlineLabelSide, outline, l.OutlineText, pr.BoundingBox())
			pos := off.Add(l.Point)
			outline.DrawText(c, l.OutlineText, pos.X, pos.Y)
		}
	}
}
