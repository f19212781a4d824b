package maprender

import (
	"image"
	"math"
)

const (
	// DefaultSmoothAngleLimit 相邻线段夹角超过该值（度）即视为拐点
	DefaultSmoothAngleLimit = 20.0
	DefaultLabelSpacingGoal = 2.0
	// DefaultShieldSpacingGoal 每个瓦片宽度上期望的盾标个数
	DefaultShieldSpacingGoal = 5.0
	// TextLengthSlack 文字长度放宽系数，避免截断
	TextLengthSlack = 1.025
)

// LabelParams 标注放置参数
type LabelParams struct {
	SmoothAngleLimit  float64
	LabelSpacingGoal  float64
	ShieldSpacingGoal float64
}

func DefaultLabelParams() LabelParams {
	return LabelParams{
		SmoothAngleLimit:  DefaultSmoothAngleLimit,
		LabelSpacingGoal:  DefaultLabelSpacingGoal,
		ShieldSpacingGoal: DefaultShieldSpacingGoal,
	}
}

type labelText struct {
	text       string
	path       *Path
	length     float64
	above      float64
	below      float64
	vertOffset float64
}

// labelPoints 正向或反向访问路径点与累计距离
type labelPoints struct {
	pts      []Point
	dist     []float64
	reversed bool
}

func (l labelPoints) point(i int) Point {
	if l.reversed {
		return l.pts[len(l.pts)-1-i]
	}
	return l.pts[i]
}

func (l labelPoints) distance(i int) float64 {
	if l.reversed {
		return l.dist[len(l.dist)-1] - l.dist[len(l.dist)-1-i]
	}
	return l.dist[i]
}

// LabelPaths 沿路径放置标注与盾标。持有复用的点缓冲区，非并发安全。
type LabelPaths struct {
	params      LabelParams
	areaBounds  Rect
	smoothCos   float64
	icons       *IconCache
	points      []Point
	pointDist   []float64
	textByStyle map[textKey]*TextRenderer
}

type textKey struct {
	style  TextStyle
	center bool
}

// NewLabelPaths tileSize 为瓦片边长，整块瓦片即可放置区域
func NewLabelPaths(tileSize int, params LabelParams, icons *IconCache) *LabelPaths {
	if icons == nil {
		icons = NewIconCache()
	}
	return &LabelPaths{
		params:      params,
		areaBounds:  Rect{0, 0, float64(tileSize), float64(tileSize)},
		smoothCos:   math.Cos(params.SmoothAngleLimit * math.Pi / 180),
		icons:       icons,
		textByStyle: make(map[textKey]*TextRenderer),
	}
}

func (lp *LabelPaths) text(style TextStyle, center bool) *TextRenderer {
	k := textKey{style, center}
	if t, ok := lp.textByStyle[k]; ok {
		return t
	}
	t := NewTextRenderer(style, center)
	lp.textByStyle[k] = t
	return t
}

// checkBounds r 与已放置的任一包围盒都不相交
func checkBounds(r Rect, placed []Rect) bool {
	for _, b := range placed {
		if r.Intersects(b) {
			return false
		}
	}
	return true
}

// AddPathLabels 在路径平滑的部分放置标注，结果追加到 labels，占用区域追加到 bounds
func (lp *LabelPaths) AddPathLabels(cfg *FeatureConfig, text string, path *Path,
	labels []FeatureLabel, bounds []Rect) ([]FeatureLabel, []Rect) {
	tr := lp.text(cfg.Label.TextStyle, false)
	info := labelText{text: text, path: path}
	info.length, info.above, info.below = tr.MeasureText(text)
	info.length *= TextLengthSlack

	// 基线下移，使文字竖直方向居中于路径
	info.vertOffset = -0.333 * info.above
	info.below += info.vertOffset
	info.above += info.vertOffset

	lp.points = append(lp.points[:0], path.Points()...)
	if len(lp.points) < 2 {
		return labels, bounds
	}
	if cap(lp.pointDist) < len(lp.points) {
		lp.pointDist = make([]float64, len(lp.points))
	}
	lp.pointDist = lp.pointDist[:len(lp.points)]
	return lp.subdividePath(&info, labels, bounds)
}

type span struct{ start, stop int }

// subdividePath 找出不含急转的子路径，并在间隔足够的子路径上放置标注
func (lp *LabelPaths) subdividePath(info *labelText, labels []FeatureLabel, bounds []Rect) ([]FeatureLabel, []Rect) {
	pts, dist := lp.points, lp.pointDist
	if len(pts) < 2 || info.length == 0 {
		return labels, bounds
	}
	spacing := lp.areaBounds.Right / lp.params.LabelSpacingGoal

	var smooth []span
	start := 0
	lastDir := pts[1].Sub(pts[0])
	dist[0] = 0
	dist[1] = lastDir.Length()
	lastDir, _ = lastDir.Normalize()

	for i := 2; i < len(pts); i++ {
		dir := pts[i].Sub(pts[i-1])
		segLen := dir.Length()
		dist[i] = dist[i-1] + segLen
		dir, _ = dir.Normalize()

		cosine := lastDir.Dot(dir)
		subLen := dist[i-1] - dist[start]
		if segLen > 0 && cosine < lp.smoothCos {
			if subLen >= info.length {
				smooth = append(smooth, span{start, i - 1})
			}
			start = i - 1
		}
		lastDir = dir
	}
	// 最后一段按首尾直线距离判断
	if pts[len(pts)-1].Sub(pts[start]).Length() >= info.length {
		smooth = append(smooth, span{start, len(pts) - 1})
	}
	if len(smooth) == 0 {
		return labels, bounds
	}

	labeled := false
	last := -1
	var ok bool
	// 最后一段子路径仅在整条路径都没有标注时使用，避免两个标注挨得太近
	for p := 0; p < len(smooth)-1; p++ {
		if last == -1 || dist[smooth[p].start]-dist[smooth[last].start] > spacing {
			labels, bounds, ok = lp.labelSubdivision(info, labels, bounds, smooth[p].start, smooth[p].stop)
			if ok {
				labeled = true
				last = p
			}
		}
	}
	if !labeled {
		s := smooth[len(smooth)-1]
		labels, bounds, _ = lp.labelSubdivision(info, labels, bounds, s.start, s.stop)
	}
	return labels, bounds
}

// labelSubdivision 在 [start, stop] 子路径中部放置标注，方向取从左到右可读的一侧
func (lp *LabelPaths) labelSubdivision(info *labelText, labels []FeatureLabel, bounds []Rect,
	start, stop int) ([]FeatureLabel, []Rect, bool) {
	pts, dist := lp.points, lp.pointDist
	subLen := dist[stop] - dist[start]
	if subLen < info.length {
		return labels, bounds, false
	}

	label := FeatureLabel{
		Text:        info.text,
		HorizOffset: 0.5 * (subLen - info.length),
		VertOffset:  info.vertOffset,
	}
	var lb Rect
	if pts[stop].X >= pts[start].X {
		lb = lp.buildLabelSubPath(&label, info, start, stop, labelPoints{pts: pts, dist: dist})
	} else {
		n := len(pts)
		lb = lp.buildLabelSubPath(&label, info, n-stop-1, n-start-1,
			labelPoints{pts: pts, dist: dist, reversed: true})
	}

	// 标注必须完整落在瓦片内，相邻瓦片之间不协调跨边界的部分绘制
	if label.Path != nil && lp.areaBounds.Contains(lb) && checkBounds(lb, bounds) {
		return append(labels, label), append(bounds, lb), true
	}
	return labels, bounds, false
}

// buildLabelSubPath 生成标注基线子路径，并计算其轴对齐包围盒
func (lp *LabelPaths) buildLabelSubPath(label *FeatureLabel, info *labelText, start, stop int, lpts labelPoints) Rect {
	offset := lpts.distance(start) + label.HorizOffset
	label.HorizOffset = 0
	remaining := info.length

	seg := start
	for seg < stop && offset >= lpts.distance(seg+1) {
		seg++
	}

	var bounds Rect
	var end Point
	for remaining > 0 && seg < stop {
		dir, ok := lpts.point(seg + 1).Sub(lpts.point(seg)).Normalize()
		if ok {
			aboveVec := Point{-dir.Y * info.above, dir.X * info.above}
			belowVec := Point{-dir.Y * info.below, dir.X * info.below}

			inSeg := offset - lpts.distance(seg)
			anchor := lpts.point(seg)
			if inSeg > 0 {
				anchor = anchor.Add(dir.Scale(inSeg))
			}
			topLeft := anchor.Add(aboveVec)
			bottomLeft := anchor.Add(belowVec)

			if label.Path != nil {
				label.Path.LineTo(anchor)
				bounds.Extend(topLeft)
			} else {
				label.Path = &Path{}
				label.Path.MoveTo(anchor)
				bounds = Rect{topLeft.X, topLeft.Y, topLeft.X, topLeft.Y}
			}
			bounds.Extend(bottomLeft)

			full := lpts.distance(seg+1) - lpts.distance(seg)
			textLen := math.Min(remaining, full-inSeg)
			textVec := dir.Scale(textLen)
			bounds.Extend(topLeft.Add(textVec))
			bounds.Extend(bottomLeft.Add(textVec))

			remaining -= textLen
			offset += textLen
			end = anchor.Add(textVec)
		}
		seg++
	}
	if label.Path != nil {
		label.Path.LineTo(end)
	}
	return bounds
}

// AddPathShields 沿路径等间距放置盾标，结果追加到 shields
func (lp *LabelPaths) AddPathShields(cfg *FeatureConfig, text string, path *Path,
	shields []FeatureShield, bounds []Rect) ([]FeatureShield, []Rect) {
	sc := &cfg.Shield
	tr := lp.text(sc.TextStyle, true)
	info := labelText{text: text, path: path}
	info.length, info.above, info.below = tr.MeasureText(text)
	if info.length == 0 {
		return shields, bounds
	}

	var icon image.Image
	bitmap := sc.Style == ShieldIcon
	if bitmap {
		var err error
		icon, err = lp.icons.Load(sc.Icon)
		bitmap = err == nil
	}
	if !bitmap {
		info.length *= TextLengthSlack
	}

	rel, relIcon := ShieldBounds(sc, info.length, info.above, info.below, icon)
	return lp.placeShields(&info, rel, relIcon, shields, bounds)
}

// ShieldBounds 盾标整体与图标部分相对盾标中心的包围盒（垂直居中不计下伸部分）。
// icon 为 nil 时按纯色框计算。
func ShieldBounds(sc *ShieldConfig, length, above, below float64, icon image.Image) (shield, iconBox Rect) {
	outline := sc.TextStyle.OutlineThickness
	textHeight := math.Abs(above - below - 2*outline)
	textWidth := math.Abs(length + 2*outline)

	var iconW, iconH float64
	if icon != nil {
		iconW = float64(icon.Bounds().Dx())
		iconH = float64(icon.Bounds().Dy())
	}
	scaleX := func() float64 { return textWidth / (iconW - sc.LeftMargin - sc.RightMargin) }
	scaleY := func() float64 { return textHeight / (iconH/3 - sc.TopMargin - sc.BottomMargin) }

	switch {
	case icon != nil && sc.Scaling == IconFixedSize:
		// 高度适配文字，宽度保持图标比例，文字可能横向超出图标
		sx, sy := scaleX(), scaleY()
		iconBox.Top = 0.5*above - outline - sc.TopMargin*sy
		iconBox.Bottom = -0.5*above + below + outline + sc.BottomMargin*sy
		iconBox.Left = -0.5*iconW*sy - sc.LeftMargin*sy/sx
		iconBox.Right = 0.5*iconW*sy + sc.RightMargin*sy/sx
		shield = iconBox
		shield.Left = math.Min(-0.5*length-outline, iconBox.Left)
		shield.Right = math.Max(0.5*length+outline, iconBox.Right)

	case icon != nil && sc.Scaling == IconFixedAspect:
		// 保持比例，放大到文字完全落在图标内
		sx, sy := scaleX(), scaleY()
		if sx > sy {
			iconBox.Right = 0.5*length + outline + sc.RightMargin*sx
			iconBox.Left = -0.5*length - outline - sc.LeftMargin*sx
			iconBox.Top = (0.5*above - outline - sc.TopMargin*sy) * sx / sy
			iconBox.Bottom = (-0.5*above + below + outline + sc.BottomMargin*sy) * sx / sy
		} else {
			iconBox.Right = (0.5*length + outline + sc.RightMargin*sx) * sy / sx
			iconBox.Left = (-0.5*length - outline - sc.LeftMargin*sx) * sy / sx
			iconBox.Top = 0.5*above - outline - sc.TopMargin*sy
			iconBox.Bottom = -0.5*above + below + outline + sc.BottomMargin*sy
		}
		shield = iconBox

	default:
		// 宽高自由适配
		var sx, sy float64
		if icon != nil {
			sx, sy = scaleX(), scaleY()
		}
		iconBox.Left = -0.5*length - outline - sc.LeftMargin*sx
		iconBox.Right = 0.5*length + outline + sc.RightMargin*sx
		iconBox.Top = 0.5*above - outline - sc.TopMargin*sy
		iconBox.Bottom = -0.5*above + below + outline + sc.BottomMargin*sy
		shield = iconBox
	}
	return shield, iconBox
}

// placeShields 沿路径放置盾标；某位置放不下时以 1/4 间距前移重试
func (lp *LabelPaths) placeShields(info *labelText, rel, relIcon Rect,
	shields []FeatureShield, bounds []Rect) ([]FeatureShield, []Rect) {
	if lp.params.ShieldSpacingGoal < 1 {
		return shields, bounds
	}
	spacing := lp.areaBounds.Right / lp.params.ShieldSpacingGoal

	m := NewPathMeasure(info.path)
	length := m.Length()
	offset := 0.5 * length
	if spacing <= length {
		offset = 0.5 * spacing
	}

	fs := FeatureShield{Text: info.text}
	for offset < length {
		drawn := false
		if loc, _, ok := m.PosTan(offset); ok {
			sb := rel.Offset(loc.X, loc.Y)
			ib := relIcon.Offset(loc.X, loc.Y)
			loc.Y -= 0.5 * info.above
			// 盾标必须完整落在瓦片内
			if lp.areaBounds.Contains(sb) && checkBounds(sb, bounds) {
				fs.Points = append(fs.Points, loc)
				fs.Bounds = append(fs.Bounds, sb)
				fs.IconBounds = append(fs.IconBounds, ib)
				bounds = append(bounds, sb)
				drawn = true
			}
		}
		if drawn {
			offset += spacing
		} else {
			offset += 0.25 * spacing
		}
	}
	if len(fs.Points) > 0 {
		shields = append(shields, fs)
	}
	return shields, bounds
}

// SiteLabelBounds 点位标注的包围盒，无文字时为空矩形
func (lp *LabelPaths) SiteLabelBounds(cfg *SiteConfig, label *SiteLabel) Rect {
	length, above, below := lp.text(cfg.Label.TextStyle, true).MeasureText(label.Text)
	if length == 0 {
		return Rect{}
	}
	length *= TextLengthSlack
	r := Rect{Left: -0.5 * length, Top: above, Right: 0.5 * length, Bottom: below}
	return r.Offset(label.Point.X, label.Point.Y)
}

// CheckSiteVisibility 计算点位标注是否可见，可见时登记其包围盒（同名文字只保留最后一个）。
// checkIdentical 为 true 时只与同名文字的标注比较。
func (lp *LabelPaths) CheckSiteVisibility(cfg *SiteConfig, label *SiteLabel, placed map[string]Rect, checkIdentical bool) {
	lb := lp.SiteLabelBounds(cfg, label)
	if lb.IsEmpty() {
		label.Visible = false
		return
	}
	var ok bool
	if checkIdentical {
		prev, found := placed[label.Text]
		ok = !found || !lb.Intersects(prev)
	} else {
		ok = true
		for _, b := range placed {
			if lb.Intersects(b) {
				ok = false
				break
			}
		}
	}
	if ok {
		placed[label.Text] = lb
	}
	label.Visible = ok
}
