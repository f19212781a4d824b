// Package maprender 把预处理好的矢量几何转换为瓦片像素坐标，放置标注与盾标，
// 并栅格化为 RGBA 瓦片。
package maprender

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DisplayType 要素显示类型
type DisplayType int

const (
	DisplayPoint DisplayType = iota
	DisplayLine
	DisplayPolygon
	DisplayIcon
)

var displayTypeNames = map[string]DisplayType{
	"point": DisplayPoint, "line": DisplayLine, "polygon": DisplayPolygon, "icon": DisplayIcon,
}

func (d DisplayType) String() string {
	for k, v := range displayTypeNames {
		if v == d {
			return k
		}
	}
	return fmt.Sprintf("DisplayType(%d)", int(d))
}

func (d *DisplayType) UnmarshalText(b []byte) error {
	return parseEnum(b, displayTypeNames, d, "显示类型")
}

// PolygonDrawMode 面要素绘制方式
type PolygonDrawMode int

const (
	FillAndOutline PolygonDrawMode = iota
	OutlineOnly
	FillOnly
)

var drawModeNames = map[string]PolygonDrawMode{
	"fill_and_outline": FillAndOutline, "outline": OutlineOnly, "fill": FillOnly,
}

func (m *PolygonDrawMode) UnmarshalText(b []byte) error {
	return parseEnum(b, drawModeNames, m, "面绘制方式")
}

// PointMarker 点符号形状
type PointMarker int

const (
	MarkerCircle PointMarker = iota
	MarkerOval
	MarkerSquare
	MarkerRectangle
	MarkerTriangle
	MarkerEquilateralTriangle
	MarkerIcon
)

var markerNames = map[string]PointMarker{
	"circle": MarkerCircle, "oval": MarkerOval, "square": MarkerSquare, "rectangle": MarkerRectangle,
	"triangle": MarkerTriangle, "equilateral_triangle": MarkerEquilateralTriangle, "icon": MarkerIcon,
}

func (m *PointMarker) UnmarshalText(b []byte) error {
	return parseEnum(b, markerNames, m, "点符号")
}

// EightSides 外围标注相对点符号的方位
type EightSides int

const (
	SideNone EightSides = iota
	SideTopRight
	SideTop
	SideTopLeft
	SideLeft
	SideBottomLeft
	SideBottom
	SideBottomRight
	SideRight
)

var sideNames = map[string]EightSides{
	"": SideNone, "none": SideNone, "top_right": SideTopRight, "top": SideTop, "top_left": SideTopLeft,
	"left": SideLeft, "bottom_left": SideBottomLeft, "bottom": SideBottom,
	"bottom_right": SideBottomRight, "right": SideRight,
}

func (s *EightSides) UnmarshalText(b []byte) error {
	return parseEnum(b, sideNames, s, "标注方位")
}

// ShieldStyle 盾标底图样式
type ShieldStyle int

const (
	ShieldBox ShieldStyle = iota
	ShieldOval
	ShieldIcon
)

var shieldStyleNames = map[string]ShieldStyle{"box": ShieldBox, "oval": ShieldOval, "icon": ShieldIcon}

func (s *ShieldStyle) UnmarshalText(b []byte) error {
	return parseEnum(b, shieldStyleNames, s, "盾标样式")
}

// ShieldScaling 图标盾标的缩放策略
type ShieldScaling int

const (
	// IconFixedSize 图标高度适配文字，宽度按比例，文字可横向溢出
	IconFixedSize ShieldScaling = iota
	// IconFixedAspect 保持宽高比，放大到能容纳文字
	IconFixedAspect
	// IconVariableAspect 宽高独立适配文字
	IconVariableAspect
)

var scalingNames = map[string]ShieldScaling{
	"fixed_size": IconFixedSize, "fixed_aspect": IconFixedAspect, "variable_aspect": IconVariableAspect,
}

func (s *ShieldScaling) UnmarshalText(b []byte) error {
	return parseEnum(b, scalingNames, s, "盾标缩放")
}

func parseEnum[T ~int](b []byte, names map[string]T, out *T, what string) error {
	v, ok := names[strings.ToLower(strings.TrimSpace(string(b)))]
	if !ok {
		return fmt.Errorf("未知的%s: %q", what, string(b))
	}
	*out = v
	return nil
}

// Color 非预乘 RGBA 颜色，文本形式为 #RRGGBB 或 #RRGGBBAA
type Color color.NRGBA

func (c Color) RGBA() (r, g, b, a uint32) { return color.NRGBA(c).RGBA() }

// Transparent 完全透明
func (c Color) Transparent() bool { return c.A == 0 }

func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(b)), "#")
	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("颜色格式错误: %q", string(b))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("颜色格式错误: %q: %w", string(b), err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	*c = Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return nil
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)), nil
}

// LevelRange 标注/盾标启用的层级范围（闭区间）
type LevelRange struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	MinLevel uint32 `yaml:"min_level" toml:"min_level"`
	MaxLevel uint32 `yaml:"max_level" toml:"max_level"`
}

func (r LevelRange) EnabledForLevel(level uint32) bool {
	return r.Enabled && level >= r.MinLevel && level <= r.MaxLevel
}

// TextStyle 字体、字号、颜色与描边
type TextStyle struct {
	// Font 为 go 内置字体名（regular/bold/italic/bolditalic，可为空）或 .ttf/.otf 文件路径
	Font             string  `yaml:"font" toml:"font"`
	Size             float64 `yaml:"size" toml:"size"`
	Bold             bool    `yaml:"bold" toml:"bold"`
	Italic           bool    `yaml:"italic" toml:"italic"`
	Color            Color   `yaml:"color" toml:"color"`
	OutlineColor     Color   `yaml:"outline_color" toml:"outline_color"`
	OutlineThickness float64 `yaml:"outline_thickness" toml:"outline_thickness"`
}

// LabelConfig 线要素沿路径标注
type LabelConfig struct {
	LevelRange `yaml:",inline" toml:"levels"`
	TextStyle  TextStyle `yaml:"text_style" toml:"text_style"`
}

// ShieldConfig 盾标
type ShieldConfig struct {
	LevelRange   `yaml:",inline" toml:"levels"`
	TextStyle    TextStyle     `yaml:"text_style" toml:"text_style"`
	Style        ShieldStyle   `yaml:"style" toml:"style"`
	Scaling      ShieldScaling `yaml:"scaling" toml:"scaling"`
	FillColor    Color         `yaml:"fill_color" toml:"fill_color"`
	BoxColor     Color         `yaml:"box_color" toml:"box_color"`
	Icon         string        `yaml:"icon" toml:"icon"`
	LeftMargin   float64       `yaml:"left_margin" toml:"left_margin"`
	RightMargin  float64       `yaml:"right_margin" toml:"right_margin"`
	TopMargin    float64       `yaml:"top_margin" toml:"top_margin"`
	BottomMargin float64       `yaml:"bottom_margin" toml:"bottom_margin"`
}

// FeatureConfig 要素（线/面/点符号）样式
type FeatureConfig struct {
	DisplayType     DisplayType     `yaml:"display_type" toml:"display_type"`
	StrokeColor     Color           `yaml:"stroke_color" toml:"stroke_color"`
	StrokeWidth     float64         `yaml:"stroke_width" toml:"stroke_width"`
	FillColor       Color           `yaml:"fill_color" toml:"fill_color"`
	PolygonDrawMode PolygonDrawMode `yaml:"polygon_draw_mode" toml:"polygon_draw_mode"`
	Label           LabelConfig     `yaml:"label" toml:"label"`
	Shield          ShieldConfig    `yaml:"shield" toml:"shield"`

	PointMarker      PointMarker `yaml:"point_marker" toml:"point_marker"`
	PointWidth       float64     `yaml:"point_width" toml:"point_width"`
	PointHeight      float64     `yaml:"point_height" toml:"point_height"`
	PointLabel       bool        `yaml:"point_label" toml:"point_label"`
	OutlineLabelSide EightSides  `yaml:"outline_label_side" toml:"outline_label_side"`
}

// CenterLabelDependentMarker 点符号尺寸是否随中心标注文字伸缩
func (c *FeatureConfig) CenterLabelDependentMarker() bool {
	return c.PointLabel && c.Shield.Scaling != IconFixedSize
}

// SiteLabelConfig 点位（点要素、面中心）标注
type SiteLabelConfig struct {
	Enabled         bool      `yaml:"enabled" toml:"enabled"`
	TextStyle       TextStyle `yaml:"text_style" toml:"text_style"`
	DisplayAll      bool      `yaml:"display_all" toml:"display_all"`
	HasOutlineLabel bool      `yaml:"outline_label" toml:"outline_label"`
}

type SiteConfig struct {
	Label SiteLabelConfig `yaml:"label" toml:"label"`
}

// DisplayRuleConfig 一条显示规则
type DisplayRuleConfig struct {
	Name    string        `yaml:"name" toml:"name"`
	Feature FeatureConfig `yaml:"feature" toml:"feature"`
	Site    SiteConfig    `yaml:"site" toml:"site"`
}
