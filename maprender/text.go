package maprender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"maptile-platform/logger"
)

// DefaultTextSize 未配置字号时使用
const DefaultTextSize = 12

var fonts = struct {
	sync.Mutex
	byKey map[string]*sfnt.Font
}{byKey: make(map[string]*sfnt.Font)}

func builtinFontData(bold, italic bool) (string, []byte) {
	switch {
	case bold && italic:
		return "go-bolditalic", gobolditalic.TTF
	case bold:
		return "go-bold", gobold.TTF
	case italic:
		return "go-italic", goitalic.TTF
	}
	return "go-regular", goregular.TTF
}

// lookupFont 按样式取字体，文件字体加载失败时退回内置字体
func lookupFont(style TextStyle) *sfnt.Font {
	name := strings.TrimSpace(style.Font)
	bold, italic := style.Bold, style.Italic
	switch strings.ToLower(name) {
	case "bold":
		bold = true
	case "italic":
		italic = true
	case "bolditalic":
		bold, italic = true, true
	}

	fonts.Lock()
	defer fonts.Unlock()

	if ext := strings.ToLower(filepath.Ext(name)); ext == ".ttf" || ext == ".otf" {
		if f, ok := fonts.byKey[name]; ok {
			return f
		}
		f, err := parseFontFile(name)
		if err == nil {
			fonts.byKey[name] = f
			return f
		}
		logger.Warn("加载字体 %s 失败，使用内置字体: %v", name, err)
	}

	key, data := builtinFontData(bold, italic)
	if f, ok := fonts.byKey[key]; ok {
		return f
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		// 内置字体数据随程序编译，解析失败只可能是库本身的问题
		panic(fmt.Sprintf("解析内置字体 %s 失败: %v", key, err))
	}
	fonts.byKey[key] = f
	return f
}

func parseFontFile(path string) (*sfnt.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return sfnt.Parse(data)
}

type glyph struct {
	index   sfnt.GlyphIndex
	x       float64
	advance float64
}

// TextRenderer 测量并绘制单行文字。非并发安全，每个 goroutine 各持一个。
type TextRenderer struct {
	style  TextStyle
	center bool
	font   *sfnt.Font
	buf    sfnt.Buffer
	ppem   fixed.Int26_6
}

// NewTextRenderer center 为 true 时文字以绘制点水平居中
func NewTextRenderer(style TextStyle, center bool) *TextRenderer {
	size := style.Size
	if size <= 0 {
		size = DefaultTextSize
	}
	return &TextRenderer{
		style:  style,
		center: center,
		font:   lookupFont(style),
		ppem:   fixed.Int26_6(size * 64),
	}
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

// MeasureText 返回文字宽度，以及基线以上（负值）与以下（正值）的高度
func (t *TextRenderer) MeasureText(text string) (length, above, below float64) {
	m, err := t.font.Metrics(&t.buf, t.ppem, font.HintingNone)
	if err == nil {
		above = -fromFixed(m.Ascent)
		below = fromFixed(m.Descent)
	}
	_, length = t.layout(text)
	return length, above, below
}

func (t *TextRenderer) layout(text string) ([]glyph, float64) {
	var (
		glyphs []glyph
		x      float64
		prev   sfnt.GlyphIndex
	)
	for i, r := range text {
		idx, err := t.font.GlyphIndex(&t.buf, r)
		if err != nil {
			continue
		}
		if i > 0 && prev != 0 && idx != 0 {
			if k, err := t.font.Kern(&t.buf, prev, idx, t.ppem, font.HintingNone); err == nil {
				x += fromFixed(k)
			}
		}
		adv, err := t.font.GlyphAdvance(&t.buf, idx, t.ppem, font.HintingNone)
		if err != nil {
			continue
		}
		glyphs = append(glyphs, glyph{index: idx, x: x, advance: fromFixed(adv)})
		x += fromFixed(adv)
		prev = idx
	}
	return glyphs, x
}

// glyphContours 字形轮廓（相对基线原点，y 向下），曲线按固定步数展平后经 xf 变换
func (t *TextRenderer) glyphContours(idx sfnt.GlyphIndex, xf func(Point) Point, out [][]Point) [][]Point {
	segs, err := t.font.LoadGlyph(&t.buf, idx, t.ppem, nil)
	if err != nil {
		return out
	}
	var cur []Point
	var pen Point
	pt := func(p fixed.Point26_6) Point { return Point{fromFixed(p.X), fromFixed(p.Y)} }
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if len(cur) > 2 {
				out = append(out, cur)
			}
			pen = pt(s.Args[0])
			cur = []Point{xf(pen)}
		case sfnt.SegmentOpLineTo:
			pen = pt(s.Args[0])
			cur = append(cur, xf(pen))
		case sfnt.SegmentOpQuadTo:
			c, p := pt(s.Args[0]), pt(s.Args[1])
			for i := 1; i <= quadSteps; i++ {
				u := float64(i) / quadSteps
				q := pen.Lerp(c, u).Lerp(c.Lerp(p, u), u)
				cur = append(cur, xf(q))
			}
			pen = p
		case sfnt.SegmentOpCubeTo:
			c1, c2, p := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			for i := 1; i <= cubeSteps; i++ {
				u := float64(i) / cubeSteps
				a, b, c := pen.Lerp(c1, u), c1.Lerp(c2, u), c2.Lerp(p, u)
				q := a.Lerp(b, u).Lerp(b.Lerp(c, u), u)
				cur = append(cur, xf(q))
			}
			pen = p
		}
	}
	if len(cur) > 2 {
		out = append(out, cur)
	}
	return out
}

const (
	quadSteps = 6
	cubeSteps = 8
)

// paint 先描边（光晕）再填充
func (t *TextRenderer) paint(c *Canvas, contours [][]Point) {
	if len(contours) == 0 {
		return
	}
	if t.style.OutlineThickness > 0 {
		c.StrokeContours(contours, 2*t.style.OutlineThickness, t.style.OutlineColor, true)
	}
	c.FillContours(contours, t.style.Color)
}

// DrawText 以 (x, y) 为基线起点（居中模式下为基线中点）绘制文字
func (t *TextRenderer) DrawText(c *Canvas, text string, x, y float64) {
	glyphs, length := t.layout(text)
	if t.center {
		x -= length / 2
	}
	var contours [][]Point
	for _, g := range glyphs {
		ox := x + g.x
		contours = t.glyphContours(g.index, func(p Point) Point {
			return Point{p.X + ox, p.Y + y}
		}, contours)
	}
	t.paint(c, contours)
}

// DrawTextOnPath 沿路径绘制文字：hOffset 为起点沿路径的偏移，vOffset 为基线相对路径的法向偏移。
// 字形中点超出路径末端的字不绘制。
func (t *TextRenderer) DrawTextOnPath(c *Canvas, text string, path *Path, hOffset, vOffset float64) {
	if path == nil {
		return
	}
	m := NewPathMeasure(path)
	length := m.Length()
	glyphs, _ := t.layout(text)
	var contours [][]Point
	for _, g := range glyphs {
		mid := hOffset + g.x + g.advance/2
		if mid > length {
			break
		}
		if mid < 0 {
			continue
		}
		pos, tan, ok := m.PosTan(mid)
		if !ok {
			break
		}
		normal := tan.Perp()
		half := g.advance / 2
		contours = t.glyphContours(g.index, func(p Point) Point {
			return pos.Add(tan.Scale(p.X - half)).Add(normal.Scale(p.Y + vOffset))
		}, contours)
	}
	t.paint(c, contours)
}
