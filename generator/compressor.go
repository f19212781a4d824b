package generator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"maptile-platform/geom"
	"maptile-platform/quadtree"
)

// unpremultiply[a][v] = v*255/a 四舍五入，a 为 0 与 255 时保持原值
var unpremultiply = func() *[256][256]uint8 {
	var lut [256][256]uint8
	for a := 1; a < 255; a++ {
		for v := 0; v <= 255; v++ {
			u := (255*v + a/2) / a
			if u > 255 {
				u = 255
			}
			lut[a][v] = uint8(u)
		}
	}
	for v := 0; v <= 255; v++ {
		lut[255][v] = uint8(v)
	}
	return &lut
}()

// UndoAlphaPremultiplicationPixel 就地把一个预乘 RGBA 像素还原为非预乘
func UndoAlphaPremultiplicationPixel(px []byte) {
	a := px[3]
	if a == 0 || a == 0xff {
		return
	}
	row := &unpremultiply[a]
	px[0], px[1], px[2] = row[px[0]], row[px[1]], row[px[2]]
}

// UndoAlphaPremultiplication 就地还原整个 RGBA 缓冲区
func UndoAlphaPremultiplication(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		UndoAlphaPremultiplicationPixel(pix[i : i+4])
	}
}

// compressedTile 发给写入 goroutine 的任务。
// advance 为 true 时只把期望序号推进到 nextSerial（超级瓦片只产出了部分客户端瓦片）。
type compressedTile struct {
	serial uint64
	path   quadtree.Path

	single bool
	color  color.NRGBA
	data   []byte

	advance    bool
	nextSerial uint64
}

// Compressor 从超级瓦片中切出客户端瓦片并编码为 PNG。每个渲染 goroutine 一个。
type Compressor struct {
	tileSize  int
	superSize int
	pix       []byte
	enc       png.Encoder
	buf       bytes.Buffer
}

func NewCompressor(tileSize, superSize int, level png.CompressionLevel) *Compressor {
	return &Compressor{
		tileSize:  tileSize,
		superSize: superSize,
		pix:       make([]byte, tileSize*tileSize*4),
		enc:       png.Encoder{CompressionLevel: level},
	}
}

// TilesPerSuperTile 一个超级瓦片包含的客户端瓦片数
func (c *Compressor) TilesPerSuperTile() uint64 {
	n := uint64(c.superSize / c.tileSize)
	return n * n
}

// Extract 取出第 (row, col) 个客户端瓦片，row 自下而上计数；超级瓦片自上而下绘制
func (c *Compressor) Extract(super *image.RGBA, row, col int) error {
	if super.Rect.Dx() != c.superSize || super.Rect.Dy() != c.superSize {
		return fmt.Errorf("超级瓦片尺寸 %v 与 %d 不符", super.Rect.Size(), c.superSize)
	}
	return geom.CropTile(super.Pix, c.superSize, c.superSize, c.pix,
		col*c.tileSize, row*c.tileSize, c.tileSize, c.tileSize, 4, true)
}

// SingleColor 当前瓦片全部像素相同时返回该颜色（预乘）
func (c *Compressor) SingleColor() (color.RGBA, bool) {
	p := c.pix
	for i := 4; i < len(p); i += 4 {
		if p[i] != p[0] || p[i+1] != p[1] || p[i+2] != p[2] || p[i+3] != p[3] {
			return color.RGBA{}, false
		}
	}
	return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}, true
}

// Compress 还原预乘后编码当前瓦片，返回的切片归调用方所有
func (c *Compressor) Compress() ([]byte, error) {
	UndoAlphaPremultiplication(c.pix)
	img := &image.NRGBA{Pix: c.pix, Stride: c.tileSize * 4, Rect: image.Rect(0, 0, c.tileSize, c.tileSize)}
	c.buf.Reset()
	if err := c.enc.Encode(&c.buf, img); err != nil {
		return nil, fmt.Errorf("PNG 编码失败: %w", err)
	}
	return bytes.Clone(c.buf.Bytes()), nil
}

// Unpremultiplied 预乘颜色转为 PNG 中存储的非预乘颜色
func Unpremultiplied(c color.RGBA) color.NRGBA {
	px := []byte{c.R, c.G, c.B, c.A}
	UndoAlphaPremultiplicationPixel(px)
	return color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
}

// EncodeSinglePixel 1×1 PNG，浏览器会把它拉伸到整个瓦片
func EncodeSinglePixel(col color.NRGBA) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, col)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNG 编码失败: %w", err)
	}
	return buf.Bytes(), nil
}
