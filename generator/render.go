package generator

import (
	"context"
	"image/png"

	"maptile-platform/Store"
	"maptile-platform/maprender"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

// RenderItem 一个超级瓦片的全部子图层输入。固定数量的 RenderItem 在合并循环与渲染
// goroutine 之间循环使用。
type RenderItem struct {
	Path     quadtree.Path
	Serial   uint64
	InLayers []*maprender.InLayer
	// BytesSentToWrite 上次渲染产出的 PNG 字节数，回到空闲池后由合并循环计入写预算
	BytesSentToWrite int64
}

func newRenderItem(maxInLayers int) *RenderItem {
	return &RenderItem{InLayers: make([]*maprender.InLayer, 0, maxInLayers)}
}

// Release 丢弃输入，保留容量
func (it *RenderItem) Release() {
	clear(it.InLayers)
	it.InLayers = it.InLayers[:0]
}

// renderWorker 渲染 goroutine 独占的组合器、渲染器、像素缓冲区与压缩器
type renderWorker struct {
	g        *Generator
	combiner *maprender.Combiner
	renderer *maprender.Renderer
	combined maprender.CombinedTile
	raster   *maprender.RasterTile
	comp     *Compressor
}

func (g *Generator) newRenderWorker() *renderWorker {
	return &renderWorker{
		g:        g,
		combiner: maprender.NewCombiner(g.fusionTS, g.labelParams, g.icons),
		renderer: maprender.NewRenderer(g.icons, g.cfg.Debug),
		raster:   maprender.NewRasterTile(int(g.fusionTS.TileSize)),
		comp:     NewCompressor(int(g.clientTS.TileSize), int(g.fusionTS.TileSize), png.DefaultCompression),
	}
}

// renderLoop 直到 in 关闭或 ctx 取消
func (g *Generator) renderLoop(ctx context.Context, in <-chan *RenderItem, free chan<- *RenderItem,
	out chan<- *compressedTile) error {
	w := g.newRenderWorker()
	for {
		var item *RenderItem
		select {
		case it, ok := <-in:
			if !ok {
				return nil
			}
			item = it
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := w.process(ctx, item, out); err != nil {
			return err
		}
		item.Release()
		free <- item
		g.progress.increment()
	}
}

func send(ctx context.Context, out chan<- *compressedTile, t *compressedTile) error {
	select {
	case out <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process 组合、渲染并切分一个超级瓦片。每个超级瓦片占用 TilesPerSuperTile 个序号，
// 未全部用完时补发一个推进序号的任务。
func (w *renderWorker) process(ctx context.Context, item *RenderItem, out chan<- *compressedTile) error {
	g := w.g
	perSuper := w.comp.TilesPerSuperTile()
	begin := item.Serial * perSuper
	serial := begin

	w.combined.Reset(item.Path)
	w.combiner.Process(&w.combined, item.InLayers)
	w.raster.Path = item.Path
	if w.renderer.Process(w.raster, &w.combined) {
		level, row, col := item.Path.LevelRowCol()
		todo := tilespace.TranslateLevelCoverage(g.fusionTS,
			tilespace.CoverageFromAddr(tilespace.NewTileAddr(level, row, col)), g.clientTS)
		// 裁剪前的范围用于在超级瓦片中定位客户端瓦片
		tileExtents := todo.Extents
		todo.CropTo(g.targetCoverage.Extents)

		e := todo.Extents
		for r := e.BeginRow(); r < e.EndRow(); r++ {
			for c := e.BeginCol(); c < e.EndCol(); c++ {
				err := w.comp.Extract(w.raster.Image, int(r-tileExtents.BeginRow()), int(c-tileExtents.BeginCol()))
				if err != nil {
					return err
				}
				path := quadtree.New(todo.Level, r, c)
				var t *compressedTile
				if col, same := w.comp.SingleColor(); same {
					if col.A == 0 {
						g.transparent.Add(1)
						continue
					}
					t = &compressedTile{serial: serial, path: path, single: true, color: Unpremultiplied(col)}
				} else {
					data, err := w.comp.Compress()
					if err != nil {
						return err
					}
					t = &compressedTile{serial: serial, path: path, data: data}
					item.BytesSentToWrite += int64(len(data) + Store.CRCSize)
				}
				if err := send(ctx, out, t); err != nil {
					return err
				}
				serial++
			}
		}
	}

	if next := begin + perSuper; serial != next {
		return send(ctx, out, &compressedTile{serial: serial, advance: true, nextSerial: next})
	}
	return nil
}
