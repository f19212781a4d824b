package generator

import (
	"container/heap"
	"context"
	"fmt"
	"image/color"

	"maptile-platform/Store"
	"maptile-platform/quadtree"
)

// DummyTilePath 空图层的占位瓦片，位于太平洋中部，极少被请求
var DummyTilePath = quadtree.New(6, 31, 7)

type serialHeap []*compressedTile

func (h serialHeap) Len() int           { return len(h) }
func (h serialHeap) Less(i, j int) bool { return h[i].serial < h[j].serial }
func (h serialHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *serialHeap) Push(x any)        { *h = append(*h, x.(*compressedTile)) }
func (h *serialHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// WriteStats 写入统计
type WriteStats struct {
	TilesWritten uint64
	// SingleColorTiles 单色瓦片数，其中 DedupedTiles 复用了已写出的 1×1 数据块
	SingleColorTiles uint64
	DedupedTiles     uint64
	BytesWritten     uint64
}

// TileWriter 按序号顺序把压缩结果写入瓦片包。
// 渲染 goroutine 乱序完成，先到的结果暂存在按序号排序的堆中。
type TileWriter struct {
	pw     Store.PacketWriter
	budget *WriteBudget

	// lonely 单色瓦片颜色 -> 已写出的 1×1 PNG 数据块
	lonely   map[color.NRGBA]Store.BlockRef
	backlog  serialHeap
	expected uint64
	stats    WriteStats
}

func NewTileWriter(pw Store.PacketWriter, budget *WriteBudget) *TileWriter {
	return &TileWriter{pw: pw, budget: budget, lonely: make(map[color.NRGBA]Store.BlockRef)}
}

func (w *TileWriter) Stats() WriteStats { return w.stats }

// Run 消费 in 直到关闭
func (w *TileWriter) Run(ctx context.Context, in <-chan *compressedTile) error {
	for {
		select {
		case t, ok := <-in:
			if !ok {
				if w.backlog.Len() > 0 {
					return fmt.Errorf("写入结束时仍有 %d 个结果未按序写出，期望序号 %d", w.backlog.Len(), w.expected)
				}
				return nil
			}
			if err := w.Accept(t); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Accept 序号不是期望值时暂存，否则写出它以及堆中随后连续的结果
func (w *TileWriter) Accept(t *compressedTile) error {
	if t.serial != w.expected {
		heap.Push(&w.backlog, t)
		return nil
	}
	for {
		if t.advance {
			w.expected = t.nextSerial
		} else {
			if err := w.write(t); err != nil {
				return err
			}
			w.expected++
		}
		if w.backlog.Len() == 0 || w.backlog[0].serial != w.expected {
			return nil
		}
		t = heap.Pop(&w.backlog).(*compressedTile)
	}
}

func (w *TileWriter) write(t *compressedTile) error {
	if t.single {
		w.stats.SingleColorTiles++
		if ref, ok := w.lonely[t.color]; ok {
			if err := w.pw.WriteIndex(t.path, ref); err != nil {
				return fmt.Errorf("写入瓦片 %s 索引失败: %w", t.path, err)
			}
			w.stats.DedupedTiles++
			w.stats.TilesWritten++
			return nil
		}
		data, err := EncodeSinglePixel(t.color)
		if err != nil {
			return fmt.Errorf("瓦片 %s: %w", t.path, err)
		}
		ref, err := w.writeBlock(t.path, data)
		if err != nil {
			return err
		}
		w.lonely[t.color] = ref
		return nil
	}

	if _, err := w.writeBlock(t.path, t.data); err != nil {
		return err
	}
	if w.budget != nil {
		w.budget.Written(int64(len(t.data) + Store.CRCSize))
	}
	return nil
}

func (w *TileWriter) writeBlock(p quadtree.Path, data []byte) (Store.BlockRef, error) {
	ref, err := Store.WritePacketBlock(w.pw, data)
	if err != nil {
		return Store.BlockRef{}, fmt.Errorf("写入瓦片 %s 失败: %w", p, err)
	}
	if err := w.pw.WriteIndex(p, ref); err != nil {
		return Store.BlockRef{}, fmt.Errorf("写入瓦片 %s 索引失败: %w", p, err)
	}
	w.stats.TilesWritten++
	w.stats.BytesWritten += uint64(len(data) + Store.CRCSize)
	return ref, nil
}

// WriteDummyTile 图层没有任何要素时写入一个 1×1 透明瓦片，保证后续索引与发布有内容可用
func WriteDummyTile(pw Store.PacketWriter) (WriteStats, error) {
	w := NewTileWriter(pw, nil)
	data, err := EncodeSinglePixel(color.NRGBA{})
	if err != nil {
		return WriteStats{}, err
	}
	if _, err := w.writeBlock(DummyTilePath, data); err != nil {
		return WriteStats{}, err
	}
	return w.stats, nil
}
