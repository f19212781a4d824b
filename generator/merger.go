package generator

import (
	"container/heap"
	"context"
)

// MergeEntry 合并输出：一个子图层在某个瓦片上的输入，Source 为子图层序号
type MergeEntry struct {
	Tile   *PreparedTile
	Source int
}

type mergeHeap []MergeEntry

func (h mergeHeap) Len() int { return len(h) }

// 同一路径按子图层顺序输出
func (h mergeHeap) Less(i, j int) bool {
	if c := h[i].Tile.Path.Compare(h[j].Tile.Path); c != 0 {
		return c < 0
	}
	return h[i].Source < h[j].Source
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(MergeEntry)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Merger 多路归并各子图层按路径有序的输出
type Merger struct {
	sources []<-chan *PreparedTile
	h       mergeHeap
	started bool
}

func NewMerger(sources []<-chan *PreparedTile) *Merger {
	return &Merger{sources: sources, h: make(mergeHeap, 0, len(sources))}
}

// pull 取 source 的下一个瓦片，通道关闭时该路结束
func (m *Merger) pull(ctx context.Context, source int) error {
	select {
	case t, ok := <-m.sources[source]:
		if ok {
			heap.Push(&m.h, MergeEntry{Tile: t, Source: source})
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next 返回路径最小的条目；全部输入耗尽时 ok 为 false
func (m *Merger) Next(ctx context.Context) (e MergeEntry, ok bool, err error) {
	if !m.started {
		m.started = true
		for i := range m.sources {
			if err := m.pull(ctx, i); err != nil {
				return MergeEntry{}, false, err
			}
		}
	}
	if m.h.Len() == 0 {
		return MergeEntry{}, false, nil
	}
	e = heap.Pop(&m.h).(MergeEntry)
	if err := m.pull(ctx, e.Source); err != nil {
		return MergeEntry{}, false, err
	}
	return e, true, nil
}
