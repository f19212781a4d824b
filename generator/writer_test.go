package generator

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maptile-platform/Store"
	"maptile-platform/quadtree"
)

func openTestPacket(t *testing.T) (Store.PacketWriter, func() Store.PacketReader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roads.g3db")
	w, err := Store.OpenBoltPacketWriter(path, Store.PacketOptions{})
	require.NoError(t, err)
	reopen := func() Store.PacketReader {
		require.NoError(t, w.Close())
		r, err := Store.OpenBoltPacketReader(path)
		require.NoError(t, err)
		t.Cleanup(func() { r.Close() })
		return r
	}
	return w, reopen
}

func TestTileWriterReorders(t *testing.T) {
	pw, reopen := openTestPacket(t)
	budget := NewWriteBudget(1<<20, 1)
	w := NewTileWriter(pw, budget)

	p0, p1, p2 := quadtree.New(3, 2, 0), quadtree.New(3, 2, 1), quadtree.New(3, 2, 2)
	in := make(chan *compressedTile, 8)
	// 序号 3 之后超级瓦片只产出了 4 个结果中的 1 个，推进到 7
	in <- &compressedTile{serial: 2, path: p2, data: []byte("tile-2")}
	in <- &compressedTile{serial: 0, path: p0, data: []byte("tile-0")}
	in <- &compressedTile{serial: 4, advance: true, nextSerial: 7}
	in <- &compressedTile{serial: 7, path: quadtree.New(3, 3, 0), data: []byte("tile-7")}
	in <- &compressedTile{serial: 1, path: p1, data: []byte("tile-1")}
	in <- &compressedTile{serial: 3, path: quadtree.New(3, 2, 3), data: []byte("tile-3")}
	close(in)

	require.NoError(t, w.Run(context.Background(), in))
	stats := w.Stats()
	assert.Equal(t, uint64(5), stats.TilesWritten)
	assert.Equal(t, uint64(5*(6+Store.CRCSize)), stats.BytesWritten)

	r := reopen()
	ref0, err := r.Lookup(p0)
	require.NoError(t, err)
	ref2, err := r.Lookup(p2)
	require.NoError(t, err)
	assert.Less(t, ref0.Offset, ref2.Offset, "数据块按序号顺序写入")

	data, err := r.ReadTile(p1)
	require.NoError(t, err)
	assert.Equal(t, "tile-1", string(data))
}

func TestTileWriterMissingSerial(t *testing.T) {
	pw, _ := openTestPacket(t)
	w := NewTileWriter(pw, nil)
	in := make(chan *compressedTile, 1)
	in <- &compressedTile{serial: 1, path: quadtree.New(1, 0, 0), data: []byte("x")}
	close(in)
	assert.Error(t, w.Run(context.Background(), in))
}

func TestTileWriterSingleColorDedup(t *testing.T) {
	pw, reopen := openTestPacket(t)
	w := NewTileWriter(pw, nil)

	sea := color.NRGBA{R: 153, G: 179, B: 204, A: 255}
	land := color.NRGBA{R: 242, G: 239, B: 233, A: 255}
	paths := []quadtree.Path{quadtree.New(4, 5, 1), quadtree.New(4, 5, 2), quadtree.New(4, 5, 3)}
	require.NoError(t, w.Accept(&compressedTile{serial: 0, path: paths[0], single: true, color: sea}))
	require.NoError(t, w.Accept(&compressedTile{serial: 1, path: paths[1], single: true, color: land}))
	require.NoError(t, w.Accept(&compressedTile{serial: 2, path: paths[2], single: true, color: sea}))

	stats := w.Stats()
	assert.Equal(t, uint64(3), stats.TilesWritten)
	assert.Equal(t, uint64(3), stats.SingleColorTiles)
	assert.Equal(t, uint64(1), stats.DedupedTiles)

	r := reopen()
	a, err := r.Lookup(paths[0])
	require.NoError(t, err)
	c, err := r.Lookup(paths[2])
	require.NoError(t, err)
	assert.Equal(t, a, c, "同色瓦片共享数据块")

	data, err := r.ReadTile(paths[1])
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, land, color.NRGBAModel.Convert(img.At(0, 0)))
}

func TestWriteDummyTile(t *testing.T) {
	pw, reopen := openTestPacket(t)
	stats, err := WriteDummyTile(pw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TilesWritten)

	r := reopen()
	data, err := r.ReadTile(DummyTilePath)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
}
