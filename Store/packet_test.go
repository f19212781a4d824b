package Store

import (
	"errors"
	"testing"

	"maptile-platform/quadtree"
)

var backends = []StorageBackend{BackendBBolt, BackendSQLite}

func newTestStorage(t *testing.T, backend StorageBackend) *TileStorage {
	t.Helper()
	ts, err := NewTileStorage(TileStorageConfig{Backend: backend, DBDir: t.TempDir(), Layer: "roads"})
	if err != nil {
		t.Fatalf("创建存储管理器失败: %v", err)
	}
	return ts
}

// TestPacketRoundTrip 写入数据块与索引后读回，重复块共享同一位置
func TestPacketRoundTrip(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ts := newTestStorage(t, backend)
			w, err := ts.OpenWriter()
			if err != nil {
				t.Fatalf("打开写入器失败: %v", err)
			}

			a, b, dummy := quadtree.New(3, 1, 2), quadtree.New(3, 1, 3), quadtree.New(6, 31, 7)
			refA, err := WritePacketBlock(w, []byte("tile-a"))
			if err != nil {
				t.Fatalf("写入数据块失败: %v", err)
			}
			if refA.Offset != 0 || refA.Size != 6 {
				t.Errorf("第一个数据块位置错误: %+v", refA)
			}
			if err := w.WriteIndex(a, refA); err != nil {
				t.Fatalf("写入索引失败: %v", err)
			}
			if err := w.WriteIndex(b, refA); err != nil {
				t.Fatalf("写入重复索引失败: %v", err)
			}
			refP, err := WritePacketBlock(w, []byte("pixel"))
			if err != nil {
				t.Fatalf("写入数据块失败: %v", err)
			}
			if refP.Offset != 6+CRCSize {
				t.Errorf("第二个数据块偏移 = %d, 期望 %d", refP.Offset, 6+CRCSize)
			}
			if err := w.WriteIndex(dummy, refP); err != nil {
				t.Fatalf("写入索引失败: %v", err)
			}
			if err := w.SetMeta("run_id", "run-1"); err != nil {
				t.Fatalf("写入元数据失败: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("关闭写入器失败: %v", err)
			}

			r, err := ts.OpenReader()
			if err != nil {
				t.Fatalf("打开读取器失败: %v", err)
			}
			defer r.Close()

			for p, want := range map[quadtree.Path]string{a: "tile-a", b: "tile-a", dummy: "pixel"} {
				got, err := r.ReadTile(p)
				if err != nil {
					t.Fatalf("读取 %s 失败: %v", p, err)
				}
				if string(got) != want {
					t.Errorf("%s 数据不匹配: got %s, want %s", p, got, want)
				}
			}

			la, _ := r.Lookup(a)
			lb, _ := r.Lookup(b)
			if la != lb {
				t.Errorf("重复瓦片应引用同一数据块: %+v != %+v", la, lb)
			}

			if _, err := r.ReadTile(quadtree.New(3, 0, 0)); !errors.Is(err, ErrNotFound) {
				t.Errorf("不存在的瓦片应返回 ErrNotFound, got %v", err)
			}
			if v, err := r.Meta("run_id"); err != nil || v != "run-1" {
				t.Errorf("元数据不匹配: %q, %v", v, err)
			}
			if _, err := r.Meta("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("不存在的元数据应返回 ErrNotFound, got %v", err)
			}
		})
	}
}

// TestPacketAppend 重新打开后从最后一个数据块之后继续写
func TestPacketAppend(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ts := newTestStorage(t, backend)
			w, err := ts.OpenWriter()
			if err != nil {
				t.Fatalf("打开写入器失败: %v", err)
			}
			if _, err := WritePacketBlock(w, []byte("0123456789")); err != nil {
				t.Fatalf("写入失败: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("关闭失败: %v", err)
			}

			w, err = ts.OpenWriter()
			if err != nil {
				t.Fatalf("重新打开写入器失败: %v", err)
			}
			defer w.Close()
			ref, err := WritePacketBlock(w, []byte("x"))
			if err != nil {
				t.Fatalf("追加写入失败: %v", err)
			}
			if ref.Offset != 10+CRCSize {
				t.Errorf("追加偏移 = %d, 期望 %d", ref.Offset, 10+CRCSize)
			}
		})
	}
}

// TestPacketBufferFlush 缓冲区写满即落盘，写入器未关闭时也能读到
func TestPacketBufferFlush(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ts, err := NewTileStorage(TileStorageConfig{
				Backend: backend, DBDir: t.TempDir(), Layer: "small",
				WriteBufferBytes: 1, IndexBufferBytes: 1,
			})
			if err != nil {
				t.Fatalf("创建存储管理器失败: %v", err)
			}
			w, err := ts.OpenWriter()
			if err != nil {
				t.Fatalf("打开写入器失败: %v", err)
			}
			defer w.Close()

			p := quadtree.New(2, 1, 1)
			ref, err := WritePacketBlock(w, []byte("flushed"))
			if err != nil {
				t.Fatalf("写入失败: %v", err)
			}
			if err := w.WriteIndex(p, ref); err != nil {
				t.Fatalf("写入索引失败: %v", err)
			}

			r, err := ts.OpenReader()
			if err != nil {
				t.Fatalf("打开读取器失败: %v", err)
			}
			defer r.Close()
			got, err := r.ReadTile(p)
			if err != nil || string(got) != "flushed" {
				t.Errorf("未关闭写入器时读取: %q, %v", got, err)
			}
		})
	}
}

func TestPacketWriterErrors(t *testing.T) {
	ts := newTestStorage(t, BackendBBolt)
	w, err := ts.OpenWriter()
	if err != nil {
		t.Fatalf("打开写入器失败: %v", err)
	}
	if _, err := w.WriteAtCRC(100, []byte("x")); err == nil {
		t.Error("未预留的偏移应报错")
	}
	off, _ := w.AllocateAppend(1)
	if _, err := w.WriteAtCRC(off, []byte("x")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, err := w.WriteAtCRC(off, []byte("y")); err == nil {
		t.Error("重复写入同一偏移应报错")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	if _, err := w.AllocateAppend(1); !errors.Is(err, ErrClosed) {
		t.Errorf("关闭后写入应返回 ErrClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("重复关闭应无错误: %v", err)
	}
}

func TestCRC(t *testing.T) {
	block, sum := appendCRC([]byte("hello"))
	if len(block) != 5+CRCSize {
		t.Fatalf("长度错误: %d", len(block))
	}
	data, err := checkCRC(block)
	if err != nil || string(data) != "hello" {
		t.Fatalf("校验失败: %q, %v", data, err)
	}
	if sum == 0 {
		t.Error("CRC 不应为 0")
	}
	block[0] ^= 0xff
	if _, err := checkCRC(block); !errors.Is(err, ErrCorrupt) {
		t.Errorf("损坏的数据块应返回 ErrCorrupt, got %v", err)
	}
	if _, err := checkCRC([]byte{1}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("过短的数据块应返回 ErrCorrupt, got %v", err)
	}

	ref := BlockRef{Offset: 1 << 40, Size: 77, CRC: 0xdeadbeef}
	got, err := decodeRef(encodeRef(ref))
	if err != nil || got != ref {
		t.Errorf("索引记录编码错误: %+v, %v", got, err)
	}
}

func TestGetDBPath(t *testing.T) {
	tests := []struct {
		layer   string
		backend StorageBackend
		want    string
	}{
		{"roads", BackendBBolt, "/data/bbolt/roads.g3db"},
		{"my layer-1", BackendBBolt, "/data/bbolt/mylayer1.g3db"},
		{"roads", BackendSQLite, "/data/sqlite/" + SQLiteBundleName},
	}
	for _, tt := range tests {
		if got := GetDBPath("/data", tt.layer, tt.backend); got != tt.want {
			t.Errorf("GetDBPath(%q, %s) = %s, want %s", tt.layer, tt.backend, got, tt.want)
		}
	}
	if got := sanitizeTableName("9lives"); got != "_9lives" {
		t.Errorf("数字开头的表名应加前缀: %s", got)
	}
}

func TestNewTileStorage(t *testing.T) {
	if _, err := NewTileStorage(TileStorageConfig{Backend: "mysql", DBDir: "x", Layer: "l"}); err == nil {
		t.Error("不支持的后端应报错")
	}
	if _, err := NewTileStorage(TileStorageConfig{Backend: BackendBBolt, Layer: "l"}); err == nil {
		t.Error("DBDir 为空应报错")
	}
	if _, err := NewTileStorage(TileStorageConfig{Backend: BackendBBolt, DBDir: "x"}); err == nil {
		t.Error("Layer 为空应报错")
	}
	for in, want := range map[string]StorageBackend{"": BackendBBolt, "SQLite": BackendSQLite, "bbolt": BackendBBolt} {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseBackend("leveldb"); err == nil {
		t.Error("未知后端应报错")
	}
}
