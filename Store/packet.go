package Store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"maptile-platform/quadtree"
)

// 默认缓冲区大小
const (
	DefaultWriteBufferBytes = 10 * 1024 * 1024
	DefaultIndexBufferBytes = 10 * 1024 * 1024
)

// CRCSize 每个数据块末尾附加的 CRC32 字节数
const CRCSize = 4

var (
	// ErrNotFound 瓦片不存在
	ErrNotFound = errors.New("瓦片不存在")
	// ErrCorrupt 数据块 CRC 校验失败
	ErrCorrupt = errors.New("数据块校验失败")
	// ErrClosed 写入器已关闭
	ErrClosed = errors.New("包文件已关闭")
)

// BlockRef 数据块在包中的位置。Size 不含 CRC。
type BlockRef struct {
	Offset uint64
	Size   uint32
	CRC    uint32
}

// PacketWriter 瓦片包写入器。数据块先预留偏移再写入，同一数据块可被多个瓦片索引引用。
// 非并发安全，由单个写 goroutine 使用。
type PacketWriter interface {
	// AllocateAppend 在包末尾预留 size 字节（另加 CRC），返回偏移
	AllocateAppend(size uint32) (uint64, error)
	// WriteAtCRC 在预留的偏移处写入数据块并计算 CRC
	WriteAtCRC(offset uint64, data []byte) (BlockRef, error)
	// WriteIndex 记录瓦片到数据块的映射
	WriteIndex(path quadtree.Path, ref BlockRef) error
	// SetMeta 写入包级元数据（运行 id、瓦片数等）
	SetMeta(key, value string) error
	Flush() error
	Close() error
}

// PacketReader 按四叉树路径读取瓦片
type PacketReader interface {
	Lookup(path quadtree.Path) (BlockRef, error)
	ReadTile(path quadtree.Path) ([]byte, error)
	Meta(key string) (string, error)
	Close() error
}

// PacketOptions 写入缓冲区大小，0 表示使用默认值
type PacketOptions struct {
	WriteBufferBytes int
	IndexBufferBytes int
}

func (o PacketOptions) withDefaults() PacketOptions {
	if o.WriteBufferBytes <= 0 {
		o.WriteBufferBytes = DefaultWriteBufferBytes
	}
	if o.IndexBufferBytes <= 0 {
		o.IndexBufferBytes = DefaultIndexBufferBytes
	}
	return o
}

// indexEntrySize 每条索引在缓冲区中计入的字节数
const indexEntrySize = 8 + 16

// WritePacketBlock 预留并写入一个数据块
func WritePacketBlock(w PacketWriter, data []byte) (BlockRef, error) {
	off, err := w.AllocateAppend(uint32(len(data)))
	if err != nil {
		return BlockRef{}, err
	}
	return w.WriteAtCRC(off, data)
}

// appendCRC 返回附带大端 CRC32 的数据副本
func appendCRC(data []byte) ([]byte, uint32) {
	sum := crc32.ChecksumIEEE(data)
	out := make([]byte, len(data)+CRCSize)
	copy(out, data)
	binary.BigEndian.PutUint32(out[len(data):], sum)
	return out, sum
}

// checkCRC 校验并去掉数据块末尾的 CRC
func checkCRC(block []byte) ([]byte, error) {
	if len(block) < CRCSize {
		return nil, fmt.Errorf("数据块长度 %d: %w", len(block), ErrCorrupt)
	}
	data := block[:len(block)-CRCSize]
	want := binary.BigEndian.Uint32(block[len(block)-CRCSize:])
	if got := crc32.ChecksumIEEE(data); got != want {
		return nil, fmt.Errorf("crc %08x != %08x: %w", got, want, ErrCorrupt)
	}
	return data, nil
}

func encodeRef(ref BlockRef) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], ref.Offset)
	binary.BigEndian.PutUint32(buf[8:12], ref.Size)
	binary.BigEndian.PutUint32(buf[12:16], ref.CRC)
	return buf[:]
}

func decodeRef(b []byte) (BlockRef, error) {
	if len(b) != 16 {
		return BlockRef{}, fmt.Errorf("索引记录长度 %d: %w", len(b), ErrCorrupt)
	}
	return BlockRef{
		Offset: binary.BigEndian.Uint64(b[0:8]),
		Size:   binary.BigEndian.Uint32(b[8:12]),
		CRC:    binary.BigEndian.Uint32(b[12:16]),
	}, nil
}

// EncodeKeyBigEndian 将 uint64 主键编码为 8 字节大端
func EncodeKeyBigEndian(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// pendingBlocks 写缓冲区：预留偏移后尚未落盘的数据块
type pendingBlocks struct {
	next   uint64
	blocks map[uint64][]byte
	bytes  int
	limit  int
}

func newPendingBlocks(next uint64, limit int) *pendingBlocks {
	return &pendingBlocks{next: next, limit: limit, blocks: make(map[uint64][]byte)}
}

func (p *pendingBlocks) allocate(size uint32) uint64 {
	off := p.next
	p.next += uint64(size) + CRCSize
	return off
}

// put 返回缓冲区是否已满
func (p *pendingBlocks) put(offset uint64, data []byte) (BlockRef, bool, error) {
	if offset >= p.next {
		return BlockRef{}, false, fmt.Errorf("偏移 %d 未预留", offset)
	}
	if _, dup := p.blocks[offset]; dup {
		return BlockRef{}, false, fmt.Errorf("偏移 %d 重复写入", offset)
	}
	block, sum := appendCRC(data)
	p.blocks[offset] = block
	p.bytes += len(block)
	return BlockRef{Offset: offset, Size: uint32(len(data)), CRC: sum}, p.bytes >= p.limit, nil
}

func (p *pendingBlocks) reset() {
	clear(p.blocks)
	p.bytes = 0
}

// pendingIndex 索引缓冲区
type pendingIndex struct {
	entries map[uint64]BlockRef
	limit   int
}

func newPendingIndex(limit int) *pendingIndex {
	return &pendingIndex{entries: make(map[uint64]BlockRef), limit: limit}
}

// put 返回缓冲区是否已满
func (p *pendingIndex) put(path quadtree.Path, ref BlockRef) bool {
	p.entries[path.Uint64()] = ref
	return len(p.entries)*indexEntrySize >= p.limit
}

func (p *pendingIndex) reset() { clear(p.entries) }
