package Store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"maptile-platform/quadtree"
)

var (
	bucketBlocks = []byte("blocks")
	bucketIndex  = []byte("index")
	bucketMeta   = []byte("meta")
)

// BBoltManager 管理 bbolt 连接的池，避免重复打开同一数据库文件
type BBoltManager struct {
	mu   sync.Mutex          // 保护连接池
	pool map[string]*bolt.DB // dbPath -> *bolt.DB
	refs map[string]int
	opts *bolt.Options // 打开参数
}

var defaultBoltManager = NewBBoltManager()

// NewBBoltManager 创建管理器
func NewBBoltManager() *BBoltManager {
	return &BBoltManager{
		pool: make(map[string]*bolt.DB),
		refs: make(map[string]int),
		opts: &bolt.Options{Timeout: 2 * time.Second}, // 独占锁等待超时
	}
}

// acquire 获取或打开指定路径的 bbolt 数据库，并增加引用计数
func (m *BBoltManager) acquire(dbPath string) (*bolt.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.pool[dbPath]; ok && db != nil {
		m.refs[dbPath]++
		return db, nil
	}

	// 确保目录存在
	if err := os.MkdirAll(path.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := bboltRecoverIfNeeded(dbPath, m.opts)
	if err != nil {
		return nil, err
	}
	m.pool[dbPath] = db
	m.refs[dbPath] = 1
	return db, nil
}

// release 引用计数归零时关闭数据库
func (m *BBoltManager) release(dbPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[dbPath]--
	if m.refs[dbPath] > 0 {
		return nil
	}
	db := m.pool[dbPath]
	delete(m.pool, dbPath)
	delete(m.refs, dbPath)
	if db == nil {
		return nil
	}
	return db.Close()
}

// CloseAll 关闭所有已打开的数据库连接
func (m *BBoltManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for p, db := range m.pool {
		if db != nil {
			if err := db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(m.pool, p)
		delete(m.refs, p)
	}
	return firstErr
}

// bboltRecoverIfNeeded 检测并在必要时尝试修复(或重新创建)损坏的 bbolt 数据库
func bboltRecoverIfNeeded(dbPath string, opts *bolt.Options) (*bolt.DB, error) {
	// 如果文件不存在,直接正常创建
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return bolt.Open(dbPath, 0o600, opts)
	}

	// 第一次尝试正常打开
	db, err := bolt.Open(dbPath, 0o600, opts)
	if err == nil {
		return db, nil
	}

	// 若打开失败,认为可能损坏: 先备份原文件,再新建
	backupPath := dbPath + ".corrupt." + time.Now().Format("20060102_150405")
	_ = os.Rename(dbPath, backupPath)
	return bolt.Open(dbPath, 0o600, opts)
}

// BoltPacketWriter 以 bbolt 保存瓦片包：blocks 桶按偏移存数据块，index 桶按四叉树路径存块位置。
// 已有的包以追加方式继续写入。
type BoltPacketWriter struct {
	dbPath string
	db     *bolt.DB
	blocks *pendingBlocks
	index  *pendingIndex
	closed bool
}

// OpenBoltPacketWriter 打开（或创建）dbPath 处的包
func OpenBoltPacketWriter(dbPath string, opts PacketOptions) (*BoltPacketWriter, error) {
	opts = opts.withDefaults()
	db, err := defaultBoltManager.acquire(dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}

	var next uint64
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBlocks, bucketIndex, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		// 最后一个数据块之后即下一个可用偏移
		if k, v := tx.Bucket(bucketBlocks).Cursor().Last(); k != nil {
			next = decodeOffset(k) + uint64(len(v))
		}
		return nil
	})
	if err != nil {
		_ = defaultBoltManager.release(dbPath)
		return nil, fmt.Errorf("初始化 %s 失败: %w", dbPath, err)
	}

	return &BoltPacketWriter{
		dbPath: dbPath,
		db:     db,
		blocks: newPendingBlocks(next, opts.WriteBufferBytes),
		index:  newPendingIndex(opts.IndexBufferBytes),
	}, nil
}

func decodeOffset(k []byte) uint64 {
	var off uint64
	for _, b := range k {
		off = off<<8 | uint64(b)
	}
	return off
}

func (w *BoltPacketWriter) AllocateAppend(size uint32) (uint64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.blocks.allocate(size), nil
}

func (w *BoltPacketWriter) WriteAtCRC(offset uint64, data []byte) (BlockRef, error) {
	if w.closed {
		return BlockRef{}, ErrClosed
	}
	ref, full, err := w.blocks.put(offset, data)
	if err != nil {
		return BlockRef{}, err
	}
	if full {
		return ref, w.Flush()
	}
	return ref, nil
}

func (w *BoltPacketWriter) WriteIndex(p quadtree.Path, ref BlockRef) error {
	if w.closed {
		return ErrClosed
	}
	if w.index.put(p, ref) {
		return w.Flush()
	}
	return nil
}

func (w *BoltPacketWriter) SetMeta(key, value string) error {
	if w.closed {
		return ErrClosed
	}
	return w.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
}

// Flush 在单个事务中写入缓冲的数据块与索引
func (w *BoltPacketWriter) Flush() error {
	if len(w.blocks.blocks) == 0 && len(w.index.entries) == 0 {
		return nil
	}
	err := w.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		for off, block := range w.blocks.blocks {
			if err := blocks.Put(EncodeKeyBigEndian(off), block); err != nil {
				return err
			}
		}
		index := tx.Bucket(bucketIndex)
		for key, ref := range w.index.entries {
			if err := index.Put(EncodeKeyBigEndian(key), encodeRef(ref)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", w.dbPath, err)
	}
	w.blocks.reset()
	w.index.reset()
	return nil
}

func (w *BoltPacketWriter) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	if cerr := defaultBoltManager.release(w.dbPath); err == nil {
		err = cerr
	}
	return err
}

// BoltPacketReader 读取 BoltPacketWriter 写出的包
type BoltPacketReader struct {
	dbPath string
	db     *bolt.DB
}

func OpenBoltPacketReader(dbPath string) (*BoltPacketReader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}
	db, err := defaultBoltManager.acquire(dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}
	return &BoltPacketReader{dbPath: dbPath, db: db}, nil
}

func (r *BoltPacketReader) Lookup(p quadtree.Path) (BlockRef, error) {
	var ref BlockRef
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndex)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(EncodeKeyBigEndian(p.Uint64()))
		if v == nil {
			return ErrNotFound
		}
		var err error
		ref, err = decodeRef(v)
		return err
	})
	if err != nil {
		return BlockRef{}, fmt.Errorf("%s: %w", p, err)
	}
	return ref, nil
}

func (r *BoltPacketReader) ReadTile(p quadtree.Path) ([]byte, error) {
	ref, err := r.Lookup(p)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(EncodeKeyBigEndian(ref.Offset))
		if v == nil {
			return fmt.Errorf("偏移 %d 的数据块缺失: %w", ref.Offset, ErrCorrupt)
		}
		// bbolt 返回的切片只在事务内有效
		d, err := checkCRC(v)
		if err != nil {
			return err
		}
		data = append([]byte(nil), d...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return data, nil
}

func (r *BoltPacketReader) Meta(key string) (string, error) {
	var value string
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (r *BoltPacketReader) Close() error {
	return defaultBoltManager.release(r.dbPath)
}

// CloseAllBBolt 关闭所有 BBolt 连接
func CloseAllBBolt() error {
	return defaultBoltManager.CloseAll()
}
