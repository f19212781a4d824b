package Store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"maptile-platform/quadtree"
)

// SQLiteManager 管理 sqlite 连接的池，同一文件只打开一次
type SQLiteManager struct {
	mu        sync.Mutex         // 保护连接池
	pool      map[string]*sql.DB // dbPath -> *sql.DB
	refs      map[string]int
	dsnExtras string // 额外DSN参数
}

var defaultSQLiteManager = NewSQLiteManager()

// NewSQLiteManager 创建管理器
func NewSQLiteManager() *SQLiteManager {
	return &SQLiteManager{
		pool:      make(map[string]*sql.DB),
		refs:      make(map[string]int),
		dsnExtras: "?_busy_timeout=2000&cache=shared&mode=rwc",
	}
}

// sqliteTables 一个瓦片包在 sqlite 中的表名
type sqliteTables struct {
	blocks string
	index  string
	meta   string
}

func tablesFor(layer string) sqliteTables {
	prefix := sanitizeTableName(layer)
	return sqliteTables{
		blocks: prefix + "_blocks",
		index:  prefix + "_tile_index",
		meta:   prefix + "_meta",
	}
}

// initSchema 初始化瓦片包的表
func initSchema(db *sql.DB, t sqliteTables) error {
	// 启用 WAL 模式以提升并发读写性能；部分文件系统不支持，失败时沿用默认日志模式
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			block_offset INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		);`, t.blocks),
		// tile_id 为 8 字节大端的四叉树路径
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tile_id BLOB PRIMARY KEY,
			level INTEGER NOT NULL,
			block_offset INTEGER NOT NULL,
			size INTEGER NOT NULL,
			crc INTEGER NOT NULL
		);`, t.index),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			meta_key TEXT PRIMARY KEY,
			meta_value TEXT NOT NULL
		);`, t.meta),
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeTableName 清理表名，确保符合SQLite标识符规范
func sanitizeTableName(name string) string {
	// 移除非法字符，只保留字母、数字和下划线
	// 并确保不以数字开头
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1 // 移除非法字符
	}, name)

	// 如果以数字开头，添加前缀
	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}

	// 如果结果为空或太长，返回默认值
	if len(result) == 0 {
		return "default_table"
	}
	if len(result) > 48 {
		return result[:48]
	}

	return result
}

// acquire 获取或打开指定路径的 sqlite 数据库，并增加引用计数
func (m *SQLiteManager) acquire(dbPath string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.pool[dbPath]; ok && db != nil {
		m.refs[dbPath]++
		return db, nil
	}

	if err := os.MkdirAll(path.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sqliteRecoverIfNeeded(dbPath, m.dsnExtras)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(0)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := waitPing(db, 2*time.Second); err != nil {
		_ = db.Close()
		return nil, err
	}

	m.pool[dbPath] = db
	m.refs[dbPath] = 1
	return db, nil
}

// release 引用计数归零时关闭连接
func (m *SQLiteManager) release(dbPath string) error {
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

// CloseAll 关闭所有连接
func (m *SQLiteManager) CloseAll() error {
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

// sqliteRecoverIfNeeded 检测并在必要时尝试修复(或重新创建)损坏的 sqlite 数据库
func sqliteRecoverIfNeeded(dbPath, dsnExtras string) (*sql.DB, error) {
	dsn := "file:" + dbPath + dsnExtras
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return sql.Open("sqlite3", dsn)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err == nil {
		if errPing := db.Ping(); errPing == nil {
			return db, nil
		}
		_ = db.Close()
	}

	backupPath := dbPath + ".corrupt." + time.Now().Format("20060102_150405")
	_ = os.Rename(dbPath, backupPath)
	return sql.Open("sqlite3", dsn)
}

// waitPing 在给定超时内轮询 Ping
func waitPing(db *sql.DB, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := db.Ping(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("sqlite ping 超时")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// SQLitePacketWriter 以 sqlite 保存瓦片包，表名以图层名为前缀，同一文件可容纳多个图层
type SQLitePacketWriter struct {
	dbPath string
	db     *sql.DB
	tables sqliteTables
	blocks *pendingBlocks
	index  *pendingIndex
	closed bool
}

func OpenSQLitePacketWriter(dbPath, layer string, opts PacketOptions) (*SQLitePacketWriter, error) {
	opts = opts.withDefaults()
	db, err := defaultSQLiteManager.acquire(dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}
	t := tablesFor(layer)
	if err := initSchema(db, t); err != nil {
		_ = defaultSQLiteManager.release(dbPath)
		return nil, fmt.Errorf("初始化 %s 失败: %w", dbPath, err)
	}

	var next uint64
	var lastOff, lastLen int64
	err = db.QueryRow(fmt.Sprintf(
		`SELECT block_offset, length(data) FROM %s ORDER BY block_offset DESC LIMIT 1`, t.blocks),
	).Scan(&lastOff, &lastLen)
	switch {
	case err == nil:
		next = uint64(lastOff + lastLen)
	case errors.Is(err, sql.ErrNoRows):
	default:
		_ = defaultSQLiteManager.release(dbPath)
		return nil, fmt.Errorf("读取 %s 失败: %w", dbPath, err)
	}

	return &SQLitePacketWriter{
		dbPath: dbPath,
		db:     db,
		tables: t,
		blocks: newPendingBlocks(next, opts.WriteBufferBytes),
		index:  newPendingIndex(opts.IndexBufferBytes),
	}, nil
}

func (w *SQLitePacketWriter) AllocateAppend(size uint32) (uint64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.blocks.allocate(size), nil
}

func (w *SQLitePacketWriter) WriteAtCRC(offset uint64, data []byte) (BlockRef, error) {
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

func (w *SQLitePacketWriter) WriteIndex(p quadtree.Path, ref BlockRef) error {
	if w.closed {
		return ErrClosed
	}
	if w.index.put(p, ref) {
		return w.Flush()
	}
	return nil
}

func (w *SQLitePacketWriter) SetMeta(key, value string) error {
	if w.closed {
		return ErrClosed
	}
	_, err := w.db.Exec(fmt.Sprintf(`
		INSERT INTO %s(meta_key, meta_value) VALUES(?, ?)
		ON CONFLICT(meta_key) DO UPDATE SET meta_value=excluded.meta_value;`, w.tables.meta), key, value)
	return err
}

// Flush 单个事务批量写入缓冲的数据块与索引
func (w *SQLitePacketWriter) Flush() error {
	if len(w.blocks.blocks) == 0 && len(w.index.entries) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	if err := w.flushTx(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("写入 %s 失败: %w", w.dbPath, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交 %s 失败: %w", w.dbPath, err)
	}
	w.blocks.reset()
	w.index.reset()
	return nil
}

func (w *SQLitePacketWriter) flushTx(tx *sql.Tx) error {
	blockStmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT OR REPLACE INTO %s(block_offset, data) VALUES(?, ?)`, w.tables.blocks))
	if err != nil {
		return err
	}
	defer blockStmt.Close()
	for off, block := range w.blocks.blocks {
		if _, err := blockStmt.Exec(int64(off), block); err != nil {
			return err
		}
	}

	indexStmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT OR REPLACE INTO %s(tile_id, level, block_offset, size, crc) VALUES(?, ?, ?, ?, ?)`, w.tables.index))
	if err != nil {
		return err
	}
	defer indexStmt.Close()
	for key, ref := range w.index.entries {
		level := quadtree.FromUint64(key).Level()
		if _, err := indexStmt.Exec(EncodeKeyBigEndian(key), level, int64(ref.Offset), ref.Size, ref.CRC); err != nil {
			return err
		}
	}
	return nil
}

func (w *SQLitePacketWriter) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	if cerr := defaultSQLiteManager.release(w.dbPath); err == nil {
		err = cerr
	}
	return err
}

// SQLitePacketReader 读取 SQLitePacketWriter 写出的包
type SQLitePacketReader struct {
	dbPath string
	db     *sql.DB
	tables sqliteTables
}

func OpenSQLitePacketReader(dbPath, layer string) (*SQLitePacketReader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}
	db, err := defaultSQLiteManager.acquire(dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", dbPath, err)
	}
	t := tablesFor(layer)
	if err := initSchema(db, t); err != nil {
		_ = defaultSQLiteManager.release(dbPath)
		return nil, err
	}
	return &SQLitePacketReader{dbPath: dbPath, db: db, tables: t}, nil
}

func (r *SQLitePacketReader) Lookup(p quadtree.Path) (BlockRef, error) {
	var off int64
	var ref BlockRef
	err := r.db.QueryRow(fmt.Sprintf(
		`SELECT block_offset, size, crc FROM %s WHERE tile_id = ?`, r.tables.index),
		EncodeKeyBigEndian(p.Uint64()),
	).Scan(&off, &ref.Size, &ref.CRC)
	if errors.Is(err, sql.ErrNoRows) {
		return BlockRef{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return BlockRef{}, fmt.Errorf("%s: %w", p, err)
	}
	ref.Offset = uint64(off)
	return ref, nil
}

func (r *SQLitePacketReader) ReadTile(p quadtree.Path) ([]byte, error) {
	ref, err := r.Lookup(p)
	if err != nil {
		return nil, err
	}
	var block []byte
	err = r.db.QueryRow(fmt.Sprintf(`SELECT data FROM %s WHERE block_offset = ?`, r.tables.blocks),
		int64(ref.Offset)).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: 偏移 %d 的数据块缺失: %w", p, ref.Offset, ErrCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	data, err := checkCRC(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return data, nil
}

func (r *SQLitePacketReader) Meta(key string) (string, error) {
	var value string
	err := r.db.QueryRow(fmt.Sprintf(`SELECT meta_value FROM %s WHERE meta_key = ?`, r.tables.meta), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *SQLitePacketReader) Close() error {
	return defaultSQLiteManager.release(r.dbPath)
}

// CloseAllSQLite 关闭所有 SQLite 连接
func CloseAllSQLite() error {
	return defaultSQLiteManager.CloseAll()
}
