package Store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StorageBackend 存储后端类型
type StorageBackend string

const (
	BackendBBolt  StorageBackend = "bbolt"
	BackendSQLite StorageBackend = "sqlite"
)

// ParseBackend 大小写不敏感，空串为 bbolt
func ParseBackend(s string) (StorageBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(BackendBBolt):
		return BackendBBolt, nil
	case string(BackendSQLite):
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("不支持的后端类型: %s", s)
}

// TileStorageConfig 瓦片存储配置
type TileStorageConfig struct {
	// 持久化后端选择（bbolt 或 sqlite）
	Backend StorageBackend
	// 持久化数据库目录
	DBDir string
	// 图层名，决定包文件名（bbolt）或表名前缀（sqlite）
	Layer string
	// 写缓冲区与索引缓冲区大小（字节），0 使用默认值
	WriteBufferBytes int
	IndexBufferBytes int
	// Redis 地址（为空则使用 localhost:6379）
	RedisAddr string
	// Redis 缓存过期时间（0 表示永不过期）
	CacheExpiration time.Duration
	// 是否启用 Redis 读回缓存
	EnableCache bool
}

// TileStorage 瓦片包的打开入口：按配置选择后端，读取时可叠加 Redis 缓存
type TileStorage struct {
	config TileStorageConfig
}

// NewTileStorage 创建瓦片存储管理器
func NewTileStorage(config TileStorageConfig) (*TileStorage, error) {
	// 验证配置
	if config.Backend != BackendBBolt && config.Backend != BackendSQLite {
		return nil, fmt.Errorf("不支持的后端类型: %s", config.Backend)
	}
	if config.DBDir == "" {
		return nil, errors.New("DBDir 不能为空")
	}
	if config.Layer == "" {
		return nil, errors.New("Layer 不能为空")
	}
	if config.EnableCache && config.RedisAddr == "" {
		config.RedisAddr = "localhost:6379"
	}
	return &TileStorage{config: config}, nil
}

// DBPath 包文件路径
func (ts *TileStorage) DBPath() string {
	return getDBPath(ts.config.DBDir, ts.config.Layer, ts.config.Backend)
}

// OpenWriter 打开写入器；已有的包以追加方式继续写入
func (ts *TileStorage) OpenWriter() (PacketWriter, error) {
	opts := PacketOptions{
		WriteBufferBytes: ts.config.WriteBufferBytes,
		IndexBufferBytes: ts.config.IndexBufferBytes,
	}
	switch ts.config.Backend {
	case BackendSQLite:
		return OpenSQLitePacketWriter(ts.DBPath(), ts.config.Layer, opts)
	default:
		return OpenBoltPacketWriter(ts.DBPath(), opts)
	}
}

// OpenReader 打开读取器，启用缓存时包一层 Redis
func (ts *TileStorage) OpenReader() (PacketReader, error) {
	var (
		r   PacketReader
		err error
	)
	switch ts.config.Backend {
	case BackendSQLite:
		r, err = OpenSQLitePacketReader(ts.DBPath(), ts.config.Layer)
	default:
		r, err = OpenBoltPacketReader(ts.DBPath())
	}
	if err != nil {
		return nil, err
	}
	if !ts.config.EnableCache {
		return r, nil
	}
	cache, err := NewRedisTileCache(RedisCacheOptions{
		Addr:       ts.config.RedisAddr,
		DB:         -1,
		Prefix:     ts.config.Layer,
		Expiration: ts.config.CacheExpiration,
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return NewCachedPacketReader(r, cache), nil
}

// GetBackend 获取当前持久化后端类型
func (ts *TileStorage) GetBackend() StorageBackend {
	return ts.config.Backend
}

// IsCacheEnabled 检查缓存是否启用
func (ts *TileStorage) IsCacheEnabled() bool {
	return ts.config.EnableCache
}

// CloseAll 关闭进程内所有仍打开的数据库连接
func CloseAll() error {
	return errors.Join(CloseAllBBolt(), CloseAllSQLite())
}
