package Store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"maptile-platform/quadtree"
)

// RedisCacheOptions 读回缓存配置
type RedisCacheOptions struct {
	Addr string
	// DB 小于 0 时自动选择 key 最少的库，避免影响其他程序
	DB int
	// Prefix key 前缀，通常为图层名
	Prefix string
	// Expiration 缓存过期时间（0 表示永不过期）
	Expiration time.Duration
}

// RedisTileCache 以 Redis 缓存已写出的瓦片，供预览等读回场景使用
type RedisTileCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// findSafeRedisDB 查找一个安全的 Redis 数据库编号（0-15）
// 选择 key 数量最少的数据库，避免影响其他程序
func findSafeRedisDB(ctx context.Context, addr string) int {
	minKeys := int64(-1)
	safeDB := 0

	// 遍历 0-15 号数据库
	for db := 0; db < 16; db++ {
		// 临时连接到该数据库
		testClient := redis.NewClient(&redis.Options{Addr: addr, DB: db})

		// 获取该数据库的 key 数量
		size, err := testClient.DBSize(ctx).Result()
		testClient.Close()

		if err != nil {
			continue // 跳过出错的数据库
		}

		// 找到 key 数量最少的数据库
		if minKeys == -1 || size < minKeys {
			minKeys = size
			safeDB = db
		}

		// 如果找到空数据库，直接使用
		if size == 0 {
			break
		}
	}
	return safeDB
}

// NewRedisTileCache 连接并 Ping，失败返回错误
func NewRedisTileCache(opts RedisCacheOptions) (*RedisTileCache, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := opts.DB
	if db < 0 {
		db = findSafeRedisDB(ctx, opts.Addr)
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}
	return &RedisTileCache{client: client, prefix: opts.Prefix, ttl: opts.Expiration}, nil
}

// buildRedisKey 前缀加四叉树路径字符串
func (c *RedisTileCache) buildRedisKey(p quadtree.Path) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, p.String(), p.Level())
}

func (c *RedisTileCache) Put(ctx context.Context, p quadtree.Path, data []byte) error {
	return c.client.Set(ctx, c.buildRedisKey(p), data, c.ttl).Err()
}

// PutBatch 使用 pipeline 批量写入，每 1000 条执行一次
func (c *RedisTileCache) PutBatch(ctx context.Context, tiles map[quadtree.Path][]byte) error {
	const batchSize = 1000
	pipe := c.client.Pipeline()
	n := 0
	for p, data := range tiles {
		pipe.Set(ctx, c.buildRedisKey(p), data, c.ttl)
		n++
		if n%batchSize == 0 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("redis 批量写入失败: %w", err)
			}
		}
	}
	if n%batchSize != 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis 批量写入失败: %w", err)
		}
	}
	return nil
}

// Get 未命中返回 ErrNotFound
func (c *RedisTileCache) Get(ctx context.Context, p quadtree.Path) ([]byte, error) {
	data, err := c.client.Get(ctx, c.buildRedisKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (c *RedisTileCache) Delete(ctx context.Context, p quadtree.Path) error {
	return c.client.Del(ctx, c.buildRedisKey(p)).Err()
}

func (c *RedisTileCache) Exists(ctx context.Context, p quadtree.Path) (bool, error) {
	n, err := c.client.Exists(ctx, c.buildRedisKey(p)).Result()
	return n > 0, err
}

// TTL 剩余过期时间；永不过期时为 -1
func (c *RedisTileCache) TTL(ctx context.Context, p quadtree.Path) (time.Duration, error) {
	return c.client.TTL(ctx, c.buildRedisKey(p)).Result()
}

func (c *RedisTileCache) Close() error {
	return c.client.Close()
}

// CachedPacketReader 先查 Redis，未命中再读包并回填缓存。缓存读写失败不影响结果。
type CachedPacketReader struct {
	PacketReader
	cache *RedisTileCache
}

func NewCachedPacketReader(r PacketReader, cache *RedisTileCache) *CachedPacketReader {
	return &CachedPacketReader{PacketReader: r, cache: cache}
}

func (r *CachedPacketReader) ReadTile(p quadtree.Path) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if data, err := r.cache.Get(ctx, p); err == nil {
		return data, nil
	}
	data, err := r.PacketReader.ReadTile(p)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Put(ctx, p, data)
	return data, nil
}

// Close 同时关闭包与缓存连接
func (r *CachedPacketReader) Close() error {
	return errors.Join(r.PacketReader.Close(), r.cache.Close())
}
