package Store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"maptile-platform/quadtree"
)

// getRedisAddr 获取 Redis 地址（支持环境变量配置）
func getRedisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return addr
}

// newTestCache Redis 不可用时跳过
func newTestCache(t *testing.T, ttl time.Duration) *RedisTileCache {
	t.Helper()
	cache, err := NewRedisTileCache(RedisCacheOptions{
		Addr: getRedisAddr(), DB: 15, Prefix: "test_" + t.Name(), Expiration: ttl,
	})
	if err != nil {
		t.Skipf("Redis 不可用，跳过: %v", err)
	}
	return cache
}

func TestRedisTileCache(t *testing.T) {
	cache := newTestCache(t, 0)
	defer cache.Close()
	ctx := context.Background()
	p := quadtree.New(4, 3, 5)

	if err := cache.Put(ctx, p, []byte("png")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	got, err := cache.Get(ctx, p)
	if err != nil || string(got) != "png" {
		t.Fatalf("读取失败: %q, %v", got, err)
	}
	if err := cache.Delete(ctx, p); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := cache.Get(ctx, p); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后应返回 ErrNotFound, got %v", err)
	}
}

func TestRedisTileCacheExpiration(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	defer cache.Close()
	ctx := context.Background()

	tiles := map[quadtree.Path][]byte{}
	for col := uint32(0); col < 4; col++ {
		tiles[quadtree.New(2, 0, col)] = []byte{byte(col)}
	}
	if err := cache.PutBatch(ctx, tiles); err != nil {
		t.Fatalf("批量写入失败: %v", err)
	}
	for p := range tiles {
		ttl, err := cache.TTL(ctx, p)
		if err != nil || ttl <= 0 || ttl > time.Minute {
			t.Errorf("%s 过期时间错误: %v, %v", p, ttl, err)
		}
		_ = cache.Delete(ctx, p)
	}
}

// TestCachedPacketReader 缓存未命中时读包并回填
func TestCachedPacketReader(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ts := newTestStorage(t, BackendBBolt)
	w, err := ts.OpenWriter()
	if err != nil {
		t.Fatalf("打开写入器失败: %v", err)
	}
	p := quadtree.New(5, 10, 11)
	ref, _ := WritePacketBlock(w, []byte("from-packet"))
	_ = w.WriteIndex(p, ref)
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}

	inner, err := OpenBoltPacketReader(ts.DBPath())
	if err != nil {
		t.Fatalf("打开读取器失败: %v", err)
	}
	r := NewCachedPacketReader(inner, cache)
	defer r.Close()

	ctx := context.Background()
	_ = cache.Delete(ctx, p)
	got, err := r.ReadTile(p)
	if err != nil || string(got) != "from-packet" {
		t.Fatalf("读取失败: %q, %v", got, err)
	}
	if ok, _ := cache.Exists(ctx, p); !ok {
		t.Error("缓存未回填")
	}
	_ = cache.Delete(ctx, p)
}
