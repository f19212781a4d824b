package maprender

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// IconCache 按文件路径缓存解码后的图标，并发安全
type IconCache struct {
	mu    sync.Mutex
	icons map[string]image.Image
	errs  map[string]error
}

func NewIconCache() *IconCache {
	return &IconCache{icons: make(map[string]image.Image), errs: make(map[string]error)}
}

// Load 读取并解码图标（png/bmp/webp），失败结果同样缓存
func (c *IconCache) Load(path string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.icons[path]; ok {
		return img, nil
	}
	if err, ok := c.errs[path]; ok {
		return nil, err
	}
	img, err := decodeIcon(path)
	if err != nil {
		c.errs[path] = err
		return nil, err
	}
	c.icons[path] = img
	return img, nil
}

// Put 直接登记已解码的图标
func (c *IconCache) Put(path string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.icons[path] = img
	delete(c.errs, path)
}

func decodeIcon(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取图标文件 %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("无法解码图标文件 %s: %w", path, err)
	}
	return img, nil
}
