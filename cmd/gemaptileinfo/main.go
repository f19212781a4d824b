// gemaptileinfo 查看瓦片包元数据并读取单个瓦片
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	"maptile-platform/Store"
	"maptile-platform/config"
	"maptile-platform/quadtree"
)

var metaKeys = []string{"run_id", "layer", "level", "projection", "tiles", "valid_levels"}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	layer := flag.String("layer", "", "图层名")
	dir := flag.String("dir", "", "瓦片包目录，覆盖配置")
	backend := flag.String("backend", "", "存储后端 bbolt|sqlite，覆盖配置")
	level := flag.Int("level", -1, "瓦片层级，小于 0 时只显示元数据")
	row := flag.Uint("row", 0, "瓦片行（自下而上）")
	col := flag.Uint("col", 0, "瓦片列")
	dummy := flag.Bool("dummy", false, "读取占位瓦片 (6, 31, 7)")
	out := flag.String("o", "", "把瓦片 PNG 写入文件")
	flag.Parse()

	if *layer == "" {
		log.Fatalf("必须指定 -layer")
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dir != "" {
		cfg.Store.OutputDir = *dir
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	b, err := Store.ParseBackend(cfg.Store.Backend)
	if err != nil {
		log.Fatalf("%v", err)
	}

	storage, err := Store.NewTileStorage(Store.TileStorageConfig{
		Backend:         b,
		DBDir:           cfg.Store.OutputDir,
		Layer:           *layer,
		RedisAddr:       cfg.Store.RedisAddr,
		CacheExpiration: time.Duration(cfg.Store.CacheExpiration) * time.Second,
		EnableCache:     cfg.Store.EnableCache,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	r, err := storage.OpenReader()
	if err != nil {
		log.Fatalf("打开瓦片包 %s 失败: %v", storage.DBPath(), err)
	}
	defer r.Close()

	fmt.Printf("瓦片包: %s\n", storage.DBPath())
	for _, key := range metaKeys {
		v, err := r.Meta(key)
		if err != nil {
			v = "-"
		}
		fmt.Printf("  %-13s %s\n", key+":", v)
	}

	var p quadtree.Path
	switch {
	case *dummy:
		p = quadtree.New(6, 31, 7)
	case *level >= 0:
		p = quadtree.New(uint32(*level), uint32(*row), uint32(*col))
	default:
		return
	}

	ref, err := r.Lookup(p)
	if err != nil {
		log.Fatalf("瓦片 %s: %v", p, err)
	}
	data, err := r.ReadTile(p)
	if err != nil {
		log.Fatalf("读取瓦片 %s 失败: %v", p, err)
	}
	fmt.Printf("瓦片 %s:\n", p)
	fmt.Printf("  偏移: %d\n  大小: %d 字节\n  CRC: %08x\n", ref.Offset, ref.Size, ref.CRC)
	if pc, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
		fmt.Printf("  PNG: %dx%d\n", pc.Width, pc.Height)
	} else {
		fmt.Printf("  不是 PNG: %v\n", err)
	}
	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatalf("写入 %s 失败: %v", *out, err)
		}
	}
}
