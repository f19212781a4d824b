package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maptile-platform/Store"
	"maptile-platform/config"
	"maptile-platform/generator"
	"maptile-platform/logger"
	"maptile-platform/maprender"
	"maptile-platform/tilespace"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "配置文件路径（为空时合并 config/config.toml 与 config.toml）")
	layerFile := flag.String("layer", "", "图层配置文件（.yaml/.yml/.toml），覆盖配置中的 layer_file")
	level := flag.Uint("level", 0, "要生成的客户端层级")
	mercator := flag.Bool("mercator", false, "使用 Mercator 投影")
	backend := flag.String("backend", "", "存储后端 bbolt|sqlite，覆盖配置")
	output := flag.String("output", "", "瓦片包输出目录，覆盖配置")
	threads := flag.Int("threads", 0, "渲染线程数，0 使用配置或物理核心数")
	debug := flag.Bool("debug", false, "渲染调试背景")
	noProgress := flag.Bool("no-progress", false, "不显示进度条")
	logLevel := flag.String("log-level", "", "日志级别 debug|info|warn|error")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 2
	}
	applyFlags(cfg, flagSet{
		layerFile: *layerFile, mercator: *mercator, backend: *backend, output: *output,
		threads: *threads, debug: *debug, noProgress: *noProgress, logLevel: *logLevel,
	})

	log, err := logger.NewLogrusLogger(logger.LogrusOptions{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 2
	}
	defer log.Close()
	logger.SetGlobalLogger(log)

	if *level > tilespace.MaxClientLevel {
		log.Error("层级 %d 超过最大客户端层级 %d", *level, tilespace.MaxClientLevel)
		return 2
	}
	genCfg, err := config.ValidateGeneratorConfig(cfg.Generator)
	if err != nil {
		log.Error("生成器配置错误: %v", err)
		return 2
	}
	if genCfg.LayerFile == "" {
		log.Error("未指定图层配置文件，使用 -layer 或 [generator] layer_file")
		return 2
	}
	layer, err := config.LoadLayerConfig(genCfg.LayerFile)
	if err != nil {
		log.Error("加载图层配置失败: %v", err)
		return 2
	}

	reportSystem(log, cfg.Store.OutputDir)

	if err := generate(cfg, genCfg, layer, uint32(*level), log); err != nil {
		if errors.Is(err, generator.ErrAborted) {
			// 已中止的运行只留下部分瓦片，包文件不可发布
			log.Error("%v，瓦片包 %s 不完整", err, layer.Name)
		} else {
			log.Error("生成失败: %v", err)
		}
		return 1
	}
	return 0
}

type flagSet struct {
	layerFile  string
	mercator   bool
	backend    string
	output     string
	threads    int
	debug      bool
	noProgress bool
	logLevel   string
}

// applyFlags 命令行参数覆盖配置文件
func applyFlags(cfg *config.Config, f flagSet) {
	if f.layerFile != "" {
		cfg.Generator.LayerFile = f.layerFile
	}
	if f.mercator {
		cfg.Generator.Mercator = true
	}
	if f.backend != "" {
		cfg.Store.Backend = f.backend
	}
	if f.output != "" {
		cfg.Store.OutputDir = f.output
	}
	if f.threads > 0 {
		cfg.Generator.RenderThreads = f.threads
	}
	if f.debug {
		cfg.Generator.Debug = true
	}
	if f.noProgress {
		cfg.Generator.Progress = false
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
}

func generate(cfg *config.Config, genCfg *config.GeneratorConfigData, layer *config.LayerConfig,
	level uint32, log logger.Logger) (err error) {
	backend, err := Store.ParseBackend(cfg.Store.Backend)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Store.OutputDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	storage, err := Store.NewTileStorage(Store.TileStorageConfig{
		Backend:          backend,
		DBDir:            cfg.Store.OutputDir,
		Layer:            layer.Name,
		WriteBufferBytes: genCfg.WriteBufferBytes,
		IndexBufferBytes: genCfg.IndexBufferBytes,
		RedisAddr:        cfg.Store.RedisAddr,
		CacheExpiration:  time.Duration(cfg.Store.CacheExpiration) * time.Second,
		EnableCache:      cfg.Store.EnableCache,
	})
	if err != nil {
		return err
	}
	writer, err := storage.OpenWriter()
	if err != nil {
		return fmt.Errorf("打开瓦片包 %s 失败: %w", storage.DBPath(), err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("关闭瓦片包失败: %w", cerr)
		}
		if cerr := Store.CloseAll(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	g, err := generator.New(generator.Options{
		Layer:    layer,
		Level:    level,
		Config:   genCfg,
		Writer:   writer,
		Logger:   log,
		Registry: tilespace.NewRegistry(),
		Icons:    maprender.NewIconCache(),
	})
	if err != nil {
		return err
	}
	if levels := g.ValidLevels(); !levels.Empty() && !levels.Contains(level) {
		log.Warn("图层 %s 的显示规则只覆盖层级 %s", layer.Name, levels)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("生成图层 %s 第 %d 层 -> %s", layer.Name, level, storage.DBPath())
	summary, err := g.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "图层 %s 第 %d 层: %s\n", layer.Name, level, summary)
	return nil
}
