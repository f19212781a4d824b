// Package generator 地图瓦片生成流水线：选择 -> 预处理 -> 合并 -> 渲染 -> 压缩 -> 写入。
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"maptile-platform/Store"
	"maptile-platform/config"
	"maptile-platform/geom"
	"maptile-platform/logger"
	"maptile-platform/maprender"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

// 预处理输出通道容量
const preparerQueueSize = 16

// Options 生成器参数
type Options struct {
	Layer *config.LayerConfig
	// Level 目标客户端层级
	Level  uint32
	Config *config.GeneratorConfigData
	Writer Store.PacketWriter

	Logger   logger.Logger
	Registry *tilespace.Registry
	Icons    *maprender.IconCache
	// ProgressWriter 进度条输出，为空时为标准错误
	ProgressWriter io.Writer
}

// sublayer 一个参与渲染的子图层
type sublayer struct {
	cfg      *config.SubLayerConfig
	selector *Selector
	levels   *geom.MultiRange[uint32]
}

// Generator 渲染一个图层在一个层级上的全部地图瓦片
type Generator struct {
	opts        Options
	cfg         *config.GeneratorConfigData
	level       uint32
	log         logger.Logger
	fusionTS    tilespace.Tilespace
	clientTS    tilespace.Tilespace
	boundary    tilespace.WorldBoundary
	labelParams maprender.LabelParams
	icons       *maprender.IconCache
	sublayers   []*sublayer
	levels      *geom.MultiRange[uint32]

	runID          string
	targetCoverage tilespace.LevelCoverage
	fusionCoverage tilespace.LevelCoverage
	budget         *WriteBudget
	progress       *progress
	transparent    atomic.Uint64
}

// Summary 一次运行的统计
type Summary struct {
	RunID            string
	Layer            string
	Level            uint32
	SubLayers        int
	SuperTiles       int
	TransparentTiles uint64
	WriteStats
	TargetCoverage tilespace.LevelCoverage
	Elapsed        time.Duration
}

// TilesPerSecond 写出速度
func (s *Summary) TilesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TilesWritten) / s.Elapsed.Seconds()
}

func (s *Summary) String() string {
	return fmt.Sprintf("生成 %d 个地图瓦片（单色 %d，复用 %d，透明跳过 %d，%d 字节），耗时 %.3g 秒（%.3g 瓦片/秒）",
		s.TilesWritten, s.SingleColorTiles, s.DedupedTiles, s.TransparentTiles, s.BytesWritten,
		s.Elapsed.Seconds(), s.TilesPerSecond())
}

// New 校验参数并加载各子图层的数据源
func New(opts Options) (*Generator, error) {
	if opts.Layer == nil {
		return nil, errors.New("未指定图层")
	}
	if opts.Config == nil {
		return nil, errors.New("未指定生成器配置")
	}
	if opts.Writer == nil {
		return nil, errors.New("未指定瓦片包写入器")
	}
	if opts.Level > tilespace.MaxClientLevel {
		return nil, fmt.Errorf("层级 %d 超过最大客户端层级 %d", opts.Level, tilespace.MaxClientLevel)
	}
	if opts.Config.RenderThreads <= 0 {
		return nil, fmt.Errorf("渲染线程数必须大于0: %d", opts.Config.RenderThreads)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobalLogger()
	}
	if opts.Registry == nil {
		opts.Registry = tilespace.NewRegistry()
	}
	if opts.Icons == nil {
		opts.Icons = maprender.NewIconCache()
	}

	g := &Generator{
		opts:   opts,
		cfg:    opts.Config,
		level:  opts.Level,
		icons:  opts.Icons,
		levels: geom.NewMultiRange[uint32](),
		runID:  uuid.NewString(),
	}
	g.log = logger.With(logger.With(opts.Logger, "run", g.runID[:8]), "layer", opts.Layer.Name)
	g.fusionTS, g.clientTS = opts.Registry.MapSpaces(opts.Config.Mercator)
	if c := opts.Config.CutExtent; len(c) == 4 {
		g.boundary = tilespace.NewWorldBoundary(tilespace.NSEW(c[0], c[1], c[2], c[3]))
	} else {
		g.boundary = tilespace.DefaultWorldBoundary()
	}

	g.labelParams = maprender.DefaultLabelParams()
	if v := opts.Config.SmoothAngleLimit; v > 0 {
		g.labelParams.SmoothAngleLimit = v
	}
	if v := opts.Config.LabelSpacingGoal; v > 0 {
		g.labelParams.LabelSpacingGoal = v
	}
	if v := opts.Config.ShieldSpacingGoal; v > 0 {
		g.labelParams.ShieldSpacingGoal = v
	}

	for i := range opts.Layer.SubLayers {
		sl, err := g.buildSublayer(&opts.Layer.SubLayers[i], i)
		if err != nil {
			return nil, err
		}
		if sl != nil {
			g.sublayers = append(g.sublayers, sl)
		}
	}
	return g, nil
}

// buildSublayer 没有可用显示规则或在目标层级不绘制时返回 nil
func (g *Generator) buildSublayer(cfg *config.SubLayerConfig, index int) (*sublayer, error) {
	log := logger.With(g.log, "sublayer", cfg.Name)
	var active, disabled []*config.DisplayRuleConfig
	levels := geom.NewMultiRange[uint32]()
	for j := range cfg.DisplayRules {
		rule := &cfg.DisplayRules[j]
		if rule.SelectEmpty() {
			log.Warn("显示规则 %s 没有筛选条件，选不到任何要素，已跳过", rule.Name)
			continue
		}
		levels.Add(rule.MinLevel, rule.MaxLevel)
		if rule.EnabledForLevel(g.level) {
			active = append(active, rule)
		} else {
			disabled = append(disabled, rule)
		}
	}
	g.levels.AddRange(levels)
	if len(active) == 0 {
		if levels.Empty() {
			log.Warn("请检查第 %d 个子图层的显示规则", index+1)
		} else {
			log.Info("子图层在层级 %d 没有内容（有效层级 %s）", g.level, levels)
		}
		return nil, nil
	}

	source, err := LoadGeoJSONSource(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("子图层 %s: %w", cfg.Name, err)
	}
	if n := source.Skipped(); n > 0 {
		log.Warn("%s 中有 %d 个要素没有几何，已忽略", cfg.Source, n)
	}
	prefix := fmt.Sprintf("Layer %d", index+1)
	return &sublayer{
		cfg:      cfg,
		selector: NewSelector(prefix+":"+cfg.Name, g.level, g.fusionTS, source, active, disabled, log),
		levels:   levels,
	}, nil
}

// ValidLevels 各子图层显示规则覆盖的层级
func (g *Generator) ValidLevels() *geom.MultiRange[uint32] { return g.levels }

// RunID 本次运行的标识，同时写入瓦片包元数据
func (g *Generator) RunID() string { return g.runID }

// Run 执行整个流水线。任一阶段失败时整体中止，返回的错误满足 errors.Is(err, ErrAborted)。
func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: g.runID, Layer: g.opts.Layer.Name, Level: g.level}

	if err := g.selectAll(ctx); err != nil {
		return nil, err
	}

	if len(g.sublayers) == 0 {
		g.log.Info("图层在层级 %d 没有要渲染的要素，写入占位瓦片 %s", g.level, DummyTilePath)
		stats, err := WriteDummyTile(g.opts.Writer)
		if err != nil {
			return nil, err
		}
		summary.WriteStats = stats
		summary.Elapsed = time.Since(start)
		return summary, g.writeMeta(summary)
	}

	superTiles := g.countSuperTiles()
	summary.SubLayers = len(g.sublayers)
	summary.SuperTiles = superTiles
	summary.TargetCoverage = g.targetCoverage
	g.log.Info("开始渲染: %d 个子图层, %d 个超级瓦片, 目标范围 %s", len(g.sublayers), superTiles, g.targetCoverage)

	g.progress = newProgress(g.cfg.Progress, int64(superTiles), g.level, g.opts.ProgressWriter)
	stats, err := g.runPipeline(ctx)
	g.progress.finish()
	if err != nil {
		return nil, err
	}

	summary.WriteStats = stats
	summary.TransparentTiles = g.transparent.Load()
	summary.Elapsed = time.Since(start)
	g.log.Info("%s", summary)
	return summary, g.writeMeta(summary)
}

// selectAll 各子图层的选择器并行执行，没有选中任何瓦片的子图层被丢弃
func (g *Generator) selectAll(ctx context.Context) error {
	var abort abortState
	eg, egCtx := errgroup.WithContext(ctx)
	for _, sl := range g.sublayers {
		sel := sl.selector
		eg.Go(func() error {
			err := sel.Run(egCtx)
			abort.record(err)
			return err
		})
	}
	if err := abort.result(ctx, eg.Wait()); err != nil {
		return err
	}

	g.targetCoverage = tilespace.LevelCoverage{Level: g.level}
	g.fusionCoverage = tilespace.LevelCoverage{Level: g.level}
	kept := g.sublayers[:0]
	for _, sl := range g.sublayers {
		if len(sl.selector.Tiles()) == 0 {
			g.log.Warn("子图层 %s 没有可合并的要素", sl.cfg.Name)
			continue
		}
		kept = append(kept, sl)
		fusionCov := sl.selector.LevelCoverage()
		g.fusionCoverage.Grow(fusionCov)
		g.targetCoverage.Grow(tilespace.TranslateLevelCoverage(g.fusionTS, fusionCov, g.clientTS))
	}
	g.sublayers = kept

	g.targetCoverage.CropToWorld(g.clientTS)
	g.fusionCoverage.CropToWorld(g.fusionTS)
	cut := tilespace.FromNormExtents(g.clientTS, g.clientTS.ToNormExtents(g.boundary.For(g.clientTS)), g.level, g.level)
	g.targetCoverage.CropTo(cut.Extents)
	return nil
}

func (g *Generator) countSuperTiles() int {
	seen := make(map[quadtree.Path]struct{})
	for _, sl := range g.sublayers {
		for _, t := range sl.selector.Tiles() {
			seen[t.Path] = struct{}{}
		}
	}
	return len(seen)
}

// runPipeline 预处理、合并、渲染与写入 goroutine 通过有界通道连接
func (g *Generator) runPipeline(ctx context.Context) (WriteStats, error) {
	threads := g.cfg.RenderThreads
	g.budget = NewWriteBudget(g.cfg.MaxBytesSentToWrite, int64(g.cfg.WriteBufferBytes))

	var abort abortState
	eg, egCtx := errgroup.WithContext(ctx)
	run := func(f func(context.Context) error) {
		eg.Go(func() error {
			err := f(egCtx)
			abort.record(err)
			return err
		})
	}

	sources := make([]<-chan *PreparedTile, 0, len(g.sublayers))
	for _, sl := range g.sublayers {
		p := NewPreparer(sl.selector, g.fusionTS, preparerQueueSize)
		sources = append(sources, p.Output())
		run(p.Run)
	}

	free := make(chan *RenderItem, threads*2)
	for i := 0; i < threads*2; i++ {
		free <- newRenderItem(len(g.sublayers))
	}
	renderQueue := make(chan *RenderItem, threads)
	writeQueue := make(chan *compressedTile, threads*int(g.tilesPerSuperTile()))

	writer := NewTileWriter(g.opts.Writer, g.budget)
	run(func(ctx context.Context) error { return writer.Run(ctx, writeQueue) })

	var renderers sync.WaitGroup
	for i := 0; i < threads; i++ {
		renderers.Add(1)
		run(func(ctx context.Context) error {
			defer renderers.Done()
			return g.renderLoop(ctx, renderQueue, free, writeQueue)
		})
	}
	go func() {
		renderers.Wait()
		close(writeQueue)
	}()

	merger := NewMerger(sources)
	run(func(ctx context.Context) error { return g.mergeLoop(ctx, merger, free, renderQueue) })

	if err := abort.result(ctx, eg.Wait()); err != nil {
		return WriteStats{}, err
	}
	if err := g.opts.Writer.Flush(); err != nil {
		return WriteStats{}, fmt.Errorf("写入瓦片包失败: %w", err)
	}
	return writer.Stats(), nil
}

func (g *Generator) tilesPerSuperTile() uint64 {
	n := uint64(g.fusionTS.TileSize / g.clientTS.TileSize)
	return n * n
}

// mergeLoop 把同一路径上的各子图层输入组成 RenderItem，按合并顺序分配序号
func (g *Generator) mergeLoop(ctx context.Context, merger *Merger, free <-chan *RenderItem,
	render chan<- *RenderItem) error {
	defer close(render)

	var item *RenderItem
	var serial uint64
	push := func() error {
		select {
		case render <- item:
			item = nil
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		e, ok, err := merger.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if item != nil && e.Tile.Path != item.Path {
			if err := push(); err != nil {
				return err
			}
		}
		if item == nil {
			select {
			case item = <-free:
			case <-ctx.Done():
				return ctx.Err()
			}
			// 写入端落后太多时在这里等待
			if err := g.budget.Sent(ctx, item.BytesSentToWrite); err != nil {
				return err
			}
			item.BytesSentToWrite = 0
			item.Serial = serial
			serial++
			item.Path = e.Tile.Path
		}
		item.InLayers = append(item.InLayers, e.Tile.Layer)
	}
	if item != nil {
		return push()
	}
	return nil
}

// writeMeta 运行信息写入瓦片包元数据
func (g *Generator) writeMeta(s *Summary) error {
	projection := "flat"
	if g.cfg.Mercator {
		projection = "mercator"
	}
	meta := [][2]string{
		{"run_id", g.runID},
		{"layer", s.Layer},
		{"level", strconv.FormatUint(uint64(s.Level), 10)},
		{"projection", projection},
		{"tiles", strconv.FormatUint(s.TilesWritten, 10)},
		{"valid_levels", g.levels.String()},
	}
	for _, kv := range meta {
		if err := g.opts.Writer.SetMeta(kv[0], kv[1]); err != nil {
			return fmt.Errorf("写入元数据 %s 失败: %w", kv[0], err)
		}
	}
	return nil
}
