package generator

import (
	"context"
	"sort"

	"maptile-platform/config"
	"maptile-platform/logger"
	"maptile-platform/quadtree"
	"maptile-platform/tilespace"
)

// superTileOversize 2048 超级瓦片含 8×8 个客户端瓦片，四周各多选一个客户端瓦片，
// 使跨瓦片的图标与标注在相邻瓦片中都能画出
const superTileOversize = (10.0 - 8.0) / 8.0

// SelectedTile 一个超级瓦片及落入其中的要素，Rules[i] 为归入第 i 条显示规则的要素下标
type SelectedTile struct {
	Path  quadtree.Path
	Rules [][]int
}

// Selector 空间查询：把子图层的要素按显示规则分组并分配到覆盖它们的超级瓦片
type Selector struct {
	name   string
	level  uint32
	ts     tilespace.Tilespace
	source *GeoJSONSource
	rules  []*config.DisplayRuleConfig
	log    logger.Logger

	coverage tilespace.LevelCoverage
	tiles    []SelectedTile
	counts   []int
}

// NewSelector rules 为在 level 层启用且筛选条件非空的显示规则，顺序即匹配顺序；
// disabled 为其余规则，命中它们的要素不会再落入后面的规则
func NewSelector(name string, level uint32, ts tilespace.Tilespace, source *GeoJSONSource,
	rules, disabled []*config.DisplayRuleConfig, log logger.Logger) *Selector {
	return &Selector{
		name:     name,
		level:    level,
		ts:       ts,
		source:   source,
		rules:    append(append([]*config.DisplayRuleConfig(nil), rules...), disabled...),
		log:      log,
		coverage: tilespace.LevelCoverage{Level: level},
		counts:   make([]int, len(rules)),
	}
}

func (s *Selector) Name() string { return s.name }

// Rules 启用的显示规则
func (s *Selector) Rules() []*config.DisplayRuleConfig { return s.rules[:len(s.counts)] }

func (s *Selector) Source() *GeoJSONSource { return s.source }

// LevelCoverage 全部选中瓦片的外包范围（超级瓦片空间）
func (s *Selector) LevelCoverage() tilespace.LevelCoverage { return s.coverage }

// Tiles 按四叉树路径排序的选中瓦片
func (s *Selector) Tiles() []SelectedTile { return s.tiles }

// RuleCounts 每条启用规则选中的要素数
func (s *Selector) RuleCounts() []int { return s.counts }

// assign 要素归入第一条匹配的规则；返回 -1 表示不属于任何启用规则
func (s *Selector) assign(f *sourceFeature) int {
	for i, rule := range s.rules {
		if rule.Matches(f.props) {
			if i >= len(s.counts) {
				return -1
			}
			return i
		}
	}
	return -1
}

// Run 执行查询，ctx 取消时提前返回
func (s *Selector) Run(ctx context.Context) error {
	byPath := make(map[quadtree.Path]*SelectedTile)
	numRules := len(s.counts)

	for i := 0; i < s.source.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		f := s.source.feature(i)
		rule := s.assign(f)
		if rule < 0 {
			continue
		}
		s.counts[rule]++

		norm := tilespace.NSEW(f.bound.Max[1], f.bound.Min[1], f.bound.Max[0], f.bound.Min[0])
		cov := tilespace.FromNormExtentsWithOversizeFactor(s.ts, norm, s.level, s.level, superTileOversize)
		cov.CropToWorld(s.ts)
		if cov.Empty() {
			continue
		}
		s.coverage.Grow(cov)

		e := cov.Extents
		for row := e.BeginRow(); row < e.EndRow(); row++ {
			for col := e.BeginCol(); col < e.EndCol(); col++ {
				p := quadtree.New(s.level, row, col)
				t, ok := byPath[p]
				if !ok {
					t = &SelectedTile{Path: p, Rules: make([][]int, numRules)}
					byPath[p] = t
				}
				t.Rules[rule] = append(t.Rules[rule], i)
			}
		}
	}

	s.tiles = make([]SelectedTile, 0, len(byPath))
	for _, t := range byPath {
		s.tiles = append(s.tiles, *t)
	}
	sort.Slice(s.tiles, func(i, j int) bool { return s.tiles[i].Path.LessThan(s.tiles[j].Path) })

	s.log.Debug("子图层 %s: %d 个要素选中 %d 个超级瓦片，范围 %s", s.name, s.source.Len(), len(s.tiles), s.coverage)
	return nil
}
