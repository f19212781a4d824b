package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"maptile-platform/maprender"
	"maptile-platform/tilespace"
)

// LayerConfig 一个地图图层：若干子图层，每个子图层一个矢量数据源
type LayerConfig struct {
	Name      string           `yaml:"name" toml:"name"`
	SubLayers []SubLayerConfig `yaml:"sublayers" toml:"sublayers"`
}

// SubLayerConfig 子图层：数据源与按顺序匹配的显示规则
type SubLayerConfig struct {
	Name string `yaml:"name" toml:"name"`
	// Source GeoJSON 文件（FeatureCollection），相对路径基于图层文件所在目录
	Source       string              `yaml:"source" toml:"source"`
	DisplayRules []DisplayRuleConfig `yaml:"display_rules" toml:"display_rules"`
}

// DisplayRuleConfig 显示规则：样式、要素筛选、层级范围与标注字段。
// 一个要素只归入第一个匹配的规则。
type DisplayRuleConfig struct {
	maprender.DisplayRuleConfig `yaml:",inline"`

	// Select 属性名 -> 允许的取值，全部条件满足才选中；取值列表为空表示属性存在即可
	Select map[string][]string `yaml:"select" toml:"select"`
	// SelectAll 选中全部要素，忽略 Select
	SelectAll bool `yaml:"select_all" toml:"select_all"`

	MinLevel uint32 `yaml:"min_level" toml:"min_level"`
	MaxLevel uint32 `yaml:"max_level" toml:"max_level"`

	LabelField        string `yaml:"label_field" toml:"label_field"`
	ShieldField       string `yaml:"shield_field" toml:"shield_field"`
	OutlineLabelField string `yaml:"outline_label_field" toml:"outline_label_field"`
}

// SelectEmpty 规则选不到任何要素
func (d *DisplayRuleConfig) SelectEmpty() bool {
	return !d.SelectAll && len(d.Select) == 0
}

// Matches props 是否满足筛选条件
func (d *DisplayRuleConfig) Matches(props map[string]interface{}) bool {
	if d.SelectAll {
		return true
	}
	if len(d.Select) == 0 {
		return false
	}
	for key, allowed := range d.Select {
		v, ok := props[key]
		if !ok {
			return false
		}
		if len(allowed) == 0 {
			continue
		}
		s := fmt.Sprint(v)
		found := false
		for _, a := range allowed {
			if a == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EnabledForLevel 规则在 level 层是否绘制
func (d *DisplayRuleConfig) EnabledForLevel(level uint32) bool {
	return level >= d.MinLevel && level <= d.MaxLevel
}

// ErrNoLayerName 图层未命名
var ErrNoLayerName = errors.New("图层名不能为空")

// LoadLayerConfig 读取图层定义
// 输入: path - yaml 文件；扩展名为 .toml 时按 TOML 解析
// 输出: *LayerConfig - 已校验、数据源路径已解析为绝对路径, error - 错误信息
func LoadLayerConfig(path string) (*LayerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取图层文件失败: %w", err)
	}

	var layer LayerConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &layer)
		if err != nil {
			return nil, fmt.Errorf("解析图层文件 %s 失败: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("图层文件 %s 含未知字段: %v", path, undecoded)
		}
	} else {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&layer); err != nil {
			return nil, fmt.Errorf("解析图层文件 %s 失败: %w", path, err)
		}
	}

	base, err := ResolvePath(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := layer.normalize(base); err != nil {
		return nil, fmt.Errorf("图层文件 %s: %w", path, err)
	}
	return &layer, nil
}

// normalize 补齐默认值、解析相对路径并校验
func (l *LayerConfig) normalize(base string) error {
	if l.Name == "" {
		return ErrNoLayerName
	}
	names := make(map[string]bool, len(l.SubLayers))
	for i := range l.SubLayers {
		sub := &l.SubLayers[i]
		if sub.Name == "" {
			sub.Name = fmt.Sprintf("sublayer%d", i)
		}
		if names[sub.Name] {
			return fmt.Errorf("子图层 %s 重复", sub.Name)
		}
		names[sub.Name] = true
		if sub.Source == "" {
			return fmt.Errorf("子图层 %s 缺少 source", sub.Name)
		}
		sub.Source = resolveFrom(base, sub.Source)

		for j := range sub.DisplayRules {
			rule := &sub.DisplayRules[j]
			if rule.Name == "" {
				rule.Name = fmt.Sprintf("%s/rule%d", sub.Name, j)
			}
			if rule.MaxLevel == 0 {
				rule.MaxLevel = tilespace.MaxClientLevel
			}
			if rule.MinLevel > rule.MaxLevel {
				return fmt.Errorf("显示规则 %s: min_level %d 大于 max_level %d", rule.Name, rule.MinLevel, rule.MaxLevel)
			}
			if rule.MaxLevel > tilespace.MaxFusionLevel {
				return fmt.Errorf("显示规则 %s: max_level %d 超过 %d", rule.Name, rule.MaxLevel, tilespace.MaxFusionLevel)
			}
			if icon := rule.Feature.Shield.Icon; icon != "" {
				rule.Feature.Shield.Icon = resolveFrom(base, icon)
			}
		}
	}
	return nil
}

func resolveFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
