package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1 << 20

// 缓冲区默认值（MB）
const (
	DefaultWriteBufferMB = 10
	DefaultIndexBufferMB = 10
	DefaultSuspendMB     = 40
)

// GeneratorConfigFile 只含生成器配置段的配置文件结构（用于TOML解析）
type GeneratorConfigFile struct {
	Generator GeneratorSection `toml:"generator"`
}

// GeneratorSection 地图瓦片生成配置段，零值字段取默认值
type GeneratorSection struct {
	Mercator      bool `toml:"mercator"`
	RenderThreads int  `toml:"render_threads"`
	WriteBufferMB int  `toml:"write_buffer_mb"`
	IndexBufferMB int  `toml:"index_buffer_mb"`
	SuspendMB     int  `toml:"suspend_mb"`
	// 调试模式下瓦片底色为 50% 灰
	Debug    bool `toml:"debug"`
	Progress bool `toml:"progress"`
	// 图层定义文件（yaml 或 toml）
	LayerFile string `toml:"layer_file"`
	// 裁剪范围 [north, south, east, west]（度），为空时为全球
	CutExtent []float64 `toml:"cut_extent"`

	SmoothAngleLimit  float64 `toml:"smooth_angle_limit"`
	LabelSpacingGoal  float64 `toml:"label_spacing_goal"`
	ShieldSpacingGoal float64 `toml:"shield_spacing_goal"`
}

// GeneratorConfigData 校验并补齐默认值后的生成器配置
type GeneratorConfigData struct {
	Mercator         bool
	RenderThreads    int
	WriteBufferBytes int
	IndexBufferBytes int
	MaxSuspendBytes  int64
	// MaxBytesSentToWrite 已提交但尚未写出的字节上限
	MaxBytesSentToWrite int64
	Debug               bool
	Progress            bool
	LayerFile           string
	CutExtent           []float64

	SmoothAngleLimit  float64
	LabelSpacingGoal  float64
	ShieldSpacingGoal float64
}

// LoadGeneratorConfigFromTOML 从TOML文件加载生成器配置
// 输入: configPath - 配置文件路径
// 输出: *GeneratorConfigData - 配置结果, error - 错误信息
func LoadGeneratorConfigFromTOML(configPath string) (*GeneratorConfigData, error) {
	var configFile GeneratorConfigFile

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if _, err := toml.Decode(string(data), &configFile); err != nil {
		return nil, fmt.Errorf("解析TOML配置失败: %w", err)
	}
	return ValidateGeneratorConfig(configFile.Generator)
}

// ValidateGeneratorConfig 补齐默认值并校验生成器配置
// 输入: section - 配置段
// 输出: *GeneratorConfigData - 配置数据, error - 错误信息
func ValidateGeneratorConfig(section GeneratorSection) (*GeneratorConfigData, error) {
	if section.RenderThreads < 0 {
		return nil, fmt.Errorf("render_threads 不能为负数")
	}
	if section.WriteBufferMB < 0 || section.IndexBufferMB < 0 || section.SuspendMB < 0 {
		return nil, fmt.Errorf("缓冲区大小不能为负数")
	}
	if section.SmoothAngleLimit < 0 || section.SmoothAngleLimit >= 180 {
		return nil, fmt.Errorf("smooth_angle_limit 必须在 [0, 180) 内")
	}
	if section.LabelSpacingGoal < 0 || section.ShieldSpacingGoal < 0 {
		return nil, fmt.Errorf("标注间距不能为负数")
	}
	if n := len(section.CutExtent); n != 0 && n != 4 {
		return nil, fmt.Errorf("cut_extent 需要 4 个值 [north, south, east, west]，实际 %d 个", n)
	}
	if len(section.CutExtent) == 4 {
		north, south, east, west := section.CutExtent[0], section.CutExtent[1], section.CutExtent[2], section.CutExtent[3]
		if north <= south || east <= west || north > 90 || south < -90 || east > 180 || west < -180 {
			return nil, fmt.Errorf("cut_extent 范围非法: %v", section.CutExtent)
		}
	}

	cfg := &GeneratorConfigData{
		Mercator:          section.Mercator,
		RenderThreads:     section.RenderThreads,
		WriteBufferBytes:  orDefault(section.WriteBufferMB, DefaultWriteBufferMB) * mb,
		IndexBufferBytes:  orDefault(section.IndexBufferMB, DefaultIndexBufferMB) * mb,
		MaxSuspendBytes:   int64(orDefault(section.SuspendMB, DefaultSuspendMB)) * mb,
		Debug:             section.Debug,
		Progress:          section.Progress,
		LayerFile:         section.LayerFile,
		CutExtent:         section.CutExtent,
		SmoothAngleLimit:  section.SmoothAngleLimit,
		LabelSpacingGoal:  section.LabelSpacingGoal,
		ShieldSpacingGoal: section.ShieldSpacingGoal,
	}
	if cfg.RenderThreads == 0 {
		cfg.RenderThreads = defaultRenderThreads()
	}

	cfg.MaxBytesSentToWrite = cfg.MaxSuspendBytes - int64(cfg.WriteBufferBytes) - int64(cfg.IndexBufferBytes)
	if cfg.MaxBytesSentToWrite <= 0 {
		return nil, fmt.Errorf("suspend_mb (%d) 必须大于 write_buffer_mb 与 index_buffer_mb 之和 (%d)",
			cfg.MaxSuspendBytes/mb, (cfg.WriteBufferBytes+cfg.IndexBufferBytes)/mb)
	}
	if cfg.MaxBytesSentToWrite < int64(cfg.WriteBufferBytes) {
		return nil, fmt.Errorf("suspend_mb 过小: 待写字节上限 %d 小于写缓冲区 %d", cfg.MaxBytesSentToWrite, cfg.WriteBufferBytes)
	}
	if avail := availableMemory(); avail > 0 && uint64(cfg.MaxSuspendBytes) > avail/2 {
		return nil, fmt.Errorf("suspend_mb (%d) 超过可用内存的一半 (%d MB)", cfg.MaxSuspendBytes/mb, avail/2/mb)
	}
	return cfg, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// defaultRenderThreads 物理核数，取不到时用逻辑核数
func defaultRenderThreads() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// availableMemory 取不到时返回 0，不做限制
func availableMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Available
}
