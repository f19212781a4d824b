package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// 默认查找路径
const (
	RootConfigPath   = "config.toml"
	FolderConfigPath = "config/config.toml"
)

// StoreSection 瓦片包输出配置段
type StoreSection struct {
	// 后端 bbolt|sqlite
	Backend   string `toml:"backend"`
	OutputDir string `toml:"output_dir"`
	// 读回时是否叠加 Redis 缓存
	EnableCache bool   `toml:"enable_cache"`
	RedisAddr   string `toml:"redis_addr"`
	// 缓存过期时间（秒），0 表示永不过期
	CacheExpiration int `toml:"cache_expiration"`
}

// LogSection 日志配置段
type LogSection struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config 项目配置结构
type Config struct {
	Generator GeneratorSection `toml:"generator"`
	Store     StoreSection     `toml:"store"`
	Log       LogSection       `toml:"log"`
}

var (
	loadOnce sync.Once
	loadErr  error
)

// DefaultConfig 未出现在配置文件中的字段使用这里的值
func DefaultConfig() Config {
	return Config{
		Generator: GeneratorSection{Progress: true},
		Store:     StoreSection{Backend: "bbolt", OutputDir: "output"},
		Log:       LogSection{Level: "info"},
	}
}

// LoadMergedInto 将项目根目录下的 config.toml 与 config/config.toml 合并后，解码到 out 指针。
// 合并策略：先加载 config/config.toml（作为默认值），再加载根目录 config.toml（作为覆盖）。
// 如果文件不存在则跳过。
func LoadMergedInto(out interface{}) error {
	// 先加载 config/config.toml（默认）
	if fileExists(FolderConfigPath) {
		if _, err := toml.DecodeFile(FolderConfigPath, out); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", FolderConfigPath, err)
		}
	}
	// 根目录 config.toml 覆盖
	if fileExists(RootConfigPath) {
		if _, err := toml.DecodeFile(RootConfigPath, out); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", RootConfigPath, err)
		}
	}
	return nil
}

// MustLoadMergedInto 与 LoadMergedInto 相同，但发生错误时 panic。
func MustLoadMergedInto(out interface{}) {
	loadOnce.Do(func() {
		loadErr = LoadMergedInto(out)
	})
	if loadErr != nil {
		panic(loadErr)
	}
}

// LoadConfig 读取配置
// 输入: path - 配置文件路径，为空时按默认查找路径合并加载
// 输出: *Config - 叠加在 DefaultConfig 之上的配置, error - 读取或解析失败
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		if err := LoadMergedInto(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("解析TOML配置失败: %w", err)
	}
	return &cfg, nil
}

// ResolvePath 如果传入相对路径，基于项目根目录返回绝对路径；若已是绝对路径则原样返回。
func ResolvePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
