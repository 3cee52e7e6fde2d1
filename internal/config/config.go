package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 prosody 的顶层配置结构。
type Config struct {
	Voice    VoiceConfig    `yaml:"voice"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// VoiceConfig 音库配置。树和时长表可以来自文件，也可以来自 SQLite 音库。
type VoiceConfig struct {
	// DBPath 音库数据库路径。
	DBPath string `yaml:"db_path"`
	// Trees 文本格式树文件路径，键为 duration、accent、tone、phrase。
	// 未列出的树从数据库按同名读取。
	Trees map[string]string `yaml:"trees"`
	// DurationStats 音素时长表文件；为空则从数据库读取。
	DurationStats string `yaml:"duration_stats"`
	// DurationStretch 全局时长拉伸系数。
	DurationStretch float32 `yaml:"duration_stretch"`
}

// PipelineConfig 标注流水线配置。
type PipelineConfig struct {
	Workers int      `yaml:"workers"`
	Modules []string `yaml:"modules"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// MetricsConfig 指标输出配置。
type MetricsConfig struct {
	// Textfile 不为空时，在程序退出前把指标写到该文件。
	Textfile string `yaml:"textfile"`
}

// Default 返回全部取默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查取值范围。
func (c *Config) Validate() error {
	if c.Voice.DurationStretch < 0 {
		return fmt.Errorf("voice.duration_stretch 不能为负: %v", c.Voice.DurationStretch)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers 不能为负: %d", c.Pipeline.Workers)
	}
	for name := range c.Voice.Trees {
		switch name {
		case "duration", "accent", "tone", "phrase":
		default:
			return fmt.Errorf("voice.trees 中未知的树: %s", name)
		}
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Voice.DurationStretch == 0 {
		cfg.Voice.DurationStretch = 1
	}
	if cfg.Voice.DBPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Voice.DBPath = filepath.Join(home, ".prosody", "voice.db")
		} else {
			cfg.Voice.DBPath = "./prosody-voice.db"
		}
	}
	cfg.Voice.DBPath = expandHome(cfg.Voice.DBPath)
	cfg.Voice.DurationStats = expandHome(cfg.Voice.DurationStats)
	for k, v := range cfg.Voice.Trees {
		cfg.Voice.Trees[k] = expandHome(v)
	}

	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if len(cfg.Pipeline.Modules) == 0 {
		cfg.Pipeline.Modules = []string{"phraser", "intonator", "durator"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	cfg.Log.File = expandHome(cfg.Log.File)
}

// expandHome 把开头的 ~/ 替换为用户主目录，Go 不会自动展开。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}
