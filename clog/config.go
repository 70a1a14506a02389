package clog

import (
	"fmt"

	"github.com/ceyewan/sctid-kit/clog/internal"
)

// Config 是 clog 组件的配置结构体
type Config struct {
	// Level 日志级别: "debug", "info", "warn", "error", "fatal"
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format 输出格式: "json" 或 "console"
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output 输出目标: "stdout", "stderr" 或文件路径
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// AddSource 是否记录调用位置
	AddSource bool `json:"addSource" yaml:"addSource" mapstructure:"addSource"`

	// EnableColor 是否启用颜色（仅 console 格式）
	EnableColor bool `json:"enableColor" yaml:"enableColor" mapstructure:"enableColor"`

	// RootPath 项目根目录，caller 只显示其后的相对路径
	RootPath string `json:"rootPath,omitempty" yaml:"rootPath,omitempty" mapstructure:"rootPath"`

	// Rotation 日志轮转配置（仅文件输出）
	Rotation *RotationConfig `json:"rotation,omitempty" yaml:"rotation,omitempty" mapstructure:"rotation"`
}

// RotationConfig 日志文件轮转设置
type RotationConfig struct {
	MaxSize    int  `json:"maxSize" mapstructure:"maxSize"`       // 单个文件最大尺寸(MB)
	MaxBackups int  `json:"maxBackups" mapstructure:"maxBackups"` // 最多保留文件个数
	MaxAge     int  `json:"maxAge" mapstructure:"maxAge"`         // 保留天数
	Compress   bool `json:"compress" mapstructure:"compress"`     // 是否压缩
}

// GetDefaultConfig 返回环境相关的默认配置
// development: console + debug；production: json + info
func GetDefaultConfig(env string) *Config {
	switch env {
	case "development":
		return &Config{
			Level:       "debug",
			Format:      "console",
			Output:      "stdout",
			AddSource:   true,
			EnableColor: true,
			RootPath:    "sctid-kit",
		}
	case "production":
		return &Config{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			AddSource: true,
		}
	default:
		return &Config{
			Level:       "info",
			Format:      "console",
			Output:      "stdout",
			AddSource:   true,
			EnableColor: true,
			RootPath:    "sctid-kit",
		}
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("log config cannot be nil")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.Output == "" {
		return fmt.Errorf("log output cannot be empty")
	}

	if c.Rotation != nil {
		if c.Rotation.MaxSize < 0 {
			return fmt.Errorf("rotation maxSize cannot be negative")
		}
		if c.Rotation.MaxBackups < 0 {
			return fmt.Errorf("rotation maxBackups cannot be negative")
		}
		if c.Rotation.MaxAge < 0 {
			return fmt.Errorf("rotation maxAge cannot be negative")
		}
	}

	return nil
}

// toInternal 转换为 internal 包使用的配置
func (c *Config) toInternal() internal.Config {
	cfg := internal.Config{
		Level:       c.Level,
		Format:      c.Format,
		Output:      c.Output,
		AddSource:   c.AddSource,
		EnableColor: c.EnableColor,
		RootPath:    c.RootPath,
	}
	if c.Rotation != nil {
		cfg.Rotation = &internal.RotationConfig{
			MaxSize:    c.Rotation.MaxSize,
			MaxBackups: c.Rotation.MaxBackups,
			MaxAge:     c.Rotation.MaxAge,
			Compress:   c.Rotation.Compress,
		}
	}
	return cfg
}
