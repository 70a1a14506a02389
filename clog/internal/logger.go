package internal

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ExitFunc 允许测试替换 os.Exit
var ExitFunc = os.Exit

// SetExitFunc 设置退出函数
func SetExitFunc(fn func(int)) {
	ExitFunc = fn
}

// Logger 定义日志接口
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	WithOptions(opts ...zap.Option) Logger
	Namespace(name string) Logger
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 内部配置结构，由 clog.Config 转换而来
type Config struct {
	Level       string
	Format      string
	Output      string
	AddSource   bool
	EnableColor bool
	RootPath    string
	Rotation    *RotationConfig
}

// zapLogger 封装 zap.Logger，namespace 在写日志时作为首个字段附加
type zapLogger struct {
	*zap.Logger
	namespace string
}

// NewLogger 根据配置创建 logger
func NewLogger(cfg Config, namespace string) (Logger, error) {
	sink, err := buildWriteSyncer(cfg)
	if err != nil {
		return nil, err
	}

	encoder := createEncoder(cfg.Format, buildEncoderConfig(cfg.Format, cfg.EnableColor, cfg.RootPath, cfg.AddSource))
	core := zapcore.NewCore(encoder, sink, parseLevel(cfg.Level))

	opts := []zap.Option{
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}

	return &zapLogger{
		Logger:    zap.New(core, opts...),
		namespace: namespace,
	}, nil
}

// NewFallbackLogger 创建备用 logger
func NewFallbackLogger() Logger {
	logger, _ := zap.NewProduction()
	return &zapLogger{Logger: logger}
}

// NewNopLogger 创建不输出任何内容的 logger
func NewNopLogger() Logger {
	return &zapLogger{Logger: zap.NewNop()}
}

// namespaceField 创建命名空间字段
func namespaceField(name string) zap.Field {
	return zap.String("namespace", name)
}

// withNamespace 将 namespace 放在字段列表首位
func (l *zapLogger) withNamespace(fields []zap.Field) []zap.Field {
	if l.namespace == "" {
		return fields
	}
	all := make([]zap.Field, len(fields)+1)
	all[0] = namespaceField(l.namespace)
	copy(all[1:], fields)
	return all
}

// With 添加字段，namespace 字段会被忽略以免重复
func (l *zapLogger) With(fields ...zap.Field) Logger {
	filtered := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if field.Key != "namespace" {
			filtered = append(filtered, field)
		}
	}

	return &zapLogger{
		Logger:    l.Logger.With(filtered...),
		namespace: l.namespace,
	}
}

// WithOptions 添加 zap 选项
func (l *zapLogger) WithOptions(opts ...zap.Option) Logger {
	return &zapLogger{
		Logger:    l.Logger.WithOptions(opts...),
		namespace: l.namespace,
	}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) {
	l.Logger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, l.withNamespace(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...zap.Field) {
	l.Logger.WithOptions(zap.AddCallerSkip(1)).Info(msg, l.withNamespace(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...zap.Field) {
	l.Logger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, l.withNamespace(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...zap.Field) {
	l.Logger.WithOptions(zap.AddCallerSkip(1)).Error(msg, l.withNamespace(fields)...)
}

// exitHook 在 Fatal 日志写出后调用 ExitFunc，便于测试替换
type exitHook struct{}

func (exitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	ExitFunc(1)
}

// Fatal 记录日志后调用 ExitFunc(1)
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) {
	l.Logger.WithOptions(zap.AddCallerSkip(1), zap.WithFatalHook(exitHook{})).
		Fatal(msg, l.withNamespace(fields)...)
}

// Namespace 创建子命名空间，与父命名空间以 "." 连接
func (l *zapLogger) Namespace(name string) Logger {
	full := name
	if l.namespace != "" {
		full = l.namespace + "." + name
	}
	return &zapLogger{
		Logger:    l.Logger,
		namespace: full,
	}
}

// parseLevel 解析日志级别
func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
