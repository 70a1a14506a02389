package clog

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/sctid-kit/clog/internal"
	"go.uber.org/zap"
)

// Logger 统一的日志接口，底层为 zap.Logger
type Logger = internal.Logger

var (
	// defaultLogger 全局默认日志器
	defaultLogger atomic.Value

	defaultLoggerOnce sync.Once
)

// traceIDKey 上下文中 trace_id 的键
type traceIDKey struct{}

// SetExitFunc 替换 Fatal 使用的退出函数
func SetExitFunc(fn func(int)) {
	internal.SetExitFunc(fn)
}

// WithTraceID 将 trace_id 写入 context
// 通常在 HTTP 中间件或一次预留请求的入口处调用
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID 从 context 中取出 trace_id，不存在时返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithContext 返回全局 Logger，若 ctx 携带 trace_id 则自动附加该字段
func WithContext(ctx context.Context) Logger {
	logger := getDefaultLogger()
	if id := TraceID(ctx); id != "" {
		return logger.With(zap.String("trace_id", id))
	}
	return logger
}

// getDefaultLogger 延迟初始化全局日志器，失败时退化为 fallback logger
func getDefaultLogger() Logger {
	defaultLoggerOnce.Do(func() {
		logger, err := internal.NewLogger(GetDefaultConfig("").toInternal(), "")
		if err != nil {
			log.Printf("clog: failed to initialize default logger: %v", err)
			logger = internal.NewFallbackLogger()
		}
		defaultLogger.Store(logger)
	})
	return defaultLogger.Load().(Logger)
}

// New 创建独立的 Logger 实例
// ctx 只控制初始化过程，Logger 不持有它
func New(ctx context.Context, config *Config, opts ...Option) (Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := ParseOptions(opts...)
	logger, err := internal.NewLogger(config.toInternal(), options.Namespace)
	if err != nil {
		return internal.NewFallbackLogger(), err
	}
	return logger, nil
}

// Init 初始化全局默认日志器，通常在 main 中调用一次
// 初始化失败时保留原有 logger；重复调用会原子替换
func Init(ctx context.Context, config *Config, opts ...Option) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// 保证 defaultLoggerOnce 已执行，避免之后覆盖 Init 的结果
	getDefaultLogger()

	options := ParseOptions(opts...)
	logger, err := internal.NewLogger(config.toInternal(), options.Namespace)
	if err != nil {
		return err
	}
	defaultLogger.Store(logger)
	return nil
}

// Namespace 基于全局 Logger 创建子命名空间，可链式调用
//
//	poolLogger := clog.Namespace("idpool").Namespace("pool") // "idpool.pool"
func Namespace(name string) Logger {
	return getDefaultLogger().Namespace(name)
}

// Nop 返回丢弃所有输出的 Logger
func Nop() Logger {
	return internal.NewNopLogger()
}

// Debug 记录 Debug 级别日志
func Debug(msg string, fields ...Field) {
	getDefaultLogger().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info 记录 Info 级别日志
func Info(msg string, fields ...Field) {
	getDefaultLogger().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn 记录 Warn 级别日志
func Warn(msg string, fields ...Field) {
	getDefaultLogger().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error 记录 Error 级别日志
func Error(msg string, fields ...Field) {
	getDefaultLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Fatal 记录 Fatal 级别日志并退出进程
func Fatal(msg string, fields ...Field) {
	getDefaultLogger().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}
