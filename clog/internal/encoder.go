package internal

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// buildEncoderConfig 根据格式创建编码器配置
func buildEncoderConfig(format string, enableColor bool, rootPath string, addSource bool) zapcore.EncoderConfig {
	config := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	if addSource {
		config.CallerKey = "caller"
		config.EncodeCaller = customCallerEncoder(rootPath)
	} else {
		config.CallerKey = zapcore.OmitKey
	}

	if format == "console" {
		if enableColor {
			config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	return config
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// customCallerEncoder 截取 rootPath 之后的相对路径；未设置 rootPath 时使用短路径
func customCallerEncoder(rootPath string) zapcore.CallerEncoder {
	return func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		if !caller.Defined {
			enc.AppendString("undefined")
			return
		}

		if rootPath == "" {
			zapcore.ShortCallerEncoder(caller, enc)
			return
		}

		if idx := strings.Index(caller.File, rootPath); idx != -1 {
			relative := strings.TrimLeft(caller.File[idx+len(rootPath):], "/\\")
			enc.AppendString(relative + ":" + strconv.Itoa(caller.Line))
			return
		}

		enc.AppendString(caller.String())
	}
}

// createEncoder 根据格式创建编码器
func createEncoder(format string, config zapcore.EncoderConfig) zapcore.Encoder {
	if format == "console" {
		return zapcore.NewConsoleEncoder(config)
	}
	return zapcore.NewJSONEncoder(config)
}
