package clog

import "go.uber.org/zap"

// Field 日志字段
type Field = zap.Field

// 本项目用到的字段构造函数
var (
	String   = zap.String
	Int      = zap.Int
	Float64  = zap.Float64
	Duration = zap.Duration
	Err      = zap.Error
	Any      = zap.Any
)
