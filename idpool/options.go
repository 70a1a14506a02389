package idpool

import (
	"github.com/ceyewan/sctid-kit/cis"
	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/idpool/internal"
)

// Source 标识符来源，满足 cis.Client 的 ReserveIDs 契约
// 若同时实现 IsReservationAvailable() bool，注册表会据此报告可用性
type Source = internal.Source

// Options 注册表的可选依赖
type Options struct {
	logger     clog.Logger
	source     Source
	cisOptions []cis.Option
}

// Option 函数式选项
type Option func(*Options)

// WithLogger 注入日志依赖
func WithLogger(logger clog.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithSource 使用给定来源代替远程签发服务，此时忽略 CIS 配置
func WithSource(source Source) Option {
	return func(opts *Options) {
		opts.source = source
	}
}

// WithClientOptions 构造远程签发服务客户端时附加的选项
func WithClientOptions(opts ...cis.Option) Option {
	return func(o *Options) {
		o.cisOptions = append(o.cisOptions, opts...)
	}
}

func parseOptions(opts []Option) *Options {
	result := &Options{
		logger: clog.Namespace("idpool"),
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}
