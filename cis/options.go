package cis

import (
	"net/http"
	"time"

	"github.com/ceyewan/sctid-kit/clog"
)

// Options 客户端的可选依赖
type Options struct {
	logger     clog.Logger
	httpClient *http.Client
	schemeName bool
	now        func() time.Time
}

// Option 函数式选项
type Option func(*Options)

// WithLogger 注入日志依赖
func WithLogger(logger clog.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithHTTPClient 替换底层 HTTP 客户端，其 Timeout 会被配置覆盖
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.httpClient = client
	}
}

// WithSchemeName 批量提交时附带 schemeName=SNOMEDID
func WithSchemeName() Option {
	return func(opts *Options) {
		opts.schemeName = true
	}
}

// WithClock 替换退避计算使用的时钟
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.now = now
	}
}

func parseOptions(opts []Option) *Options {
	result := &Options{
		logger: clog.Namespace("cis"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}
