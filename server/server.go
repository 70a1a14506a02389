// Package server 通过 HTTP 暴露标识符预留能力
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/idpool"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// MaxQuantity 单次请求最多预留的标识符数量
const MaxQuantity = 10000

const codeInternal = "INTERNAL_ERROR"

// ReserveRequest POST /api/identifiers 的请求体
type ReserveRequest struct {
	Namespace int    `json:"namespace" binding:"min=0,max=9999999"`
	Partition string `json:"partition" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=10000"`
}

// ReserveResponse POST /api/identifiers 的响应体
type ReserveResponse struct {
	Identifiers []int64 `json:"identifiers"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// Options 可选依赖
type Options struct {
	logger   clog.Logger
	gatherer prometheus.Gatherer
}

// Option 函数式选项
type Option func(*Options)

// WithLogger 注入日志依赖
func WithLogger(logger clog.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithGatherer 指定 /metrics 暴露的指标来源
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(opts *Options) {
		opts.gatherer = gatherer
	}
}

// Server 标识符预留的 HTTP 服务
type Server struct {
	provider idpool.Provider
	logger   clog.Logger
	engine   *gin.Engine
}

// New 创建服务并注册路由
func New(provider idpool.Provider, opts ...Option) *Server {
	options := &Options{
		logger:   clog.Namespace("http"),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(options)
	}

	s := &Server{
		provider: provider,
		logger:   options.logger,
		engine:   gin.New(),
	}

	s.engine.Use(TraceMiddleware())
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(RecoveryMiddleware(s.logger))

	api := s.engine.Group("/api")
	api.POST("/identifiers", s.reserveIdentifiers)
	api.GET("/status", s.status)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})))

	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) reserveIdentifiers(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, problem.New(problem.CodeInvalidRequest, "invalid reservation request", err))
		return
	}
	partition, err := sctid.ParsePartition(req.Partition)
	if err != nil {
		s.fail(c, problem.New(problem.CodeInvalidRequest, "invalid reservation request", err))
		return
	}

	ids, err := s.provider.ReserveIDs(c.Request.Context(), req.Namespace, partition, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ReserveResponse{Identifiers: ids})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Status())
}

// fail 按错误码写出错误响应
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	// 取消或超时发生在等待远程签发的过程中，按远程调用失败处理
	if problem.CodeOf(err) == "" && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = problem.ClientIntegration("reserve", err)
	}

	code := string(problem.CodeOf(err))
	if code == "" {
		code = codeInternal
	}
	c.JSON(statusFor(err), errorResponse{
		Code:    code,
		Message: err.Error(),
		TraceID: clog.TraceID(c.Request.Context()),
	})
}

// statusFor 错误码到 HTTP 状态码的映射，区分“未配置”和“出错”
func statusFor(err error) int {
	switch problem.CodeOf(err) {
	case problem.CodeInvalidRequest:
		return http.StatusBadRequest
	case problem.CodeServiceUnavailable:
		return http.StatusNotImplemented
	case problem.CodeClientIntegration, problem.CodeAuthentication:
		return http.StatusBadGateway
	case problem.CodePoolExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
