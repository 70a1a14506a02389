// Package idpool 缓存从远程签发服务预留的 SNOMED CT 标识符
// 每个 (命名空间, 分区类别) 对应一个缓冲池，由 Provider 统一管理
package idpool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/ceyewan/sctid-kit/cis"
	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/idpool/internal"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// 状态信息
const (
	StatusNotConfigured = "CIS not configured"
	StatusConnecting    = "CIS unreachable, retrying connection"
	StatusBackoff       = "CIS unusable, backoff in effect"
	StatusRunning       = "running"
	StatusClosed        = "closed"
)

// Provider 标识符预留的唯一入口
type Provider interface {
	// ReserveIDs 从对应缓冲池依次弹出 quantity 个标识符，按弹出顺序返回
	// 未配置远程服务时返回 SERVICE_UNAVAILABLE
	ReserveIDs(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error)
	// IsReservationAvailable 是否可以预留标识符
	IsReservationAvailable() bool
	// Status 运行状态与各缓冲池大小
	Status() Status
	// Maintain 对所有缓冲池执行一次补充，单个池的失败不影响其他池
	// 启动时远程服务不可达的，先重试连接
	Maintain(ctx context.Context) error
	// Close 关闭注册表，之后的预留返回 SERVICE_UNAVAILABLE
	Close() error
}

// Status 注册表状态
type Status struct {
	Running bool         `json:"running"`
	Message string       `json:"message"`
	Error   string       `json:"error,omitempty"`
	Pools   []PoolStatus `json:"pools"`
}

// PoolStatus 单个缓冲池的状态
type PoolStatus struct {
	Namespace int    `json:"namespace"`
	Partition string `json:"partition"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

// availability 可选实现，报告来源当前是否可用
type availability interface {
	IsReservationAvailable() bool
}

type registry struct {
	config     *Config
	trigger    internal.Trigger
	logger     clog.Logger
	pools      *xsync.MapOf[Key, *internal.Pool]
	closed     atomic.Bool
	configured bool

	// connect 构造远程服务客户端，注入 Source 时为 nil
	connect   func(ctx context.Context) (Source, error)
	connectMu sync.Mutex

	mu         sync.RWMutex
	source     Source
	connectErr error
}

// New 初始化注册表：构造远程服务客户端、预创建缓冲池并执行一次补充
// 未配置远程服务地址时返回一个永久不可用的注册表；
// 配置或凭据错误直接返回，远程服务暂时不可达时返回的注册表由 Maintain 重试连接
func New(ctx context.Context, config *Config, opts ...Option) (Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options := parseOptions(opts)
	logger := options.logger

	r := &registry{
		config:  config,
		trigger: internal.Trigger(config.RefillTrigger),
		logger:  logger,
		pools:   xsync.NewMapOf[Key, *internal.Pool](),
	}

	switch {
	case options.source != nil:
		r.configured = true
		r.source = options.source
		r.precreate()
	case cis.IsConfigured(config.endpoint()):
		r.configured = true
		clientOpts := append([]cis.Option{cis.WithLogger(logger.Namespace("cis"))}, options.cisOptions...)
		r.connect = func(ctx context.Context) (Source, error) {
			client, err := cis.New(ctx, config.CIS, clientOpts...)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
		if err := r.ensureConnected(ctx); err != nil {
			if problem.CodeOf(err) != problem.CodeClientIntegration {
				logger.Error("failed to create CIS client", clog.Err(err))
				return nil, err
			}
			logger.Warn("CIS unreachable, connection will be retried by maintenance", clog.Err(err))
			return r, nil
		}
	default:
		logger.Warn("CIS endpoint not configured, identifier reservation disabled",
			clog.String("endpoint", config.endpoint()))
		return r, nil
	}

	// 预热失败不阻止启动，之后由维护任务或按需补充
	if err := r.Maintain(ctx); err != nil {
		logger.Warn("initial pool top-up failed", clog.Err(err))
	}

	logger.Info("identifier pools initialised",
		clog.Int("pools", r.pools.Size()),
		clog.Int("capacity", config.Capacity),
		clog.Float64("refill_threshold", config.RefillThreshold),
		clog.String("refill_trigger", config.RefillTrigger))
	return r, nil
}

// currentSource 返回已连接的来源及最近一次连接错误
func (r *registry) currentSource() (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source, r.connectErr
}

// ensureConnected 尚未连接时构造客户端，成功后预创建缓冲池
func (r *registry) ensureConnected(ctx context.Context) error {
	r.connectMu.Lock()
	defer r.connectMu.Unlock()

	if source, _ := r.currentSource(); source != nil {
		return nil
	}

	source, err := r.connect(ctx)

	r.mu.Lock()
	r.source, r.connectErr = source, err
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.logger.Info("CIS client connected")
	r.precreate()
	return nil
}

// precreate 创建配置中列出的预热缓冲池
func (r *registry) precreate() {
	source, _ := r.currentSource()
	for _, raw := range r.config.Precreate {
		key, _ := ParseKey(raw)
		r.getOrCreate(key, r.config.Capacity, source)
	}
}

// getOrCreate 原子地获取或创建缓冲池，capacity 仅在新建时生效
func (r *registry) getOrCreate(key Key, capacity int, source Source) *internal.Pool {
	pool, loaded := r.pools.LoadOrCompute(key, func() *internal.Pool {
		return internal.NewPool(key, capacity, r.config.RefillThreshold, r.trigger, source, r.logger.Namespace("pool"))
	})
	if !loaded {
		r.logger.Info("identifier pool created",
			clog.String("key", key.String()),
			clog.Int("capacity", capacity))
	}
	return pool
}

// ReserveIDs 实现 Provider 接口
func (r *registry) ReserveIDs(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error) {
	if !r.configured {
		return nil, problem.Newf(problem.CodeServiceUnavailable, "%s", StatusNotConfigured)
	}
	if r.closed.Load() {
		return nil, problem.Newf(problem.CodeServiceUnavailable, "identifier registry is closed")
	}
	if quantity <= 0 {
		return nil, problem.Newf(problem.CodeInvalidRequest, "quantity must be positive, got %d", quantity)
	}
	if !partition.Valid() {
		return nil, problem.Newf(problem.CodeInvalidRequest, "unknown partition %q", partition)
	}

	source, connectErr := r.currentSource()
	if source == nil {
		return nil, problem.ClientIntegration("reserve", fmt.Errorf("CIS client not connected: %w", connectErr))
	}

	if clog.TraceID(ctx) == "" {
		ctx = clog.WithTraceID(ctx, uuid.NewString())
	}
	logger := r.logger.With(clog.String("trace_id", clog.TraceID(ctx)))

	key := Key{Namespace: namespace, Partition: partition}
	pool := r.getOrCreate(key, quantity, source)

	ids := make([]int64, 0, quantity)
	for len(ids) < quantity {
		id, err := pool.GetIdentifier(ctx)
		if err != nil {
			logger.Error("failed to reserve identifiers",
				clog.String("key", key.String()),
				clog.Int("quantity", quantity),
				clog.Int("discarded", len(ids)),
				clog.Err(err))
			return nil, err
		}
		ids = append(ids, id)
	}

	logger.Debug("identifiers reserved",
		clog.String("key", key.String()),
		clog.Int("quantity", quantity))
	return ids, nil
}

// IsReservationAvailable 实现 Provider 接口
func (r *registry) IsReservationAvailable() bool {
	source, _ := r.currentSource()
	if source == nil || r.closed.Load() {
		return false
	}
	if a, ok := source.(availability); ok {
		return a.IsReservationAvailable()
	}
	return true
}

// Maintain 实现 Provider 接口
func (r *registry) Maintain(ctx context.Context) error {
	if !r.configured || r.closed.Load() {
		return nil
	}
	if source, _ := r.currentSource(); source == nil {
		if err := r.ensureConnected(ctx); err != nil {
			r.logger.Warn("CIS still unreachable", clog.Err(err))
			return err
		}
	}
	if !r.IsReservationAvailable() {
		r.logger.Debug("skipping maintenance, CIS in backoff")
		return nil
	}

	var errs error
	r.pools.Range(func(key Key, pool *internal.Pool) bool {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			return false
		}
		if err := pool.TopUp(ctx); err != nil {
			r.logger.Warn("pool maintenance failed",
				clog.String("key", key.String()),
				clog.Err(err))
			errs = multierr.Append(errs, fmt.Errorf("top up pool %s: %w", key, err))
		}
		return true
	})
	return errs
}

// Status 实现 Provider 接口
func (r *registry) Status() Status {
	source, connectErr := r.currentSource()
	status := Status{Running: r.IsReservationAvailable()}
	switch {
	case !r.configured:
		status.Message = StatusNotConfigured
	case r.closed.Load():
		status.Message = StatusClosed
	case source == nil:
		status.Message = StatusConnecting
		if connectErr != nil {
			status.Error = connectErr.Error()
		}
	case !status.Running:
		status.Message = StatusBackoff
	default:
		status.Message = StatusRunning
	}

	var pools []*internal.Pool
	r.pools.Range(func(_ Key, pool *internal.Pool) bool {
		pools = append(pools, pool)
		return true
	})
	status.Pools = lo.Map(pools, func(p *internal.Pool, _ int) PoolStatus {
		return PoolStatus{
			Namespace: p.Key().Namespace,
			Partition: string(p.Key().Partition),
			Size:      p.Size(),
			Capacity:  p.Capacity(),
		}
	})
	slices.SortFunc(status.Pools, func(a, b PoolStatus) int {
		if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
			return c
		}
		return cmp.Compare(a.Partition, b.Partition)
	})
	return status
}

// Close 实现 Provider 接口
func (r *registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.logger.Info("closing identifier registry", clog.Int("pools", r.pools.Size()))
	return nil
}
