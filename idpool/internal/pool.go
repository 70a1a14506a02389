package internal

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/metrics"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// Source 标识符的来源，通常是远程签发服务客户端
type Source interface {
	ReserveIDs(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error)
}

// Trigger 补充触发点的计算方式
type Trigger string

const (
	// TriggerFraction 触发点 = capacity × threshold
	TriggerFraction Trigger = "fraction"
	// TriggerQuotient 触发点 = capacity ÷ threshold
	TriggerQuotient Trigger = "quotient"
)

// Valid 判断是否为已知的计算方式
func (t Trigger) Valid() bool {
	return t == TriggerFraction || t == TriggerQuotient
}

// RefillPoint 计算触发点，缓冲区大小低于该值时需要补充
func RefillPoint(capacity int, threshold float64, trigger Trigger) float64 {
	if trigger == TriggerQuotient {
		return float64(capacity) / threshold
	}
	return float64(capacity) * threshold
}

// Key 唯一标识一个缓冲池
type Key struct {
	Namespace int
	Partition sctid.Partition
}

func (k Key) String() string {
	return strconv.Itoa(k.Namespace) + ":" + string(k.Partition)
}

// topUpKey 每个 Pool 只有一个 singleflight 键
const topUpKey = "topup"

// Pool 单个分区键的标识符缓冲区
// 弹出的标识符不会再次入队；补充后的大小不超过容量
type Pool struct {
	key         Key
	capacity    int
	refillPoint float64
	source      Source
	logger      clog.Logger

	mu  sync.Mutex
	ids []int64

	flight singleflight.Group

	sizeGauge     prometheus.Gauge
	issuedCounter prometheus.Counter
}

// NewPool 创建一个空缓冲池
func NewPool(key Key, capacity int, threshold float64, trigger Trigger, source Source, logger clog.Logger) *Pool {
	ns := strconv.Itoa(key.Namespace)
	partition := string(key.Partition)
	metrics.PoolCapacity.WithLabelValues(ns, partition).Set(float64(capacity))

	p := &Pool{
		key:           key,
		capacity:      capacity,
		refillPoint:   RefillPoint(capacity, threshold, trigger),
		source:        source,
		logger:        logger.With(clog.String("pool", key.String())),
		ids:           make([]int64, 0, capacity),
		sizeGauge:     metrics.PoolSize.WithLabelValues(ns, partition),
		issuedCounter: metrics.IdentifiersIssued.WithLabelValues(ns, partition),
	}
	p.sizeGauge.Set(0)
	return p
}

// Key 缓冲池的分区键
func (p *Pool) Key() Key {
	return p.key
}

// Capacity 缓冲池容量
func (p *Pool) Capacity() int {
	return p.capacity
}

// Size 当前持有的标识符数量
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// GetIdentifier 弹出一个标识符；缓冲区为空时同步补充后重试
// 只要补充成功加入了标识符就继续重试，补充未产出任何标识符时返回 POOL_EXHAUSTED
func (p *Pool) GetIdentifier(ctx context.Context) (int64, error) {
	for {
		if id, ok := p.pop(); ok {
			return id, nil
		}

		res, err := p.refill(ctx)
		if err != nil {
			return 0, err
		}
		if res.added == 0 && !res.skipped {
			return 0, problem.Newf(problem.CodePoolExhausted, "identifier pool %s is exhausted", p.key)
		}
	}
}

// TopUp 大小低于触发点时补充到容量
// 同一 Pool 上的并发调用合并为一次远程请求；调用方放弃等待后请求继续完成
func (p *Pool) TopUp(ctx context.Context) error {
	_, err := p.refill(ctx)
	return err
}

// refillResult 一次补充的结果；skipped 表示大小未低于触发点
type refillResult struct {
	added   int
	skipped bool
}

func (p *Pool) refill(ctx context.Context) (refillResult, error) {
	ch := p.flight.DoChan(topUpKey, func() (any, error) {
		return p.topUp(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return refillResult{}, problem.ClientIntegration("reserve", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return refillResult{}, res.Err
		}
		return res.Val.(refillResult), nil
	}
}

func (p *Pool) topUp(ctx context.Context) (refillResult, error) {
	quantity := p.refillQuantity()
	if quantity == 0 {
		return refillResult{skipped: true}, nil
	}

	ids, err := p.source.ReserveIDs(ctx, p.key.Namespace, p.key.Partition, quantity)
	metrics.TopUps.WithLabelValues(strconv.Itoa(p.key.Namespace), string(p.key.Partition), metrics.Result(err)).Inc()
	if err != nil {
		p.logger.Warn("failed to top up pool",
			clog.Int("requested", quantity),
			clog.Err(err))
		return refillResult{}, err
	}

	added, size := p.push(ids)
	if added < len(ids) {
		p.logger.Warn("source returned more identifiers than requested, dropping excess",
			clog.Int("requested", quantity),
			clog.Int("received", len(ids)),
			clog.Int("dropped", len(ids)-added))
	}
	p.logger.Debug("pool topped up",
		clog.Int("requested", quantity),
		clog.Int("added", added),
		clog.Int("size", size))
	return refillResult{added: added}, nil
}

// refillQuantity 需要补充的数量，不需要补充时返回 0
func (p *Pool) refillQuantity() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := len(p.ids)
	if float64(size) >= p.refillPoint || size >= p.capacity {
		return 0
	}
	return p.capacity - size
}

func (p *Pool) pop() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.ids)
	if n == 0 {
		return 0, false
	}
	id := p.ids[n-1]
	p.ids = p.ids[:n-1]
	p.sizeGauge.Set(float64(n - 1))
	p.issuedCounter.Inc()
	return id, true
}

// push 入队，超出容量的部分被丢弃
func (p *Pool) push(ids []int64) (added, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	room := p.capacity - len(p.ids)
	if len(ids) > room {
		ids = ids[:room]
	}
	p.ids = append(p.ids, ids...)
	p.sizeGauge.Set(float64(len(p.ids)))
	return len(ids), len(p.ids)
}
