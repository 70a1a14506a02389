// Package metrics 定义标识符预留子系统的 Prometheus 指标
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	sctidNamespace = "sctid"

	NamespaceLabelName = "namespace"
	PartitionLabelName = "partition"
	OperationLabelName = "operation"
	ResultLabelName    = "result"

	SuccessLabel = "success"
	FailLabel    = "fail"
)

var (
	// PoolSize 每个缓冲池当前持有的标识符数量
	PoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: sctidNamespace,
			Subsystem: "pool",
			Name:      "size",
			Help:      "number of reserved, unused identifiers held by a pool",
		}, []string{NamespaceLabelName, PartitionLabelName})

	// PoolCapacity 每个缓冲池的容量
	PoolCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: sctidNamespace,
			Subsystem: "pool",
			Name:      "capacity",
			Help:      "capacity of a pool",
		}, []string{NamespaceLabelName, PartitionLabelName})

	// IdentifiersIssued 交给调用方的标识符总数
	IdentifiersIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: sctidNamespace,
			Subsystem: "pool",
			Name:      "identifiers_issued_total",
			Help:      "identifiers handed out to consumers",
		}, []string{NamespaceLabelName, PartitionLabelName})

	// TopUps 缓冲池补充次数
	TopUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: sctidNamespace,
			Subsystem: "pool",
			Name:      "topups_total",
			Help:      "pool top-ups that reached the remote issuer",
		}, []string{NamespaceLabelName, PartitionLabelName, ResultLabelName})

	// RemoteRequests 发往远程签发服务的请求数
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: sctidNamespace,
			Subsystem: "cis",
			Name:      "requests_total",
			Help:      "requests sent to the remote identifier issuer",
		}, []string{OperationLabelName, ResultLabelName})

	// RemoteRequestLatency 远程请求耗时
	RemoteRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: sctidNamespace,
			Subsystem: "cis",
			Name:      "request_latency_seconds",
			Help:      "latency of requests sent to the remote identifier issuer",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{OperationLabelName})

	// Logins 登录次数（含 401 后的重新登录）
	Logins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: sctidNamespace,
			Subsystem: "cis",
			Name:      "logins_total",
			Help:      "logins performed against the remote identifier issuer",
		})
)

var registerOnce sync.Once

// Register 将全部指标注册到 registry，重复调用只生效一次
func Register(registry prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			PoolSize, PoolCapacity, IdentifiersIssued, TopUps,
			RemoteRequests, RemoteRequestLatency, Logins,
		} {
			if rerr := registry.Register(c); rerr != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(rerr, &already) {
					err = rerr
					return
				}
			}
		}
	})
	return err
}

// Result 将错误转换为 result 标签值
func Result(err error) string {
	if err != nil {
		return FailLabel
	}
	return SuccessLabel
}
