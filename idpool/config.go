package idpool

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ceyewan/sctid-kit/cis"
	"github.com/ceyewan/sctid-kit/idpool/internal"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// Key 缓冲池的分区键：命名空间 + 分区类别
type Key = internal.Key

// 补充触发点的计算方式
const (
	TriggerFraction = string(internal.TriggerFraction)
	TriggerQuotient = string(internal.TriggerQuotient)
)

// Config 定义缓冲池注册表的配置
type Config struct {
	CIS                 *cis.Config   `json:"cis" mapstructure:"cis"`                                 // 远程签发服务
	Capacity            int           `json:"capacity" mapstructure:"capacity"`                       // 预创建缓冲池的容量
	RefillThreshold     float64       `json:"refillThreshold" mapstructure:"refillThreshold"`         // 补充阈值，(0,1]
	RefillTrigger       string        `json:"refillTrigger" mapstructure:"refillTrigger"`             // fraction 或 quotient
	MaintenanceInterval time.Duration `json:"maintenanceInterval" mapstructure:"maintenanceInterval"` // 维护间隔
	Precreate           []string      `json:"precreate" mapstructure:"precreate"`                     // 预热的 "namespace:partition" 列表
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig(env string) *Config {
	return &Config{
		CIS:                 cis.GetDefaultConfig(env),
		Capacity:            getEnvIntWithDefault("SCTID_POOL_CAPACITY", 50),
		RefillThreshold:     0.2,
		RefillTrigger:       TriggerFraction,
		MaintenanceInterval: 10 * time.Second,
		Precreate:           splitList(os.Getenv("SCTID_PRECREATE")),
	}
}

// Validate 验证配置；远程服务配置仅在已配置地址时由 New 校验
func (c *Config) Validate() error {
	if c == nil {
		return problem.Newf(problem.CodeConfiguration, "idpool config cannot be nil")
	}
	if c.Capacity <= 0 {
		return problem.Newf(problem.CodeConfiguration, "pool capacity must be positive, got %d", c.Capacity)
	}
	if c.RefillThreshold <= 0 || c.RefillThreshold > 1 {
		return problem.Newf(problem.CodeConfiguration, "refill threshold must be in (0,1], got %v", c.RefillThreshold)
	}
	if !internal.Trigger(c.RefillTrigger).Valid() {
		return problem.Newf(problem.CodeConfiguration, "refill trigger must be %q or %q, got %q",
			TriggerFraction, TriggerQuotient, c.RefillTrigger)
	}
	if c.MaintenanceInterval <= 0 {
		return problem.Newf(problem.CodeConfiguration, "maintenance interval must be positive")
	}
	for _, raw := range c.Precreate {
		if _, err := ParseKey(raw); err != nil {
			return problem.New(problem.CodeConfiguration, "invalid precreate key", err)
		}
	}
	return nil
}

// endpoint 远程服务地址，未配置时为空
func (c *Config) endpoint() string {
	if c.CIS == nil {
		return ""
	}
	return c.CIS.URL
}

// ParseKey 解析 "namespace:partition" 形式的分区键
func ParseKey(raw string) (Key, error) {
	nsPart, partPart, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || strings.TrimSpace(nsPart) == "" {
		return Key{}, fmt.Errorf("key %q must look like namespace:partition", raw)
	}
	// cast 按进制前缀解析，去掉前导零避免被当作八进制
	nsPart = strings.TrimLeft(strings.TrimSpace(nsPart), "0")
	if nsPart == "" {
		nsPart = "0"
	}
	namespace, err := cast.ToIntE(nsPart)
	if err != nil {
		return Key{}, fmt.Errorf("key %q: invalid namespace: %w", raw, err)
	}
	if namespace < 0 || namespace > sctid.MaxNamespace {
		return Key{}, fmt.Errorf("key %q: namespace out of range", raw)
	}
	partition, err := sctid.ParsePartition(strings.TrimSpace(partPart))
	if err != nil {
		return Key{}, fmt.Errorf("key %q: %w", raw, err)
	}
	return Key{Namespace: namespace, Partition: partition}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
