package cis

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/sctid-kit/problem"
)

const (
	// LocalEndpoint 表示不使用远程签发服务
	LocalEndpoint = "local"
	// MaxBulkRequest 单个批量作业最多预留的标识符数量
	MaxBulkRequest = 1000

	minTimeoutSeconds = 1
	maxTimeoutSeconds = 100
)

// DefaultBackoffLevels 连续失败后的退避时长（秒）
var DefaultBackoffLevels = []int{30, 60, 180, 300, 600, 1800}

// Config 定义远程签发服务客户端的配置
type Config struct {
	URL            string        `json:"url" mapstructure:"url"`                       // 服务地址
	Username       string        `json:"username" mapstructure:"username"`             // 登录用户名
	Password       string        `json:"password" mapstructure:"password"`             // 登录密码
	SoftwareName   string        `json:"softwareName" mapstructure:"softwareName"`     // 随批量请求提交的软件标签
	TimeoutSeconds int           `json:"timeoutSeconds" mapstructure:"timeoutSeconds"` // 单次请求超时，1-100 秒
	BackoffLevels  []int         `json:"backoffLevels" mapstructure:"backoffLevels"`   // 失败退避阶梯（秒），为空时不退避
	PollInterval   time.Duration `json:"pollInterval" mapstructure:"pollInterval"`     // 批量作业状态轮询间隔
}

// GetDefaultConfig 返回默认配置，敏感信息从环境变量读取
func GetDefaultConfig(env string) *Config {
	config := &Config{
		URL:            os.Getenv("CIS_API_URL"),
		Username:       os.Getenv("CIS_USERNAME"),
		Password:       os.Getenv("CIS_PASSWORD"),
		SoftwareName:   getEnvWithDefault("CIS_SOFTWARE_NAME", "sctid-kit"),
		TimeoutSeconds: getEnvIntWithDefault("CIS_TIMEOUT", 20),
		BackoffLevels:  append([]int(nil), DefaultBackoffLevels...),
		PollInterval:   defaultPollInterval,
	}

	// 开发环境默认不连接远程服务
	if env == "development" && config.URL == "" {
		config.URL = LocalEndpoint
	}

	return config
}

// IsConfigured 判断地址是否指向一个远程签发服务
// 空白地址和字面量 "local" 都表示未配置
func IsConfigured(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	return endpoint != "" && endpoint != LocalEndpoint
}

// Validate 验证配置，失败时返回 CONFIGURATION_ERROR
func (c *Config) Validate() error {
	if c == nil {
		return problem.Newf(problem.CodeConfiguration, "CIS config cannot be nil")
	}
	if strings.TrimSpace(c.URL) == "" {
		return problem.Newf(problem.CodeConfiguration, "CIS API URL must be provided")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return problem.New(problem.CodeConfiguration, "CIS API URL is malformed", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return problem.Newf(problem.CodeConfiguration, "CIS API URL %q must be an absolute http(s) URL", c.URL)
	}
	if strings.TrimSpace(c.Username) == "" {
		return problem.Newf(problem.CodeConfiguration, "username must be provided")
	}
	if strings.TrimSpace(c.Password) == "" {
		return problem.Newf(problem.CodeConfiguration, "password must be provided")
	}
	if strings.TrimSpace(c.SoftwareName) == "" {
		return problem.Newf(problem.CodeConfiguration, "software name must be provided")
	}
	if c.TimeoutSeconds < minTimeoutSeconds || c.TimeoutSeconds > maxTimeoutSeconds {
		return problem.Newf(problem.CodeConfiguration, "timeout must be between %d and %d seconds", minTimeoutSeconds, maxTimeoutSeconds)
	}
	for _, level := range c.BackoffLevels {
		if level <= 0 {
			return problem.Newf(problem.CodeConfiguration, "backoff levels must be positive, got %d", level)
		}
	}
	if c.PollInterval < 0 {
		return problem.Newf(problem.CodeConfiguration, "poll interval cannot be negative")
	}
	return nil
}

// Timeout 单次请求超时
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
