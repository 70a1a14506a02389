// Package cis 实现远程标识符签发服务（CIS）的批量预留协议客户端
package cis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/metrics"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// Client 远程签发服务客户端
// 会话 token 在构造时通过登录获得，仅在探测返回 401 时替换
type Client struct {
	config     *Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     clog.Logger
	schemeName bool
	backoff    *failureBackoff

	tokenMu sync.RWMutex
	token   string
}

// New 创建客户端并立即登录、探测 token，凭据错误时快速失败
func New(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := parseOptions(opts)
	baseURL, _ := url.Parse(config.URL)

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// 复制一份，避免修改调用方的客户端
	hc := *httpClient
	hc.Timeout = config.Timeout()

	c := &Client{
		config:     config,
		baseURL:    baseURL,
		httpClient: &hc,
		logger:     options.logger,
		schemeName: options.schemeName,
		backoff:    newFailureBackoff(config.BackoffLevels, options.now),
	}

	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("CIS client initialised",
		clog.String("url", baseURL.Redacted()),
		clog.String("software_name", config.SoftwareName),
		clog.Int("timeout_seconds", config.TimeoutSeconds))
	return c, nil
}

// Token 返回当前会话 token
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// Login 提交凭据并保存返回的 token，不重试
func (c *Client) Login(ctx context.Context) error {
	c.logger.Info("logging in to CIS", clog.String("username", c.config.Username))
	metrics.Logins.Inc()

	var resp loginResponse
	_, err := c.call(ctx, opLogin, http.MethodPost, "/login", nil,
		loginRequest{Username: c.config.Username, Password: c.config.Password}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return &problem.Error{Code: problem.CodeAuthentication, Operation: opLogin,
				Message: "CIS rejected the login", Cause: err}
		}
		return &problem.Error{Code: problem.CodeClientIntegration, Operation: opLogin,
			Message: "failed to login to CIS", Cause: err}
	}
	if resp.Token == "" {
		return &problem.Error{Code: problem.CodeAuthentication, Operation: opLogin,
			Message: "CIS login response carried no token"}
	}

	c.tokenMu.Lock()
	c.token = resp.Token
	c.tokenMu.Unlock()
	return nil
}

// Authenticate 探测当前 token；返回 401 时重新登录一次并视为成功
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.call(ctx, opAuthenticate, http.MethodPost, "/authenticate", nil,
		authenticateRequest{Token: c.Token()}, nil)
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.logger.Info("CIS token rejected, logging in again")
		return c.Login(ctx)
	}
	return &problem.Error{Code: problem.CodeClientIntegration, Operation: opAuthenticate,
		Message: "failed to authenticate with CIS", Cause: err}
}

// IsReservationAvailable 客户端不处于失败退避期时返回 true
func (c *Client) IsReservationAvailable() bool {
	active, _, _ := c.backoff.active()
	return !active
}

// ReserveIDs 预留 quantity 个标识符，按批次到达顺序返回
// 超过 MaxBulkRequest 时拆分为多个顺序提交的批量作业；
// 任一批次失败时整个调用失败，之前批次已预留的标识符被丢弃
func (c *Client) ReserveIDs(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error) {
	if quantity <= 0 {
		return nil, problem.Newf(problem.CodeInvalidRequest, "quantity must be positive, got %d", quantity)
	}
	if !partition.Valid() {
		return nil, problem.Newf(problem.CodeInvalidRequest, "unknown partition %q", partition)
	}

	if active, wait, until := c.backoff.active(); active {
		return nil, problem.ClientIntegration("reserve",
			fmt.Errorf("CIS unusable and backoff in effect (%s) until %s", wait, until.Format("2006-01-02 15:04:05")))
	}

	ids, err := c.reserve(ctx, namespace, partition, quantity)
	if err != nil {
		wait := c.backoff.fail()
		c.logger.Warn("failed to reserve identifiers",
			clog.Int("namespace", namespace),
			clog.String("partition", string(partition)),
			clog.Int("quantity", quantity),
			clog.Int("discarded", len(ids)),
			clog.Duration("backoff", wait),
			clog.Err(err))
		return nil, problem.ClientIntegration("reserve", err)
	}

	c.backoff.reset()
	return ids, nil
}

// reserve 执行认证与分批预留，出错时仍返回已收集的标识符用于日志
func (c *Client) reserve(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, quantity)
	for len(ids) < quantity {
		size := min(quantity-len(ids), MaxBulkRequest)
		batch, err := c.runBulkJob(ctx, "reserve", GenerateRequest{
			Namespace:    namespace,
			PartitionID:  string(partition),
			Quantity:     size,
			SoftwareName: c.config.SoftwareName,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, batch...)
	}
	return ids, nil
}
