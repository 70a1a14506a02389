package cis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ceyewan/sctid-kit/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// 远程调用的操作名，同时作为指标标签
const (
	opLogin        = "login"
	opAuthenticate = "authenticate"
	opBulkSubmit   = "bulk_submit"
	opJobStatus    = "job_status"
	opJobRecords   = "job_records"
)

// tokenParam token 查询参数名
const tokenParam = "token"

// JobStatusSuccess 批量作业成功完成的状态码，小于它表示仍在处理
const JobStatusSuccess = 2

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type authenticateRequest struct {
	Token string `json:"token"`
}

// GenerateRequest 批量预留请求体
type GenerateRequest struct {
	Namespace    int    `json:"namespace"`
	PartitionID  string `json:"partitionId"`
	Quantity     int    `json:"quantity"`
	SoftwareName string `json:"softwareName"`
}

// BulkJobResponse 批量提交的响应，id 为作业 ID
type BulkJobResponse struct {
	ID *FlexString `json:"id"`
}

// JobStatusResponse 批量作业状态
type JobStatusResponse struct {
	Status *FlexString `json:"status"`
	Log    string      `json:"log"`
}

// Record 作业结果中的一条记录
type Record struct {
	SCTID string `json:"sctid"`
}

// FlexString 同时接受 JSON 字符串和数字
type FlexString string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	s := string(bytes.TrimSpace(data))
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("expected a string or number, got %s", s)
	}
	*f = FlexString(s)
	return nil
}

// Int 转为整数
func (f *FlexString) Int() (int, error) {
	if f == nil {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.Atoi(string(*f))
}

// StatusError 远程服务返回了非 2xx 状态码
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// maxErrorBody 错误信息中保留的响应体长度
const maxErrorBody = 256

// call 发送一次 JSON 请求；out 为 nil 时忽略响应体
// 返回值 raw 为原始响应体，供调用方判断空响应
func (c *Client) call(ctx context.Context, operation, method, path string, query url.Values, in, out any) (raw []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.RemoteRequests.WithLabelValues(operation, metrics.Result(err)).Inc()
		metrics.RemoteRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return raw, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: snippet}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return raw, nil
}
