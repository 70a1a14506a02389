package cis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/sctid"
)

// errJobPending 作业尚未完成，继续轮询
var errJobPending = errors.New("bulk job still running")

const defaultPollInterval = 500 * time.Millisecond

// runBulkJob 提交一个批量作业，等待完成后取回并校验标识符
func (c *Client) runBulkJob(ctx context.Context, operation string, request GenerateRequest) ([]int64, error) {
	jobID, err := c.submitBulk(ctx, operation, request)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("bulk job submitted",
		clog.String("operation", operation),
		clog.String("job_id", jobID),
		clog.Int("quantity", request.Quantity))

	if err := c.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	return c.fetchRecords(ctx, jobID, request)
}

// submitBulk POST /sct/bulk/{operation}，返回作业 ID
func (c *Client) submitBulk(ctx context.Context, operation string, request GenerateRequest) (string, error) {
	query := url.Values{tokenParam: {c.Token()}}
	if c.schemeName {
		query.Set("schemeName", "SNOMEDID")
	}

	var resp BulkJobResponse
	raw, err := c.call(ctx, opBulkSubmit, http.MethodPost, "/sct/bulk/"+url.PathEscape(operation), query, request, &resp)
	if err != nil {
		return "", fmt.Errorf("submit bulk %s job: %w", operation, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("submit bulk %s job: empty response body", operation)
	}
	if resp.ID == nil || *resp.ID == "" {
		return "", fmt.Errorf("submit bulk %s job: response carried no job id", operation)
	}
	return string(*resp.ID), nil
}

// waitForJob 按 PollInterval 轮询作业状态，直到成功、失败或超时
func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	pollCtx, cancel := context.WithTimeout(ctx, c.config.Timeout())
	defer cancel()

	query := url.Values{tokenParam: {c.Token()}}
	path := "/bulk/jobs/" + url.PathEscape(jobID)

	check := func() error {
		var resp JobStatusResponse
		if _, err := c.call(pollCtx, opJobStatus, http.MethodGet, path, query, nil, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("fetch status for job %s: %w", jobID, err))
		}
		status, err := resp.Status.Int()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch status for job %s: invalid status: %w", jobID, err))
		}
		switch {
		case status < JobStatusSuccess:
			return errJobPending
		case status == JobStatusSuccess:
			return nil
		default:
			return backoff.Permanent(fmt.Errorf("bulk job %s failed with status %d due to %q", jobID, status, resp.Log))
		}
	}

	interval := c.config.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	err := backoff.Retry(check, backoff.WithContext(backoff.NewConstantBackOff(interval), pollCtx))
	if err != nil && ctx.Err() == nil && pollCtx.Err() != nil {
		return fmt.Errorf("bulk job %s timed out after %s", jobID, c.config.Timeout())
	}
	return err
}

// fetchRecords GET /bulk/jobs/{jobId}/records，空响应或数量不符都视为失败
func (c *Client) fetchRecords(ctx context.Context, jobID string, request GenerateRequest) ([]int64, error) {
	query := url.Values{tokenParam: {c.Token()}}

	var records []Record
	raw, err := c.call(ctx, opJobRecords, http.MethodGet, "/bulk/jobs/"+url.PathEscape(jobID)+"/records", query, nil, &records)
	if err != nil {
		return nil, fmt.Errorf("fetch records for job %s: %w", jobID, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || records == nil {
		return nil, fmt.Errorf("fetch records for job %s: empty response body", jobID)
	}
	if len(records) != request.Quantity {
		return nil, fmt.Errorf("fetch records for job %s: expected %d records, got %d", jobID, request.Quantity, len(records))
	}

	partition := sctid.Partition(request.PartitionID)
	var decodeErr error
	ids := lo.Map(records, func(r Record, i int) int64 {
		if decodeErr != nil {
			return 0
		}
		id, err := sctid.Verify(r.SCTID, request.Namespace, partition)
		if err != nil {
			decodeErr = fmt.Errorf("decode record %d of job %s: %w", i, jobID, err)
		}
		return id
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return ids, nil
}
