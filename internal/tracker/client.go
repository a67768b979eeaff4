// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	pkgerrors "agent-coord/pkg/errors"
	"agent-coord/pkg/metrics"
)

const (
	// maxAttempts 单次操作最多尝试次数（1 次原始调用 + 2 次重试）
	maxAttempts = 3
	// baseBackoff 首次失败后的等待时间，之后按次数翻倍（2s、4s）
	baseBackoff = 2 * time.Second

	headerRequestID = "X-Request-ID"
)

// Client 会话跟踪服务客户端。所有调用带有界重试：
// 传输失败与非 2xx 状态同样处理，用尽后返回 NetworkError；
// 领域错误（如 session not found）由响应体 error 字段承载，不参与重试。
type Client struct {
	http *resty.Client

	// sleep 重试间隔，测试中可注入以免真实等待
	sleep func(time.Duration)
}

// New 创建客户端。credential 为空时不带 Authorization 头，
// 凭据存在性由上层在发起调用前校验。
func New(baseURL, credential string, timeout time.Duration) *Client {
	httpc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if credential != "" {
		httpc.SetHeader("Authorization", "Bearer "+credential)
	}
	return &Client{http: httpc, sleep: time.Sleep}
}

// WithSleep 替换重试等待的实现，测试里用来跳过真实退避
func (c *Client) WithSleep(fn func(time.Duration)) *Client {
	c.sleep = fn
	return c
}

// backoffFor 第 attempt 次失败后的等待时长：2s、4s、8s……
func backoffFor(attempt int) time.Duration {
	return baseBackoff * time.Duration(1<<(attempt-1))
}

// do 以有界重试执行一次调用。fn 负责发起单次请求；
// do 不区分连接失败与 4xx/5xx，统一视作可重试的传输失败。
func (c *Client) do(endpoint string, fn func() (*resty.Response, error)) error {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := fn()
		switch {
		case err != nil:
			lastErr = err
		case !resp.IsSuccess():
			lastErr = fmt.Errorf("%s: %s", resp.Status(), strings.TrimSpace(resp.String()))
		default:
			metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			metrics.RequestTotal.WithLabelValues(endpoint, "ok").Inc()
			return nil
		}
		if attempt < maxAttempts {
			c.sleep(backoffFor(attempt))
		}
	}
	metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.RequestTotal.WithLabelValues(endpoint, "error").Inc()
	return &pkgerrors.NetworkError{Endpoint: endpoint, Attempts: maxAttempts, Err: lastErr}
}

// classifyRemote 将响应体里的领域错误映射为类型化错误
func classifyRemote(sessionID, msg string) error {
	switch {
	case strings.Contains(msg, "session not found"):
		return &pkgerrors.SessionNotFoundError{SessionID: sessionID}
	case strings.Contains(msg, "session not active"):
		return &pkgerrors.SessionNotActiveError{SessionID: sessionID}
	default:
		return fmt.Errorf("tracker: %s", msg)
	}
}

// Sod 声明一次会话开始。同元组已有活跃会话时远端恢复该会话并置 Resumed。
func (c *Client) Sod(ctx context.Context, req SodRequest) (*SodResponse, error) {
	var out SodResponse
	err := c.do("POST /sod", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetBody(req).
			SetResult(&out).
			Post("/sod")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote("", out.Error)
	}
	return &out, nil
}

// Active 查询某代理在 venture/repo 下的活跃会话
func (c *Client) Active(ctx context.Context, agent, venture, repo string) (*ActiveResponse, error) {
	var out ActiveResponse
	err := c.do("GET /active", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetQueryParams(map[string]string{
				"agent":   agent,
				"venture": venture,
				"repo":    repo,
			}).
			SetResult(&out).
			Get("/active")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote("", out.Error)
	}
	return &out, nil
}

// Heartbeat 上报会话存活
func (c *Client) Heartbeat(ctx context.Context, sessionID string) (*HeartbeatResponse, error) {
	var out HeartbeatResponse
	err := c.do("POST /heartbeat", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetBody(HeartbeatRequest{SessionID: sessionID}).
			SetResult(&out).
			Post("/heartbeat")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote(sessionID, out.Error)
	}
	return &out, nil
}

// Update 上报工作上下文（分支、提交），同时刷新存活时间
func (c *Client) Update(ctx context.Context, req UpdateRequest) (*UpdateResponse, error) {
	var out UpdateResponse
	err := c.do("POST /update", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetBody(req).
			SetResult(&out).
			Post("/update")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote(req.SessionID, out.Error)
	}
	return &out, nil
}

// Eod 结束会话并持久化交接
func (c *Client) Eod(ctx context.Context, req EodRequest) (*EodResponse, error) {
	var out EodResponse
	err := c.do("POST /eod", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetBody(req).
			SetResult(&out).
			Post("/eod")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote(req.SessionID, out.Error)
	}
	return &out, nil
}

// Ventures 拉取 org 段到 venture 代号的注册表
func (c *Client) Ventures(ctx context.Context) (map[string]string, error) {
	var out VenturesResponse
	err := c.do("GET /ventures", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(headerRequestID, uuid.New().String()).
			SetResult(&out).
			Get("/ventures")
	})
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, classifyRemote("", out.Error)
	}
	registry := make(map[string]string, len(out.Ventures))
	for _, v := range out.Ventures {
		registry[v.Org] = v.Code
	}
	return registry, nil
}

// Health 探测服务可达性，不经过重试
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("tracker: 健康检查失败: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("tracker: 健康检查返回 %s", resp.Status())
	}
	return nil
}
