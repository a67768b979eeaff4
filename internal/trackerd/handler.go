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

package trackerd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"agent-coord/internal/tracker"
	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
	"agent-coord/pkg/metrics"
)

// 错误响应体里的契约字符串，客户端按内容分类，不能改
const (
	msgSessionNotFound  = "session not found"
	msgSessionNotActive = "session not active"
)

// Handler HTTP 处理器
type Handler struct {
	store    Store
	docs     []tracker.DocItem
	ventures []tracker.Venture
	interval int
	logger   *log.Logger

	// now 测试中可注入
	now func() time.Time
}

// NewHandler 创建 HTTP 处理器
func NewHandler(store Store, svc config.ServiceConfig, docs []tracker.DocItem, logger *log.Logger) *Handler {
	ventures := make([]tracker.Venture, 0, len(svc.Ventures))
	for _, v := range svc.Ventures {
		ventures = append(ventures, tracker.Venture{Org: v.Org, Code: v.Code})
	}
	interval := svc.Sessions.HeartbeatIntervalSeconds
	if interval <= 0 {
		interval = 900
	}
	return &Handler{
		store:    store,
		docs:     docs,
		ventures: ventures,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func toWireSession(s *Session) tracker.Session {
	return tracker.Session{
		ID:              s.ID,
		Agent:           s.Agent,
		Venture:         s.Venture,
		Repo:            s.Repo,
		Track:           s.Track,
		Branch:          s.Branch,
		CommitSHA:       s.CommitSHA,
		Status:          s.Status,
		CreatedAt:       s.CreatedAt,
		LastHeartbeatAt: s.LastHeartbeatAt,
	}
}

func bindJSON(c *app.RequestContext, dest interface{}) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

// Health 健康检查
func (h *Handler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": h.now().Unix(),
		"service":   "trackerd",
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.logger.Error("导出指标失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Sod 开始或恢复会话
func (h *Handler) Sod(ctx context.Context, c *app.RequestContext) {
	var req tracker.SodRequest
	if err := bindJSON(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	if req.Agent == "" || req.Venture == "" || req.Repo == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "agent, venture and repo are required"})
		return
	}

	now := h.now().UTC()
	created, resumed, err := h.store.StartSession(ctx, &Session{
		Agent:           req.Agent,
		ClientKind:      req.ClientKind,
		ClientVersion:   req.ClientVersion,
		Host:            req.Host,
		Venture:         req.Venture,
		Repo:            req.Repo,
		Track:           req.Track,
		Status:          StatusActive,
		CreatedAt:       now,
		LastHeartbeatAt: now,
	})
	if err != nil {
		h.logger.Error("创建会话失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}

	resp := tracker.SodResponse{Session: toWireSession(created), Resumed: resumed}

	if last, herr := h.store.LastHandoff(ctx, req.Venture, req.Repo); herr == nil && last != nil {
		resp.LastHandoff = &tracker.LastHandoff{
			Summary:     last.Summary,
			FromAgent:   last.Agent,
			CreatedAt:   last.CreatedAt,
			StatusLabel: last.StatusLabel,
		}
	}
	if req.IncludeDocs && len(h.docs) > 0 {
		resp.Documentation = &tracker.Documentation{Count: len(h.docs), Docs: h.docs}
	}
	if req.IncludePeers {
		if actives, aerr := h.store.ActiveSessions(ctx, req.Venture, req.Repo); aerr == nil {
			for _, s := range actives {
				if s.ID == created.ID {
					continue
				}
				resp.ActiveSessions = append(resp.ActiveSessions, toWireSession(s))
			}
		}
	}

	if !resumed {
		metrics.SessionStarted.WithLabelValues(req.Venture).Inc()
		metrics.SessionsActive.Inc()
	}
	h.logger.Info("会话开始",
		"session_id", created.ID, "agent", req.Agent,
		"venture", req.Venture, "repo", req.Repo, "resumed", resumed)
	c.JSON(consts.StatusOK, resp)
}

// Active 列出活跃会话，agent 参数可选
func (h *Handler) Active(ctx context.Context, c *app.RequestContext) {
	venture := c.Query("venture")
	repo := c.Query("repo")
	agent := c.Query("agent")
	if venture == "" || repo == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "venture and repo are required"})
		return
	}

	actives, err := h.store.ActiveSessions(ctx, venture, repo)
	if err != nil {
		h.logger.Error("查询活跃会话失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}

	resp := tracker.ActiveResponse{}
	for _, s := range actives {
		if agent != "" && s.Agent != agent {
			continue
		}
		resp.Sessions = append(resp.Sessions, toWireSession(s))
	}
	c.JSON(consts.StatusOK, resp)
}

// Heartbeat 刷新会话存活时间
func (h *Handler) Heartbeat(ctx context.Context, c *app.RequestContext) {
	var req tracker.HeartbeatRequest
	if err := bindJSON(c, &req); err != nil || req.SessionID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "session_id is required"})
		return
	}

	now := h.now().UTC()
	_, err := h.store.Heartbeat(ctx, req.SessionID, now)
	if err != nil {
		h.writeSessionError(c, err, "heartbeat", req.SessionID)
		return
	}

	metrics.HeartbeatTotal.WithLabelValues("ok").Inc()
	c.JSON(consts.StatusOK, tracker.HeartbeatResponse{
		LastHeartbeatAt:          now,
		NextHeartbeatAt:          now.Add(time.Duration(h.interval) * time.Second),
		HeartbeatIntervalSeconds: h.interval,
	})
}

// Update 记录工作上下文并刷新存活时间
func (h *Handler) Update(ctx context.Context, c *app.RequestContext) {
	var req tracker.UpdateRequest
	if err := bindJSON(c, &req); err != nil || req.SessionID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "session_id is required"})
		return
	}

	now := h.now().UTC()
	_, err := h.store.UpdateSession(ctx, req.SessionID, req.Branch, req.CommitSHA, req.Meta, now)
	if err != nil {
		h.writeSessionError(c, err, "update", req.SessionID)
		return
	}

	c.JSON(consts.StatusOK, tracker.UpdateResponse{
		UpdatedAt:                now,
		NextHeartbeatAt:          now.Add(time.Duration(h.interval) * time.Second),
		HeartbeatIntervalSeconds: h.interval,
	})
}

// Eod 持久化交接并结束会话
func (h *Handler) Eod(ctx context.Context, c *app.RequestContext) {
	var req tracker.EodRequest
	if err := bindJSON(c, &req); err != nil || req.SessionID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "session_id is required"})
		return
	}

	now := h.now().UTC()
	stored, err := h.store.EndSession(ctx, req.SessionID, &Handoff{
		Summary:      req.Summary,
		Accomplished: req.Payload.Accomplished,
		InProgress:   req.Payload.InProgress,
		Blocked:      req.Payload.Blocked,
		NextSteps:    req.Payload.NextSteps,
		StatusLabel:  req.StatusLabel,
		EndReason:    req.EndReason,
	}, now)
	if err != nil {
		h.writeSessionError(c, err, "eod", req.SessionID)
		return
	}

	metrics.SessionEnded.WithLabelValues(req.StatusLabel).Inc()
	metrics.SessionsActive.Dec()
	metrics.HandoffStored.Inc()
	h.logger.Info("会话结束",
		"session_id", req.SessionID, "handoff_id", stored.ID, "status_label", req.StatusLabel)
	c.JSON(consts.StatusOK, tracker.EodResponse{HandoffID: stored.ID, EndedAt: now})
}

// Ventures org 段到 venture 代号的注册表
func (h *Handler) Ventures(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, tracker.VenturesResponse{Ventures: h.ventures})
}

// writeSessionError 领域错误走 200 信封，传输层重试只看状态码
func (h *Handler) writeSessionError(c *app.RequestContext, err error, op, sessionID string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		if op == "heartbeat" {
			metrics.HeartbeatTotal.WithLabelValues("not_found").Inc()
		}
		c.JSON(consts.StatusOK, utils.H{"error": msgSessionNotFound})
	case errors.Is(err, ErrSessionNotActive):
		if op == "heartbeat" {
			metrics.HeartbeatTotal.WithLabelValues("not_active").Inc()
		}
		c.JSON(consts.StatusOK, utils.H{"error": msgSessionNotActive})
	default:
		h.logger.Error("会话操作失败", "op", op, "session_id", sessionID, "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal error"})
	}
}
