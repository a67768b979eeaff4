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

// Package session 驱动会话生命周期：sod、heartbeat、update、eod。
// 当前会话永远通过远端 /active 解析，本地不保存会话状态，
// 崩溃重启后的客户端照样能找回自己的会话。
package session

import (
	"context"
	"time"

	"agent-coord/internal/activity"
	"agent-coord/internal/docstore"
	"agent-coord/internal/gitx"
	"agent-coord/internal/handoff"
	"agent-coord/internal/identity"
	"agent-coord/internal/tracker"
	pkgerrors "agent-coord/pkg/errors"
	"agent-coord/pkg/log"
	"agent-coord/pkg/tracing"
)

// IdentityProvider 解析会话身份；失败意味着配置问题，不应发起 sod
type IdentityProvider interface {
	Resolve(ctx context.Context) (*identity.Identity, error)
}

// Collector 采集自某时刻以来的工作快照
type Collector interface {
	Collect(ctx context.Context, since time.Time) *activity.Snapshot
}

// Manager 会话生命周期管理器
type Manager struct {
	client    *tracker.Client
	provider  IdentityProvider
	collector Collector
	cache     *docstore.Cache
	git       *gitx.Git
	logger    *log.Logger
}

func NewManager(client *tracker.Client, provider IdentityProvider, collector Collector, cache *docstore.Cache, git *gitx.Git, logger *log.Logger) *Manager {
	return &Manager{
		client:    client,
		provider:  provider,
		collector: collector,
		cache:     cache,
		git:       git,
		logger:    logger,
	}
}

// StartOptions sod 的可选项
type StartOptions struct {
	Track        string
	IncludeDocs  bool
	IncludePeers bool
}

// StartResult sod 的结果。Degraded 为真时 Session 为空，
// Docs 来自本地缓存，调用方应继续工作并提示远端不可达。
type StartResult struct {
	Identity    *identity.Identity
	Session     *tracker.Session
	Resumed     bool
	LastHandoff *tracker.LastHandoff
	Docs        []docstore.Doc
	DocsCached  bool
	Peers       []tracker.Session
	Degraded    bool
	Report      *Report
}

// Start 声明一次会话开始。
// 身份解析失败直接报错；远端不可达时降级放行而不是中止。
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	report := &Report{}

	id, err := m.provider.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	report.ok("identity")

	ctx, span := tracing.StartLifecycleSpan(ctx, "sod", id.Agent)
	defer span.End()

	result := &StartResult{Identity: id, Report: report}

	resp, err := m.client.Sod(ctx, tracker.SodRequest{
		Agent:         id.Agent,
		ClientKind:    id.ClientKind,
		ClientVersion: id.ClientVersion,
		Host:          id.Host,
		Venture:       id.Venture,
		Repo:          id.Repo,
		Track:         opts.Track,
		IncludeDocs:   opts.IncludeDocs,
		IncludePeers:  opts.IncludePeers,
	})
	switch {
	case err == nil:
		report.ok("session")
		result.Session = &resp.Session
		result.Resumed = resp.Resumed
		result.LastHandoff = resp.LastHandoff
		result.Peers = resp.ActiveSessions
		if resp.Documentation != nil {
			result.Docs = docsFromWire(resp.Documentation.Docs)
			m.cacheDocs(ctx, id.Repo, result.Docs, report)
		}
		return result, nil

	case pkgerrors.IsNetwork(err):
		// 降级路径：远端不可达不拦着干活，凭缓存文档继续
		m.logger.Warn("跟踪服务不可达，会话以降级模式开始", "error", err)
		report.fail("session", err)
		result.Degraded = true
		if opts.IncludeDocs {
			m.loadCachedDocs(ctx, id.Repo, result, report)
		}
		return result, nil

	default:
		return nil, err
	}
}

func (m *Manager) cacheDocs(ctx context.Context, repo string, docs []docstore.Doc, report *Report) {
	if m.cache == nil || len(docs) == 0 {
		report.ok("docs")
		return
	}
	if err := m.cache.SaveDocs(ctx, repo, docs); err != nil {
		m.logger.Warn("缓存工作文档失败", "error", err)
		report.fail("docs", err)
		return
	}
	report.ok("docs")
}

func (m *Manager) loadCachedDocs(ctx context.Context, repo string, result *StartResult, report *Report) {
	if m.cache == nil {
		report.fail("docs", pkgerrors.ErrNotFound)
		return
	}
	docs, err := m.cache.LoadDocs(ctx, repo)
	if err != nil || len(docs) == 0 {
		report.fail("docs", pkgerrors.Wrap(pkgerrors.ErrNotFound, "无可用的本地文档缓存"))
		return
	}
	result.Docs = docs
	result.DocsCached = true
	report.ok("docs")
}

// HeartbeatResult heartbeat 的结果
type HeartbeatResult struct {
	SessionID       string
	LastHeartbeatAt time.Time
	NextHeartbeatAt time.Time
	IntervalSeconds int
}

// Heartbeat 刷新当前会话的存活时间。
// 会话缺失或已放弃时返回 SessionNotFoundError，从不自动重建。
func (m *Manager) Heartbeat(ctx context.Context) (*HeartbeatResult, error) {
	id, err := m.provider.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartLifecycleSpan(ctx, "heartbeat", id.Agent)
	defer span.End()

	current, err := m.currentSession(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Heartbeat(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	return &HeartbeatResult{
		SessionID:       current.ID,
		LastHeartbeatAt: resp.LastHeartbeatAt,
		NextHeartbeatAt: resp.NextHeartbeatAt,
		IntervalSeconds: resp.HeartbeatIntervalSeconds,
	}, nil
}

// UpdateOptions update 携带的工作上下文
type UpdateOptions struct {
	Branch    string
	CommitSHA string
	Meta      map[string]string
}

// UpdateResult update 的结果
type UpdateResult struct {
	SessionID       string
	Branch          string
	CommitSHA       string
	UpdatedAt       time.Time
	NextHeartbeatAt time.Time
	IntervalSeconds int
}

// Update 上报分支与提交并刷新存活时间。
// 分支和提交未显式给出时从本地仓库补齐，补不上就留空。
func (m *Manager) Update(ctx context.Context, opts UpdateOptions) (*UpdateResult, error) {
	id, err := m.provider.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartLifecycleSpan(ctx, "update", id.Agent)
	defer span.End()

	current, err := m.currentSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if opts.Branch == "" && m.git != nil {
		if b, berr := m.git.CurrentBranch(ctx); berr == nil && b != "HEAD" {
			opts.Branch = b
		}
	}
	if opts.CommitSHA == "" && m.git != nil {
		if c, cerr := m.git.HeadCommit(ctx); cerr == nil {
			opts.CommitSHA = c
		}
	}

	resp, err := m.client.Update(ctx, tracker.UpdateRequest{
		SessionID: current.ID,
		Branch:    opts.Branch,
		CommitSHA: opts.CommitSHA,
		Meta:      opts.Meta,
	})
	if err != nil {
		return nil, err
	}
	return &UpdateResult{
		SessionID:       current.ID,
		Branch:          opts.Branch,
		CommitSHA:       opts.CommitSHA,
		UpdatedAt:       resp.UpdatedAt,
		NextHeartbeatAt: resp.NextHeartbeatAt,
		IntervalSeconds: resp.HeartbeatIntervalSeconds,
	}, nil
}

// EndOptions eod 的可选项
type EndOptions struct {
	Reason string
}

// EndResult eod 的结果，带完整交接与快照供打印
type EndResult struct {
	SessionID string
	HandoffID string
	EndedAt   time.Time
	Handoff   *handoff.Handoff
	Snapshot  *activity.Snapshot
}

// End 采集会话窗口内的工作，组装交接并结束会话。
// 交接持久化与状态切换由远端一次完成，客户端视角是原子的。
func (m *Manager) End(ctx context.Context, opts EndOptions) (*EndResult, error) {
	id, err := m.provider.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartLifecycleSpan(ctx, "eod", id.Agent)
	defer span.End()

	current, err := m.currentSession(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := m.collector.Collect(ctx, current.CreatedAt)
	h := handoff.Compose(snap, opts.Reason)

	resp, err := m.client.Eod(ctx, tracker.EodRequest{
		SessionID: current.ID,
		Summary:   h.Summary(),
		Payload: tracker.HandoffPayload{
			Accomplished: h.Accomplished,
			InProgress:   h.InProgress,
			Blocked:      h.Blocked,
			NextSteps:    h.NextSteps,
		},
		StatusLabel: h.StatusLabel,
		EndReason:   h.EndReason,
	})
	if err != nil {
		return nil, err
	}
	return &EndResult{
		SessionID: current.ID,
		HandoffID: resp.HandoffID,
		EndedAt:   resp.EndedAt,
		Handoff:   h,
		Snapshot:  snap,
	}, nil
}

// Sessions 列出当前身份在本仓库下的活跃会话
func (m *Manager) Sessions(ctx context.Context) (*identity.Identity, []tracker.Session, error) {
	id, err := m.provider.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	resp, err := m.client.Active(ctx, id.Agent, id.Venture, id.Repo)
	if err != nil {
		return nil, nil, err
	}
	return id, resp.Sessions, nil
}

// currentSession 取代理在远端的当前会话：
// 精确匹配 agent 字符串，多个时取 id 字典序最小的那个。
func (m *Manager) currentSession(ctx context.Context, id *identity.Identity) (*tracker.Session, error) {
	resp, err := m.client.Active(ctx, id.Agent, id.Venture, id.Repo)
	if err != nil {
		return nil, err
	}
	var current *tracker.Session
	for i := range resp.Sessions {
		s := &resp.Sessions[i]
		if s.Agent != id.Agent {
			continue
		}
		if current == nil || s.ID < current.ID {
			current = s
		}
	}
	if current == nil {
		return nil, &pkgerrors.SessionNotFoundError{}
	}
	return current, nil
}

func docsFromWire(items []tracker.DocItem) []docstore.Doc {
	if len(items) == 0 {
		return nil
	}
	docs := make([]docstore.Doc, 0, len(items))
	for _, d := range items {
		docs = append(docs, docstore.Doc{
			DocName: d.DocName,
			Content: d.Content,
			Scope:   d.Scope,
			Version: d.Version,
		})
	}
	return docs
}
