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

// Package trackerd 会话跟踪服务的参考实现：
// 接收 sod/heartbeat/update/eod，仲裁会话唯一性与超时，持久化交接。
package trackerd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-coord/pkg/config"
)

// 会话状态
const (
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusAbandoned = "abandoned"
)

var (
	ErrSessionNotFound  = errors.New("trackerd: session not found")
	ErrSessionNotActive = errors.New("trackerd: session not active")
)

// Session 服务端会话记录
type Session struct {
	ID              string
	Agent           string
	ClientKind      string
	ClientVersion   string
	Host            string
	Venture         string
	Repo            string
	Track           string
	Branch          string
	CommitSHA       string
	Status          string
	Meta            map[string]string
	CreatedAt       time.Time
	LastHeartbeatAt time.Time
	EndedAt         time.Time
}

// Handoff 服务端交接记录，一旦写入不可变
type Handoff struct {
	ID           string
	SessionID    string
	Agent        string
	Venture      string
	Repo         string
	Summary      string
	Accomplished string
	InProgress   string
	Blocked      string
	NextSteps    string
	StatusLabel  string
	EndReason    string
	CreatedAt    time.Time
}

// Store 会话与交接的存储接口。
// 同一 (agent, venture, repo) 元组最多一个活跃会话，由 StartSession 仲裁。
type Store interface {
	// StartSession 开始会话；元组已有活跃会话时恢复并返回 resumed=true
	StartSession(ctx context.Context, s *Session) (*Session, bool, error)
	// ActiveSessions 列出 venture/repo 下全部活跃会话
	ActiveSessions(ctx context.Context, venture, repo string) ([]*Session, error)
	// Heartbeat 刷新会话存活时间
	Heartbeat(ctx context.Context, sessionID string, at time.Time) (*Session, error)
	// UpdateSession 记录工作上下文并刷新存活时间
	UpdateSession(ctx context.Context, sessionID, branch, commitSHA string, meta map[string]string, at time.Time) (*Session, error)
	// EndSession 持久化交接并把会话置为 ended，两者在一次调用里完成
	EndSession(ctx context.Context, sessionID string, h *Handoff, at time.Time) (*Handoff, error)
	// LastHandoff 取 venture/repo 下最近一次交接，没有时返回 nil
	LastHandoff(ctx context.Context, venture, repo string) (*Handoff, error)
	// ExpireSessions 把心跳早于 cutoff 的活跃会话置为 abandoned，返回被放弃的会话
	ExpireSessions(ctx context.Context, cutoff time.Time) ([]*Session, error)
	// Close 释放底层资源
	Close()
}

// NewStore 按配置创建存储
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("trackerd: store.type=postgres 需要配置 dsn")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("trackerd: 不支持的存储类型: %s", cfg.Type)
	}
}
