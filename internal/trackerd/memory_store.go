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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 进程内存储，适合单实例部署与测试
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	handoffs map[string][]*Handoff // key 为 venture/repo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		handoffs: make(map[string][]*Handoff),
	}
}

func handoffKey(venture, repo string) string {
	return venture + "/" + repo
}

func copySession(s *Session) *Session {
	out := *s
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}

func copyHandoff(h *Handoff) *Handoff {
	out := *h
	return &out
}

// StartSession 同元组已有活跃会话时恢复它（刷新心跳），否则新建
func (m *MemoryStore) StartSession(ctx context.Context, s *Session) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.Status == StatusActive &&
			existing.Agent == s.Agent &&
			existing.Venture == s.Venture &&
			existing.Repo == s.Repo {
			existing.LastHeartbeatAt = s.LastHeartbeatAt
			return copySession(existing), true, nil
		}
	}

	created := copySession(s)
	created.ID = "sess-" + uuid.New().String()
	created.Status = StatusActive
	m.sessions[created.ID] = created
	return copySession(created), false, nil
}

func (m *MemoryStore) ActiveSessions(ctx context.Context, venture, repo string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.Status == StatusActive && s.Venture == venture && s.Repo == repo {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) Heartbeat(ctx context.Context, sessionID string, at time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}
	// 重复心跳是安全的：晚于当前值才推进
	if at.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = at
	}
	return copySession(s), nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, sessionID, branch, commitSHA string, meta map[string]string, at time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}
	if branch != "" {
		s.Branch = branch
	}
	if commitSHA != "" {
		s.CommitSHA = commitSHA
	}
	if len(meta) > 0 {
		if s.Meta == nil {
			s.Meta = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			s.Meta[k] = v
		}
	}
	if at.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = at
	}
	return copySession(s), nil
}

func (m *MemoryStore) EndSession(ctx context.Context, sessionID string, h *Handoff, at time.Time) (*Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}

	s.Status = StatusEnded
	s.EndedAt = at

	stored := copyHandoff(h)
	stored.ID = "hand-" + uuid.New().String()
	stored.SessionID = s.ID
	stored.Agent = s.Agent
	stored.Venture = s.Venture
	stored.Repo = s.Repo
	stored.CreatedAt = at

	key := handoffKey(s.Venture, s.Repo)
	m.handoffs[key] = append(m.handoffs[key], stored)
	return copyHandoff(stored), nil
}

func (m *MemoryStore) LastHandoff(ctx context.Context, venture, repo string) (*Handoff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.handoffs[handoffKey(venture, repo)]
	if len(list) == 0 {
		return nil, nil
	}
	return copyHandoff(list[len(list)-1]), nil
}

func (m *MemoryStore) ExpireSessions(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*Session
	for _, s := range m.sessions {
		if s.Status == StatusActive && s.LastHeartbeatAt.Before(cutoff) {
			s.Status = StatusAbandoned
			expired = append(expired, copySession(s))
		}
	}
	return expired, nil
}

func (m *MemoryStore) Close() {}
