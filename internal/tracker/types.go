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

import "time"

// 会话状态（远端视角）
const (
	StatusActive    = "active"
	StatusAbandoned = "abandoned"
	StatusEnded     = "ended"
)

// Session 远端会话视图
type Session struct {
	ID              string    `json:"id"`
	Agent           string    `json:"agent"`
	Venture         string    `json:"venture"`
	Repo            string    `json:"repo"`
	Track           string    `json:"track,omitempty"`
	Branch          string    `json:"branch,omitempty"`
	CommitSHA       string    `json:"commit_sha,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at,omitempty"`
}

// LastHandoff 上一次会话留下的交接摘要
type LastHandoff struct {
	Summary     string    `json:"summary"`
	FromAgent   string    `json:"from_agent"`
	CreatedAt   time.Time `json:"created_at"`
	StatusLabel string    `json:"status_label"`
}

// DocItem sod 下发的单篇工作文档
type DocItem struct {
	DocName string `json:"doc_name"`
	Content string `json:"content"`
	Scope   string `json:"scope"`
	Version string `json:"version"`
}

// Documentation sod 下发的文档集
type Documentation struct {
	Count int       `json:"count"`
	Docs  []DocItem `json:"docs"`
}

// SodRequest POST /sod 请求体
type SodRequest struct {
	Agent         string `json:"agent"`
	ClientKind    string `json:"client_kind"`
	ClientVersion string `json:"client_version"`
	Host          string `json:"host"`
	Venture       string `json:"venture"`
	Repo          string `json:"repo"`
	Track         string `json:"track,omitempty"`
	IncludeDocs   bool   `json:"include_docs"`
	IncludePeers  bool   `json:"include_peers"`
}

// SodResponse POST /sod 响应体。Resumed 表示同元组已有活跃会话，本次为恢复。
type SodResponse struct {
	Session        Session        `json:"session"`
	Resumed        bool           `json:"resumed,omitempty"`
	LastHandoff    *LastHandoff   `json:"last_handoff,omitempty"`
	Documentation  *Documentation `json:"documentation,omitempty"`
	ActiveSessions []Session      `json:"active_sessions,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ActiveResponse GET /active 响应体
type ActiveResponse struct {
	Sessions []Session `json:"sessions"`
	Error    string    `json:"error,omitempty"`
}

// HeartbeatRequest POST /heartbeat 请求体
type HeartbeatRequest struct {
	SessionID string `json:"session_id"`
}

// HeartbeatResponse POST /heartbeat 响应体
type HeartbeatResponse struct {
	LastHeartbeatAt          time.Time `json:"last_heartbeat_at"`
	NextHeartbeatAt          time.Time `json:"next_heartbeat_at"`
	HeartbeatIntervalSeconds int       `json:"heartbeat_interval_seconds"`
	Error                    string    `json:"error,omitempty"`
}

// UpdateRequest POST /update 请求体
type UpdateRequest struct {
	SessionID string            `json:"session_id"`
	Branch    string            `json:"branch,omitempty"`
	CommitSHA string            `json:"commit_sha,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// UpdateResponse POST /update 响应体
type UpdateResponse struct {
	UpdatedAt                time.Time `json:"updated_at"`
	NextHeartbeatAt          time.Time `json:"next_heartbeat_at"`
	HeartbeatIntervalSeconds int       `json:"heartbeat_interval_seconds"`
	Error                    string    `json:"error,omitempty"`
}

// HandoffPayload 结构化交接内容，各字段为渲染好的小节文本
type HandoffPayload struct {
	Accomplished string `json:"accomplished"`
	InProgress   string `json:"in_progress"`
	Blocked      string `json:"blocked"`
	NextSteps    string `json:"next_steps"`
}

// EodRequest POST /eod 请求体
type EodRequest struct {
	SessionID   string         `json:"session_id"`
	Summary     string         `json:"summary"`
	Payload     HandoffPayload `json:"payload"`
	StatusLabel string         `json:"status_label"`
	EndReason   string         `json:"end_reason"`
}

// EodResponse POST /eod 响应体
type EodResponse struct {
	HandoffID string    `json:"handoff_id"`
	EndedAt   time.Time `json:"ended_at"`
	Error     string    `json:"error,omitempty"`
}

// Venture 注册表条目：org 段到 venture 代号
type Venture struct {
	Org  string `json:"org"`
	Code string `json:"code"`
}

// VenturesResponse GET /ventures 响应体
type VenturesResponse struct {
	Ventures []Venture `json:"ventures"`
	Error    string    `json:"error,omitempty"`
}
