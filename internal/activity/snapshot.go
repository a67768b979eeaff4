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

package activity

import (
	"time"

	"agent-coord/internal/gitx"
	"agent-coord/internal/taskstore"
)

// Issue gh CLI 返回的 issue 视图
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
}

// PullRequest gh CLI 返回的 PR 视图
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	MergedAt  *time.Time `json:"mergedAt"`
}

// Snapshot 会话期间的工作快照。各字段按来源独立采集，
// 某个来源不可用时对应字段为空，SourceErrors 记录原因。
type Snapshot struct {
	Since time.Time

	Commits []gitx.Commit
	// Branch 当前非主干分支名，主干或无法判断时为空
	Branch string

	IssuesCreated []Issue
	IssuesClosed  []Issue
	PRsCreated    []PullRequest
	PRsMerged     []PullRequest

	TasksCompleted  []taskstore.Task
	TasksInProgress []taskstore.Task

	// SourceErrors 采集失败的来源及原因，键为 git/gh/tasks
	SourceErrors map[string]string
}

func newSnapshot(since time.Time) *Snapshot {
	return &Snapshot{Since: since, SourceErrors: map[string]string{}}
}

func (s *Snapshot) fail(source string, err error) {
	s.SourceErrors[source] = err.Error()
}

// Degraded 返回本次采集失败的来源名
func (s *Snapshot) Degraded() []string {
	if len(s.SourceErrors) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.SourceErrors))
	for _, source := range []string{"git", "gh", "tasks"} {
		if _, ok := s.SourceErrors[source]; ok {
			out = append(out, source)
		}
	}
	return out
}
