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

// Package handoff 把工作快照确定性地渲染成交接记录。
// 渲染规则是稳定契约：同一快照永远产出同一文本，
// summary 经远端存取后必须逐字节一致。
package handoff

import (
	"fmt"
	"strings"

	"agent-coord/internal/activity"
)

// 状态标签
const (
	StatusDone       = "done"
	StatusInProgress = "in-progress"
)

// 各小节为空时的固定占位文本
const (
	NoAccomplishments = "No tracked accomplishments"
	NoWorkInProgress  = "No tracked work in progress"
	NoBlockers        = "None detected"
	DefaultNextSteps  = "Continue from where left off"
)

// DefaultEndReason 未显式给出时的会话结束原因
const DefaultEndReason = "end_of_day"

// Handoff 会话结束产出的交接记录
type Handoff struct {
	Accomplished string
	InProgress   string
	Blocked      string
	NextSteps    string
	StatusLabel  string
	EndReason    string
}

// Compose 从快照组装交接记录。各小节按固定顺序拼接，空小节省略。
func Compose(snap *activity.Snapshot, endReason string) *Handoff {
	if endReason == "" {
		endReason = DefaultEndReason
	}
	return &Handoff{
		Accomplished: renderAccomplished(snap),
		InProgress:   renderInProgress(snap),
		Blocked:      NoBlockers,
		NextSteps:    DefaultNextSteps,
		StatusLabel:  statusLabel(snap),
		EndReason:    endReason,
	}
}

// statusLabel 只看提交、新建 issue、新建 PR 与进行中任务四项；
// 关闭/合并/完成的活动不参与判定。
func statusLabel(snap *activity.Snapshot) string {
	if len(snap.Commits) == 0 &&
		len(snap.IssuesCreated) == 0 &&
		len(snap.PRsCreated) == 0 &&
		len(snap.TasksInProgress) == 0 {
		return StatusDone
	}
	return StatusInProgress
}

// renderAccomplished 顺序固定：提交（无标题行）、关闭的 issue、
// 合并的 PR、完成的任务
func renderAccomplished(snap *activity.Snapshot) string {
	var sections []string

	if len(snap.Commits) > 0 {
		lines := make([]string, 0, len(snap.Commits))
		for _, c := range snap.Commits {
			lines = append(lines, fmt.Sprintf("- %s %s", c.ShortID, c.Subject))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if block := issueBlock("Issues closed:", snap.IssuesClosed); block != "" {
		sections = append(sections, block)
	}
	if block := prBlock("PRs merged:", snap.PRsMerged); block != "" {
		sections = append(sections, block)
	}
	if len(snap.TasksCompleted) > 0 {
		lines := []string{"Tasks completed:"}
		for _, task := range snap.TasksCompleted {
			lines = append(lines, "- "+task.Subject)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return NoAccomplishments
	}
	return strings.Join(sections, "\n")
}

// renderInProgress 顺序固定：非主干分支、未关闭的自建 PR、
// 未关闭的自建 issue、进行中的任务
func renderInProgress(snap *activity.Snapshot) string {
	var sections []string

	if snap.Branch != "" {
		sections = append(sections, "On branch "+snap.Branch)
	}
	if block := prBlock("Open PRs:", openPRs(snap.PRsCreated)); block != "" {
		sections = append(sections, block)
	}
	if block := issueBlock("Open issues:", openIssues(snap.IssuesCreated)); block != "" {
		sections = append(sections, block)
	}
	if len(snap.TasksInProgress) > 0 {
		lines := []string{"Tasks in progress:"}
		for _, task := range snap.TasksInProgress {
			lines = append(lines, "- "+task.Subject)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return NoWorkInProgress
	}
	return strings.Join(sections, "\n")
}

func openPRs(prs []activity.PullRequest) []activity.PullRequest {
	var out []activity.PullRequest
	for _, pr := range prs {
		if strings.EqualFold(pr.State, "open") {
			out = append(out, pr)
		}
	}
	return out
}

func openIssues(issues []activity.Issue) []activity.Issue {
	var out []activity.Issue
	for _, is := range issues {
		if strings.EqualFold(is.State, "open") {
			out = append(out, is)
		}
	}
	return out
}

func issueBlock(header string, issues []activity.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	lines := []string{header}
	for _, is := range issues {
		lines = append(lines, fmt.Sprintf("- #%d %s", is.Number, is.Title))
	}
	return strings.Join(lines, "\n")
}

func prBlock(header string, prs []activity.PullRequest) string {
	if len(prs) == 0 {
		return ""
	}
	lines := []string{header}
	for _, pr := range prs {
		lines = append(lines, fmt.Sprintf("- #%d %s", pr.Number, pr.Title))
	}
	return strings.Join(lines, "\n")
}

// Summary 把四个小节渲染成一段稳定文本。
// 该文本会原样经过 eod 存储、再作为 last_handoff 返回，
// 中途不允许任何有损的重排。
func (h *Handoff) Summary() string {
	var b strings.Builder
	b.WriteString("Accomplished:\n")
	b.WriteString(h.Accomplished)
	b.WriteString("\n\nIn progress:\n")
	b.WriteString(h.InProgress)
	b.WriteString("\n\nBlocked:\n")
	b.WriteString(h.Blocked)
	b.WriteString("\n\nNext steps:\n")
	b.WriteString(h.NextSteps)
	return b.String()
}
