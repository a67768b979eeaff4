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

package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-coord/internal/activity"
	"agent-coord/internal/gitx"
	"agent-coord/internal/taskstore"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEmptySnapshotUsesSentinels(t *testing.T) {
	h := Compose(&activity.Snapshot{}, "")

	assert.Equal(t, NoAccomplishments, h.Accomplished)
	assert.Equal(t, NoWorkInProgress, h.InProgress)
	assert.Equal(t, NoBlockers, h.Blocked)
	assert.Equal(t, DefaultNextSteps, h.NextSteps)
	assert.Equal(t, StatusDone, h.StatusLabel)
	assert.Equal(t, DefaultEndReason, h.EndReason)
}

// 关闭的 issue、合并的 PR、完成的任务都不影响 done 判定：
// 状态标签只看提交、新建 issue、新建 PR 与进行中任务
func TestDoneIgnoresClosedAndMergedActivity(t *testing.T) {
	now := time.Now()
	snap := &activity.Snapshot{
		IssuesClosed:   []activity.Issue{{Number: 7, Title: "Flaky sweep test", State: "CLOSED", ClosedAt: timePtr(now)}},
		PRsMerged:      []activity.PullRequest{{Number: 8, Title: "Retry client", State: "MERGED", MergedAt: timePtr(now)}},
		TasksCompleted: []taskstore.Task{{Subject: "Wire heartbeat loop", Status: taskstore.StatusCompleted}},
	}
	h := Compose(snap, "end_of_day")

	assert.Equal(t, StatusDone, h.StatusLabel)
	// 但这些活动仍然出现在 accomplished 里
	assert.Contains(t, h.Accomplished, "Issues closed:\n- #7 Flaky sweep test")
	assert.Contains(t, h.Accomplished, "PRs merged:\n- #8 Retry client")
	assert.Contains(t, h.Accomplished, "Tasks completed:\n- Wire heartbeat loop")
}

func TestSingleCommitRendersExactly(t *testing.T) {
	snap := &activity.Snapshot{
		Commits: []gitx.Commit{{ShortID: "a1b2c3d", Subject: "Implement X"}},
	}
	h := Compose(snap, "")

	assert.Equal(t, "- a1b2c3d Implement X", h.Accomplished)
	assert.NotContains(t, h.Accomplished, "Issues closed:")
	assert.NotContains(t, h.Accomplished, "PRs merged:")
	assert.NotContains(t, h.Accomplished, "Tasks completed:")
	assert.Equal(t, StatusInProgress, h.StatusLabel)
}

func TestAccomplishedSectionOrder(t *testing.T) {
	now := time.Now()
	snap := &activity.Snapshot{
		Commits:        []gitx.Commit{{ShortID: "abc1234", Subject: "Add sweep"}},
		IssuesClosed:   []activity.Issue{{Number: 1, Title: "One", ClosedAt: timePtr(now)}},
		PRsMerged:      []activity.PullRequest{{Number: 2, Title: "Two", MergedAt: timePtr(now)}},
		TasksCompleted: []taskstore.Task{{Subject: "Three"}},
	}
	h := Compose(snap, "")

	want := "- abc1234 Add sweep\n" +
		"Issues closed:\n- #1 One\n" +
		"PRs merged:\n- #2 Two\n" +
		"Tasks completed:\n- Three"
	assert.Equal(t, want, h.Accomplished)
}

func TestInProgressComposition(t *testing.T) {
	snap := &activity.Snapshot{
		Branch: "feature/x",
		PRsCreated: []activity.PullRequest{
			{Number: 8, Title: "Retry client", State: "OPEN"},
			{Number: 9, Title: "Already merged", State: "MERGED"},
		},
		IssuesCreated: []activity.Issue{
			{Number: 7, Title: "Flaky sweep test", State: "OPEN"},
		},
		TasksInProgress: []taskstore.Task{{Subject: "Session sweeper", Status: taskstore.StatusInProgress}},
	}
	h := Compose(snap, "")

	want := "On branch feature/x\n" +
		"Open PRs:\n- #8 Retry client\n" +
		"Open issues:\n- #7 Flaky sweep test\n" +
		"Tasks in progress:\n- Session sweeper"
	assert.Equal(t, want, h.InProgress)
	assert.NotContains(t, h.InProgress, "Already merged")
	assert.Equal(t, StatusInProgress, h.StatusLabel)
}

func TestStatusFlipsOnAnyDriver(t *testing.T) {
	cases := map[string]*activity.Snapshot{
		"commit":         {Commits: []gitx.Commit{{ShortID: "abc", Subject: "x"}}},
		"issue created":  {IssuesCreated: []activity.Issue{{Number: 1, Title: "x", State: "OPEN"}}},
		"pr created":     {PRsCreated: []activity.PullRequest{{Number: 1, Title: "x", State: "OPEN"}}},
		"task in flight": {TasksInProgress: []taskstore.Task{{Subject: "x"}}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, StatusInProgress, Compose(snap, "").StatusLabel)
		})
	}
}

func TestSummaryStableAcrossRenders(t *testing.T) {
	snap := &activity.Snapshot{
		Commits: []gitx.Commit{{ShortID: "abc1234", Subject: "Add sweep"}},
		Branch:  "feature/x",
	}
	first := Compose(snap, "").Summary()
	second := Compose(snap, "").Summary()
	require.Equal(t, first, second)

	want := "Accomplished:\n- abc1234 Add sweep\n\n" +
		"In progress:\nOn branch feature/x\n\n" +
		"Blocked:\nNone detected\n\n" +
		"Next steps:\nContinue from where left off"
	assert.Equal(t, want, first)
}
