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
	"context"
	"slices"
	"time"

	"agent-coord/internal/gitx"
	"agent-coord/internal/taskstore"
	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
	"agent-coord/pkg/tracing"
)

// Aggregator 汇总会话期间的本地工作痕迹。
// 每个来源独立失败：git 不可用不影响任务清单，反之亦然。
type Aggregator struct {
	git      *gitx.Git
	gh       *GHCollector
	manifest string
	trunks   []string
	logger   *log.Logger
}

func NewAggregator(cfg config.ActivityConfig, tasks config.TasksConfig, git *gitx.Git, logger *log.Logger) *Aggregator {
	return &Aggregator{
		git:      git,
		gh:       NewGHCollector(cfg.GHBinary, git.Dir()),
		manifest: tasks.Manifest,
		trunks:   cfg.TrunkBranches,
		logger:   logger,
	}
}

// Collect 采集自 since 以来的快照。单个来源失败只记录并降级，从不中断。
func (a *Aggregator) Collect(ctx context.Context, since time.Time) *Snapshot {
	snap := newSnapshot(since)
	a.collectGit(ctx, snap)
	a.collectGH(ctx, snap)
	a.collectTasks(ctx, snap)
	return snap
}

func (a *Aggregator) collectGit(ctx context.Context, snap *Snapshot) {
	ctx, span := tracing.StartCollectSpan(ctx, "git")
	defer span.End()

	if !a.git.IsRepo(ctx) {
		a.logger.Warn("当前目录不是 git 仓库，跳过提交采集")
		snap.fail("git", gitx.ErrNotRepo)
		return
	}

	commits, err := a.git.CommitsSince(ctx, snap.Since)
	if err != nil {
		a.logger.Warn("读取提交记录失败", "error", err)
		snap.fail("git", err)
		return
	}
	snap.Commits = commits

	branch, err := a.git.CurrentBranch(ctx)
	if err != nil {
		a.logger.Warn("读取当前分支失败", "error", err)
		return
	}
	// 主干与 detached HEAD 不算进行中的分支
	if branch != "HEAD" && !slices.Contains(a.trunks, branch) {
		snap.Branch = branch
	}
}

func (a *Aggregator) collectGH(ctx context.Context, snap *Snapshot) {
	ctx, span := tracing.StartCollectSpan(ctx, "gh")
	defer span.End()

	if !a.gh.Available() {
		a.logger.Debug("gh 未安装，跳过 issue/PR 采集")
		return
	}

	created, closed, err := a.gh.Issues(ctx, snap.Since)
	if err != nil {
		a.logger.Warn("gh issue 采集失败", "error", err)
		snap.fail("gh", err)
	} else {
		snap.IssuesCreated = created
		snap.IssuesClosed = closed
	}

	prCreated, prMerged, err := a.gh.PullRequests(ctx, snap.Since)
	if err != nil {
		a.logger.Warn("gh pr 采集失败", "error", err)
		snap.fail("gh", err)
		return
	}
	snap.PRsCreated = prCreated
	snap.PRsMerged = prMerged
}

func (a *Aggregator) collectTasks(ctx context.Context, snap *Snapshot) {
	_, span := tracing.StartCollectSpan(ctx, "tasks")
	defer span.End()

	// 清单不存在是常态（仓库未启用任务跟踪），不算降级
	m, err := taskstore.LoadOrEmpty(a.manifest)
	if err != nil {
		a.logger.Warn("读取任务清单失败", "path", a.manifest, "error", err)
		snap.fail("tasks", err)
		return
	}
	snap.TasksCompleted = m.Completed()
	snap.TasksInProgress = m.InProgress()
}
