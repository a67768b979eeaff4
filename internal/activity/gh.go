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
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

const ghListLimit = "100"

// issueFields、prFields 对应 gh --json 的字段选择
const (
	issueFields = "number,title,state,createdAt,closedAt"
	prFields    = "number,title,state,createdAt,mergedAt"
)

// GHCollector 通过 gh CLI 采集 issue 与 PR。
// gh 未安装或未登录时整个来源视为不可用，不影响其他来源。
type GHCollector struct {
	binary string
	dir    string

	// runner 执行外部命令，测试中可注入
	runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

func NewGHCollector(binary, dir string) *GHCollector {
	return &GHCollector{
		binary: binary,
		dir:    dir,
		runner: runCommand,
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s %v: %s", name, args, ee.Stderr)
		}
		return nil, fmt.Errorf("%s %v: %w", name, args, err)
	}
	return out, nil
}

// Available 检查 gh 可执行文件是否存在
func (g *GHCollector) Available() bool {
	_, err := exec.LookPath(g.binary)
	return err == nil
}

// Issues 列出本人名下的 issue，按 since 分为会话内创建与会话内关闭两组
func (g *GHCollector) Issues(ctx context.Context, since time.Time) (created, closed []Issue, err error) {
	out, err := g.runner(ctx, g.dir, g.binary,
		"issue", "list", "--author", "@me", "--state", "all",
		"--json", issueFields, "--limit", ghListLimit)
	if err != nil {
		return nil, nil, err
	}
	var issues []Issue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, nil, fmt.Errorf("gh issue list 输出解析失败: %w", err)
	}
	for _, is := range issues {
		if !is.CreatedAt.Before(since) {
			created = append(created, is)
		}
		if is.ClosedAt != nil && !is.ClosedAt.Before(since) {
			closed = append(closed, is)
		}
	}
	return created, closed, nil
}

// PullRequests 列出本人名下的 PR，按 since 分为会话内创建与会话内合并两组
func (g *GHCollector) PullRequests(ctx context.Context, since time.Time) (created, merged []PullRequest, err error) {
	out, err := g.runner(ctx, g.dir, g.binary,
		"pr", "list", "--author", "@me", "--state", "all",
		"--json", prFields, "--limit", ghListLimit)
	if err != nil {
		return nil, nil, err
	}
	var prs []PullRequest
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, nil, fmt.Errorf("gh pr list 输出解析失败: %w", err)
	}
	for _, pr := range prs {
		if !pr.CreatedAt.Before(since) {
			created = append(created, pr)
		}
		if pr.MergedAt != nil && !pr.MergedAt.Before(since) {
			merged = append(merged, pr)
		}
	}
	return created, merged, nil
}
