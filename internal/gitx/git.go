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

// Package gitx 对本地仓库执行 git 子命令的轻量封装
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNotRepo 目标目录不在任何 git 仓库内
var ErrNotRepo = errors.New("gitx: not a git repository")

// Git 绑定到某个工作目录的 git 封装
type Git struct {
	dir string
}

// New 创建 Git，dir 为任意位于仓库内的目录
func New(dir string) *Git {
	return &Git{dir: dir}
}

// Dir 返回绑定的工作目录
func (g *Git) Dir() string {
	return g.dir
}

// GitError 携带失败命令与 stderr，便于上层按子系统报告
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *GitError) Unwrap() error { return e.Err }

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo 判断 dir 是否位于 git 仓库内
func (g *Git) IsRepo(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// Root 返回仓库顶层目录
func (g *Git) Root(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--show-toplevel")
}

// CurrentBranch 返回当前分支名；detached HEAD 时返回 "HEAD"
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadCommit 返回 HEAD 的短 id
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--short", "HEAD")
}

// RemoteURL 返回指定 remote 的抓取地址
func (g *Git) RemoteURL(ctx context.Context, name string) (string, error) {
	return g.run(ctx, "remote", "get-url", name)
}

// Commit 一条提交的短 id 与标题行
type Commit struct {
	ShortID string
	Subject string
}

// CommitsSince 列出 since 之后当前分支上的非 merge 提交，新在前
func (g *Git) CommitsSince(ctx context.Context, since time.Time) ([]Commit, error) {
	out, err := g.run(ctx, "log",
		"--no-merges",
		"--since="+since.Format(time.RFC3339),
		"--pretty=format:%h%x09%s")
	if err != nil {
		return nil, err
	}
	return parseCommits(out), nil
}

// parseCommits 解析 "%h<TAB>%s" 格式的 git log 输出
func parseCommits(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		c := Commit{ShortID: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			c.Subject = parts[1]
		}
		commits = append(commits, c)
	}
	return commits
}
