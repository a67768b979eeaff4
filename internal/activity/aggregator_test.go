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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-coord/internal/gitx"
	"agent-coord/internal/taskstore"
	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return logger
}

// setupRepo 建一个在 feature/x 分支上、有一条回溯提交和一条新提交的仓库
func setupRepo(t *testing.T) (dir string, since time.Time) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir = t.TempDir()
	since = time.Now().Add(-time.Hour)
	backdated := time.Now().Add(-2 * time.Hour).Format(time.RFC3339)

	run := func(extraEnv []string, args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), extraEnv...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run(nil, "init", "-q")
	run(nil, "config", "user.email", "dev@example.com")
	run(nil, "config", "user.name", "dev")
	run(nil, "checkout", "-q", "-b", "main")
	run([]string{"GIT_AUTHOR_DATE=" + backdated, "GIT_COMMITTER_DATE=" + backdated},
		"commit", "-q", "--allow-empty", "-m", "Initial scaffolding")
	run(nil, "checkout", "-q", "-b", "feature/x")
	run(nil, "commit", "-q", "--allow-empty", "-m", "Add retry budget to client")
	return dir, since
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	m := &taskstore.Manifest{Version: 1, Tasks: []taskstore.Task{
		{ID: "task-1", Subject: "Wire heartbeat loop", Status: taskstore.StatusCompleted},
		{ID: "task-2", Subject: "Session sweeper", Status: taskstore.StatusInProgress},
		{ID: "task-3", Subject: "Docs cache", Status: taskstore.StatusTodo},
	}}
	path := filepath.Join(dir, ".coord", "tasks", "active.yaml")
	require.NoError(t, taskstore.Save(path, m))
	return path
}

func newTestAggregator(t *testing.T, dir, manifest string) *Aggregator {
	t.Helper()
	return NewAggregator(
		config.ActivityConfig{TrunkBranches: []string{"main", "master"}, GHBinary: "definitely-not-a-binary-xyz"},
		config.TasksConfig{Manifest: manifest},
		gitx.New(dir),
		testLogger(t),
	)
}

func TestCollectGitAndTasks(t *testing.T) {
	dir, since := setupRepo(t)
	manifest := writeManifest(t, dir)
	a := newTestAggregator(t, dir, manifest)

	snap := a.Collect(context.Background(), since)

	// 会话窗口内只有一条提交，且短 id 与标题都要对得上
	require.Len(t, snap.Commits, 1)
	assert.Equal(t, "Add retry budget to client", snap.Commits[0].Subject)
	assert.NotEmpty(t, snap.Commits[0].ShortID)

	assert.Equal(t, "feature/x", snap.Branch)

	require.Len(t, snap.TasksCompleted, 1)
	assert.Equal(t, "Wire heartbeat loop", snap.TasksCompleted[0].Subject)
	require.Len(t, snap.TasksInProgress, 1)
	assert.Equal(t, "Session sweeper", snap.TasksInProgress[0].Subject)

	assert.Empty(t, snap.SourceErrors)
	assert.Empty(t, snap.Degraded())
}

func TestCollectTrunkBranchSuppressed(t *testing.T) {
	dir, since := setupRepo(t)
	cmd := exec.Command("git", "checkout", "-q", "main")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	a := newTestAggregator(t, dir, filepath.Join(dir, ".coord", "tasks", "active.yaml"))
	snap := a.Collect(context.Background(), since)
	assert.Empty(t, snap.Branch)
}

func TestCollectOutsideRepoDegradesGitOnly(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	manifest := writeManifest(t, dir)
	a := newTestAggregator(t, dir, manifest)

	snap := a.Collect(context.Background(), time.Now().Add(-time.Hour))

	assert.Contains(t, snap.SourceErrors, "git")
	assert.Empty(t, snap.Commits)
	// 任务清单照常采集
	require.Len(t, snap.TasksCompleted, 1)
	assert.Equal(t, []string{"git"}, snap.Degraded())
}

func TestCollectMissingManifestIsNotDegraded(t *testing.T) {
	dir, since := setupRepo(t)
	a := newTestAggregator(t, dir, filepath.Join(dir, "no-such-manifest.yaml"))

	snap := a.Collect(context.Background(), since)
	assert.Empty(t, snap.TasksCompleted)
	assert.Empty(t, snap.TasksInProgress)
	assert.NotContains(t, snap.SourceErrors, "tasks")
}

func TestCollectGHFailureDegradesGHOnly(t *testing.T) {
	dir, since := setupRepo(t)
	a := newTestAggregator(t, dir, filepath.Join(dir, ".coord", "tasks", "active.yaml"))
	// 用一个必然存在的可执行名让 Available 通过，再注入失败的 runner
	a.gh = NewGHCollector("git", dir)
	a.gh.runner = fixedRunner("", fmt.Errorf("gh: api rate limited"))

	snap := a.Collect(context.Background(), since)

	assert.Contains(t, snap.SourceErrors, "gh")
	assert.Empty(t, snap.IssuesCreated)
	// git 来源不受影响
	require.Len(t, snap.Commits, 1)
}

func TestCollectGHPopulatesIssuesAndPRs(t *testing.T) {
	dir, since := setupRepo(t)
	a := newTestAggregator(t, dir, filepath.Join(dir, ".coord", "tasks", "active.yaml"))
	a.gh = NewGHCollector("git", dir)
	now := time.Now().UTC().Format(time.RFC3339)
	a.gh.runner = func(ctx context.Context, d, name string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == "issue" {
			return []byte(fmt.Sprintf(`[{"number":7,"title":"Flaky sweep test","state":"OPEN","createdAt":%q,"closedAt":null}]`, now)), nil
		}
		return []byte(fmt.Sprintf(`[{"number":8,"title":"Retry client","state":"MERGED","createdAt":%q,"mergedAt":%q}]`, now, now)), nil
	}

	snap := a.Collect(context.Background(), since)

	require.Len(t, snap.IssuesCreated, 1)
	assert.Equal(t, "Flaky sweep test", snap.IssuesCreated[0].Title)
	require.Len(t, snap.PRsMerged, 1)
	assert.Equal(t, 8, snap.PRsMerged[0].Number)
	assert.Empty(t, snap.SourceErrors)
}
