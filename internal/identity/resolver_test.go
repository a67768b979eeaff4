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

package identity

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-coord/internal/docstore"
	"agent-coord/internal/gitx"
	"agent-coord/pkg/config"
	pkgerrors "agent-coord/pkg/errors"
	"agent-coord/pkg/log"
	"agent-coord/pkg/secrets"
)

type fakeDirectory struct {
	registry map[string]string
	err      error
	calls    int
}

func (f *fakeDirectory) Ventures(ctx context.Context) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.registry, nil
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return logger
}

// setupRepoWithOrigin 建一个带 origin 的空仓库
func setupRepoWithOrigin(t *testing.T, origin string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"remote", "add", "origin", origin},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	return dir
}

func clearMarkers(t *testing.T) {
	t.Helper()
	for _, m := range envMarkers {
		t.Setenv(m.env, "")
	}
}

func TestParseRepoSlug(t *testing.T) {
	cases := []struct {
		remote string
		org    string
		slug   string
	}{
		{"git@github.com:acme/widget.git", "acme", "acme/widget"},
		{"git@github.com:acme/widget", "acme", "acme/widget"},
		{"https://github.com/acme/widget.git", "acme", "acme/widget"},
		{"https://github.com/acme/widget", "acme", "acme/widget"},
		{"ssh://git@github.com/acme/widget.git", "acme", "acme/widget"},
		{"https://gitlab.example.com/platform/tools/runner.git", "tools", "tools/runner"},
	}
	for _, tc := range cases {
		org, slug, err := ParseRepoSlug(tc.remote)
		require.NoError(t, err, tc.remote)
		assert.Equal(t, tc.org, org, tc.remote)
		assert.Equal(t, tc.slug, slug, tc.remote)
	}
}

func TestParseRepoSlugRejectsMalformed(t *testing.T) {
	for _, remote := range []string{"", "https://github.com", "git@host:justname", "lonely"} {
		_, _, err := ParseRepoSlug(remote)
		assert.Error(t, err, remote)
	}
}

func TestClientKindMarkers(t *testing.T) {
	clearMarkers(t)
	assert.Equal(t, "agent", ClientKind())

	t.Setenv("GEMINI_CLI", "1")
	assert.Equal(t, "gemini", ClientKind())

	// 多个标记同时存在时按优先级取第一个
	t.Setenv("CLAUDECODE", "1")
	assert.Equal(t, "claude", ClientKind())
}

func TestResolveUnknownOrg(t *testing.T) {
	dir := setupRepoWithOrigin(t, "git@github.com:acme/widget.git")
	directory := &fakeDirectory{registry: map[string]string{"other": "OT"}}
	r := NewResolver(config.IdentityConfig{}, gitx.New(dir), directory, nil, testLogger(t))

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "acme")
}

func TestResolveProducesIdentity(t *testing.T) {
	clearMarkers(t)
	dir := setupRepoWithOrigin(t, "https://github.com/acme/widget.git")
	directory := &fakeDirectory{registry: map[string]string{"acme": "AC"}}
	cache := docstore.NewCache(docstore.NewMemoryStore())
	r := NewResolver(config.IdentityConfig{AgentKind: "claude"}, gitx.New(dir), directory, cache, testLogger(t))

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AC", id.Venture)
	assert.Equal(t, "acme/widget", id.Repo)
	assert.Equal(t, "claude", id.ClientKind)
	assert.Equal(t, "claude-"+id.Host, id.Agent)
	assert.NotEmpty(t, id.Host)

	// 成功解析后注册表应已写入缓存
	cached, err := cache.LoadVentures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AC", cached["acme"])
}

func TestResolveFallsBackToCachedRegistry(t *testing.T) {
	clearMarkers(t)
	dir := setupRepoWithOrigin(t, "git@github.com:acme/widget.git")
	cache := docstore.NewCache(docstore.NewMemoryStore())
	require.NoError(t, cache.SaveVentures(context.Background(), map[string]string{"acme": "AC"}))

	directory := &fakeDirectory{err: &pkgerrors.NetworkError{Endpoint: "GET /ventures", Attempts: 3}}
	r := NewResolver(config.IdentityConfig{}, gitx.New(dir), directory, cache, testLogger(t))

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AC", id.Venture)
}

func TestResolveRegistryUnavailable(t *testing.T) {
	dir := setupRepoWithOrigin(t, "git@github.com:acme/widget.git")
	directory := &fakeDirectory{err: &pkgerrors.NetworkError{Endpoint: "GET /ventures", Attempts: 3}}
	r := NewResolver(config.IdentityConfig{}, gitx.New(dir), directory, nil, testLogger(t))

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfiguration(err))
}

func TestResolveOutsideRepo(t *testing.T) {
	r := NewResolver(config.IdentityConfig{}, gitx.New(t.TempDir()), &fakeDirectory{}, nil, testLogger(t))

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfiguration(err))
	// 身份未解析成功前不应碰注册表以外的任何远端接口
}

func TestEnsureCredential(t *testing.T) {
	store := secrets.NewMemoryStore()
	ctx := context.Background()

	_, err := EnsureCredential(ctx, store, "tracker_token")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfiguration(err))

	require.NoError(t, store.Set(ctx, "tracker_token", "tok-123"))
	v, err := EnsureCredential(ctx, store, "tracker_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", v)
}
