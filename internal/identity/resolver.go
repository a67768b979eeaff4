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
	"fmt"
	"os"
	"strings"

	"agent-coord/internal/docstore"
	"agent-coord/internal/gitx"
	"agent-coord/pkg/config"
	pkgerrors "agent-coord/pkg/errors"
	"agent-coord/pkg/log"
	"agent-coord/pkg/secrets"
	"agent-coord/pkg/utils"
)

// envMarkers 客户端种类的环境标记，按优先级排列。
// 多个标记同时存在时取第一个命中的。
var envMarkers = []struct {
	env  string
	kind string
}{
	{"CLAUDECODE", "claude"},
	{"CURSOR_AGENT", "cursor"},
	{"GEMINI_CLI", "gemini"},
	{"AIDER_MODEL", "aider"},
}

// defaultClientKind 无任何标记时的通用种类
const defaultClientKind = "agent"

// Identity 解析完成的会话身份
type Identity struct {
	Agent         string // {clientKind}-{hostname}
	ClientKind    string
	ClientVersion string
	Host          string
	Org           string
	Venture       string
	Repo          string // org/name 形式的仓库标识
}

// VentureDirectory 拉取 org 段到 venture 代号的注册表
type VentureDirectory interface {
	Ventures(ctx context.Context) (map[string]string, error)
}

// Resolver 从本地仓库与远端注册表解析会话身份。
// 任一环节失败都返回 ConfigurationError，调用方不应再发起 sod。
type Resolver struct {
	cfg       config.IdentityConfig
	git       *gitx.Git
	directory VentureDirectory
	cache     *docstore.Cache
	logger    *log.Logger
}

func NewResolver(cfg config.IdentityConfig, git *gitx.Git, directory VentureDirectory, cache *docstore.Cache, logger *log.Logger) *Resolver {
	return &Resolver{
		cfg:       cfg,
		git:       git,
		directory: directory,
		cache:     cache,
		logger:    logger,
	}
}

// Resolve 产出完整身份：仓库标识、venture 代号与代理名
func (r *Resolver) Resolve(ctx context.Context) (*Identity, error) {
	remote, err := r.git.RemoteURL(ctx, "origin")
	if err != nil {
		return nil, pkgerrors.NewConfiguration("当前目录不是带 origin 的 git 仓库: %v", err)
	}

	org, slug, err := ParseRepoSlug(remote)
	if err != nil {
		return nil, pkgerrors.NewConfiguration("无法从 origin 解析仓库标识: %v", err)
	}

	registry, err := r.ventureRegistry(ctx)
	if err != nil {
		return nil, err
	}
	code, ok := registry[org]
	if !ok {
		return nil, pkgerrors.NewConfiguration("组织 %q 不在 venture 注册表里，请先在跟踪服务登记", org)
	}

	kind := utils.CoalesceString(r.cfg.AgentKind, ClientKind())
	host := hostname()

	return &Identity{
		Agent:         kind + "-" + host,
		ClientKind:    kind,
		ClientVersion: utils.CoalesceString(r.cfg.ClientVersion, "dev"),
		Host:          host,
		Org:           org,
		Venture:       code,
		Repo:          slug,
	}, nil
}

// ventureRegistry 优先拉远端注册表并回写缓存；
// 拉取失败时退回上次缓存，两者皆空才算解析失败。
func (r *Resolver) ventureRegistry(ctx context.Context) (map[string]string, error) {
	registry, err := r.directory.Ventures(ctx)
	if err == nil {
		if r.cache != nil {
			if cerr := r.cache.SaveVentures(ctx, registry); cerr != nil {
				r.logger.Warn("缓存 venture 注册表失败", "error", cerr)
			}
		}
		return registry, nil
	}

	if r.cache != nil {
		cached, cerr := r.cache.LoadVentures(ctx)
		if cerr == nil && len(cached) > 0 {
			r.logger.Warn("venture 注册表拉取失败，使用本地缓存", "error", err)
			return cached, nil
		}
	}
	return nil, pkgerrors.NewConfiguration("venture 注册表不可用: %v", err)
}

// ClientKind 按环境标记识别客户端种类，无标记时返回通用值
func ClientKind() string {
	for _, m := range envMarkers {
		if os.Getenv(m.env) != "" {
			return m.kind
		}
	}
	return defaultClientKind
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}

// ParseRepoSlug 从 git 远端地址解析出组织段与 org/name 形式的仓库标识。
// 支持 scp 风格（git@host:org/repo.git）与 URL 风格（https、ssh）。
func ParseRepoSlug(remote string) (org, slug string, err error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", "", fmt.Errorf("identity: 远端地址为空")
	}

	var path string
	switch {
	case strings.Contains(remote, "://"):
		// https://host/org/repo.git、ssh://git@host/org/repo.git
		parts := strings.SplitN(remote, "://", 2)
		rest := parts[1]
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return "", "", fmt.Errorf("identity: 远端地址缺少路径: %s", remote)
		}
		path = rest[idx+1:]
	case strings.Contains(remote, ":"):
		// git@host:org/repo.git
		parts := strings.SplitN(remote, ":", 2)
		path = parts[1]
	default:
		path = remote
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	segs := strings.Split(path, "/")
	if len(segs) < 2 || segs[len(segs)-1] == "" || segs[len(segs)-2] == "" {
		return "", "", fmt.Errorf("identity: 远端路径不含 org/repo 两段: %s", remote)
	}
	org = segs[len(segs)-2]
	name := segs[len(segs)-1]
	return org, org + "/" + name, nil
}

// EnsureCredential 校验跟踪服务凭据存在并返回其值。
// 缺失视作配置错误，调用方不应发起任何网络操作。
func EnsureCredential(ctx context.Context, store secrets.Store, key string) (string, error) {
	v, err := store.Get(ctx, key)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", pkgerrors.NewConfiguration("跟踪服务凭据 %s 未设置，请先配置后重试", key)
	}
	return v, nil
}
