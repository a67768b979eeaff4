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

package app

import (
	"context"
	"fmt"
	"time"

	"agent-coord/internal/activity"
	"agent-coord/internal/docstore"
	"agent-coord/internal/gitx"
	"agent-coord/internal/identity"
	"agent-coord/internal/session"
	"agent-coord/internal/tracker"
	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
	"agent-coord/pkg/secrets"
	"agent-coord/pkg/utils"
)

// Bootstrap 统一初始化：供 coord 各子命令复用，避免在 cmd 内做装配
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Client   *tracker.Client
	Resolver *identity.Resolver
	Manager  *session.Manager
}

// NewBootstrap 根据配置创建 Bootstrap（凭证 → 客户端 → 解析器 → 采集器 → 管理器）。
// 凭证缺失在任何网络调用之前就报错。
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Key:      cfg.Secrets.Key,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Addr,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化凭证存储failed: %w", err)
	}
	credential, err := identity.EnsureCredential(ctx, secretStore, cfg.Secrets.Key)
	if err != nil {
		return nil, err
	}

	client := tracker.New(cfg.Tracker.BaseURL, credential,
		utils.DurationOrDefault(cfg.Tracker.Timeout, 30*time.Second))

	cacheStore, err := docstore.NewStore(cfg.Docs)
	if err != nil {
		return nil, fmt.Errorf("初始化文档缓存failed: %w", err)
	}
	cache := docstore.NewCache(cacheStore)

	git := gitx.New(".")
	resolver := identity.NewResolver(cfg.Identity, git, client, cache, logger)
	collector := activity.NewAggregator(cfg.Activity, cfg.Tasks, git, logger)
	manager := session.NewManager(client, resolver, collector, cache, git, logger)

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Resolver: resolver,
		Manager:  manager,
	}, nil
}
