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

// Package docstore 缓存远端下发的工作文档与 venture 注册表，
// 供降级启动时离线使用。
package docstore

import (
	"fmt"

	"agent-coord/pkg/config"
)

// NewStore 根据配置创建缓存后端
func NewStore(cfg config.DocsConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(cfg.Addr, cfg.DB, cfg.Password)
	default:
		return nil, fmt.Errorf("docstore: 不支持的缓存类型: %s", cfg.Type)
	}
}
