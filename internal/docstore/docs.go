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

package docstore

import (
	"context"
)

// Doc 缓存的工作文档，字段与远端 sod 下发一致
type Doc struct {
	DocName string `json:"doc_name"`
	Content string `json:"content"`
	Scope   string `json:"scope"`
	Version string `json:"version"`
}

// 缓存键。文档按仓库隔离，注册表全局一份。
const (
	docsKeyPrefix = "docs/"
	venturesKey   = "ventures"
)

// Cache 在通用 Store 上提供文档与注册表的类型化存取
type Cache struct {
	store Store
}

// NewCache 创建类型化缓存
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// SaveDocs 缓存某仓库的文档集，无过期（降级时旧文档也可用）
func (c *Cache) SaveDocs(ctx context.Context, repo string, docs []Doc) error {
	return c.store.Set(ctx, docsKeyPrefix+repo, docs, 0)
}

// LoadDocs 读取某仓库的文档集
func (c *Cache) LoadDocs(ctx context.Context, repo string) ([]Doc, error) {
	var docs []Doc
	if err := c.store.Get(ctx, docsKeyPrefix+repo, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveVentures 缓存 org → venture 代号映射
func (c *Cache) SaveVentures(ctx context.Context, ventures map[string]string) error {
	return c.store.Set(ctx, venturesKey, ventures, 0)
}

// LoadVentures 读取 org → venture 代号映射
func (c *Cache) LoadVentures(ctx context.Context) (map[string]string, error) {
	var ventures map[string]string
	if err := c.store.Get(ctx, venturesKey, &ventures); err != nil {
		return nil, err
	}
	return ventures, nil
}

// Close 关闭底层存储
func (c *Cache) Close() error {
	return c.store.Close()
}
