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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore 文件缓存实现，CLI 默认后端：降级启动时跨进程读取上次缓存
type FileStore struct {
	dir string
}

// fileEnvelope 落盘格式，带过期时间
type fileEnvelope struct {
	ExpiresAt int64           `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

// NewFileStore 创建文件缓存，dir 不存在时创建
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("docstore: create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

var keySanitizer = strings.NewReplacer("/", "__", ":", "_", " ", "_")

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, keySanitizer.Replace(key)+".json")
}

// Set 设置缓存
func (s *FileStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("docstore: marshal cache value: %w", err)
	}

	var exp int64
	if expiration > 0 {
		exp = time.Now().Add(expiration).Unix()
	}

	env, err := json.Marshal(fileEnvelope{ExpiresAt: exp, Value: data})
	if err != nil {
		return fmt.Errorf("docstore: marshal envelope: %w", err)
	}
	if err := os.WriteFile(s.path(key), env, 0644); err != nil {
		return fmt.Errorf("docstore: write cache file: %w", err)
	}
	return nil
}

// Get 获取缓存
func (s *FileStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("docstore: cache item with key %s not found", key)
		}
		return fmt.Errorf("docstore: read cache file: %w", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("docstore: parse cache file: %w", err)
	}
	if env.ExpiresAt > 0 && env.ExpiresAt < time.Now().Unix() {
		return fmt.Errorf("docstore: cache item with key %s has expired", key)
	}

	if err := json.Unmarshal(env.Value, dest); err != nil {
		return fmt.Errorf("docstore: unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("docstore: delete cache file: %w", err)
	}
	return nil
}

// Exists 检查缓存是否存在
func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("docstore: read cache file: %w", err)
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, nil
	}
	if env.ExpiresAt > 0 && env.ExpiresAt < time.Now().Unix() {
		return false, nil
	}
	return true, nil
}

// Clear 清除所有缓存
func (s *FileStore) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("docstore: list cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("docstore: remove cache file: %w", err)
		}
	}
	return nil
}

// Close 关闭缓存连接
func (s *FileStore) Close() error {
	return nil
}
