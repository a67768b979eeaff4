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

// Package taskstore 读写本地任务清单（.coord/tasks/active.yaml）。
// 清单由操作者或其它工具维护，协调 CLI 只读取并按状态归类。
package taskstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	pkgerrors "agent-coord/pkg/errors"
)

// 任务状态
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Task 本地任务清单中的一项
type Task struct {
	ID      string    `yaml:"id" json:"id"`
	Subject string    `yaml:"subject" json:"subject"`
	Status  string    `yaml:"status" json:"status"`
	Created time.Time `yaml:"created" json:"created"`
	Updated time.Time `yaml:"updated" json:"updated"`
	Notes   string    `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Manifest 任务清单文件
type Manifest struct {
	Version int    `yaml:"version" json:"version"`
	Tasks   []Task `yaml:"tasks" json:"tasks"`
}

// NewTask 创建带 id 与时间戳的新任务，初始状态 todo
func NewTask(subject string) Task {
	now := time.Now().UTC()
	return Task{
		ID:      "task-" + uuid.New().String(),
		Subject: subject,
		Status:  StatusTodo,
		Created: now,
		Updated: now,
	}
}

// Load 读取清单；文件不存在时返回 errors.ErrNotFound
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("taskstore: manifest %s: %w", path, pkgerrors.ErrNotFound)
		}
		return nil, pkgerrors.Wrapf(err, "taskstore: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "taskstore: parse manifest %s", path)
	}
	return &m, nil
}

// LoadOrEmpty 读取清单，文件不存在时返回空清单
func LoadOrEmpty(path string) (*Manifest, error) {
	m, err := Load(path)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return &Manifest{Version: 1}, nil
		}
		return nil, err
	}
	return m, nil
}

// Save 写回清单，必要时创建目录
func Save(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pkgerrors.Wrapf(err, "taskstore: create dir for %s", path)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return pkgerrors.Wrap(err, "taskstore: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return pkgerrors.Wrapf(err, "taskstore: write manifest %s", path)
	}
	return nil
}

// ByStatus 返回指定状态的任务
func (m *Manifest) ByStatus(status string) []Task {
	var out []Task
	for _, t := range m.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Completed 返回已完成任务
func (m *Manifest) Completed() []Task {
	return m.ByStatus(StatusCompleted)
}

// InProgress 返回进行中任务
func (m *Manifest) InProgress() []Task {
	return m.ByStatus(StatusInProgress)
}

// Stats 按状态统计任务数
func (m *Manifest) Stats() map[string]int {
	stats := make(map[string]int)
	for _, t := range m.Tasks {
		stats[t.Status]++
	}
	return stats
}
