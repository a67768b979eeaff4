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

package trackerd

import (
	"os"

	"agent-coord/internal/tracker"
	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
)

// LoadServiceDocs 启动时读取配置声明的工作文档。
// 单个文件读不到只告警跳过，不拦着服务启动。
func LoadServiceDocs(items []config.ServiceDocItem, logger *log.Logger) []tracker.DocItem {
	var docs []tracker.DocItem
	for _, item := range items {
		content, err := os.ReadFile(item.Path)
		if err != nil {
			logger.Warn("读取工作文档失败，跳过", "doc_name", item.DocName, "path", item.Path, "error", err)
			continue
		}
		docs = append(docs, tracker.DocItem{
			DocName: item.DocName,
			Content: string(content),
			Scope:   item.Scope,
			Version: item.Version,
		})
	}
	return docs
}
