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

package session

// Failure 某个子系统的失败及原因
type Failure struct {
	Subsystem string
	Reason    string
}

// Report 一次生命周期操作里各子系统的成败清单。
// 失败路径也要把成功的部分讲清楚，不允许只抛一个裸错误。
type Report struct {
	Succeeded []string
	Failed    []Failure
}

func (r *Report) ok(subsystem string) {
	r.Succeeded = append(r.Succeeded, subsystem)
}

func (r *Report) fail(subsystem string, err error) {
	r.Failed = append(r.Failed, Failure{Subsystem: subsystem, Reason: err.Error()})
}

// Degraded 是否有子系统失败
func (r *Report) Degraded() bool {
	return len(r.Failed) > 0
}
