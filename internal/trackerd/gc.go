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
	"context"
	"time"

	"agent-coord/pkg/log"
	"agent-coord/pkg/metrics"
	"agent-coord/pkg/tracing"
)

// Sweeper 后台清扫器：把心跳超时的活跃会话置为 abandoned。
// 服务是会话超时的唯一仲裁者，客户端不参与判定。
type Sweeper struct {
	store        Store
	abandonAfter time.Duration
	interval     time.Duration
	logger       *log.Logger

	started bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSweeper(store Store, abandonAfter, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		abandonAfter: abandonAfter,
		interval:     interval,
		logger:       logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start 启动后台清扫循环
func (s *Sweeper) Start() {
	s.started = true
	go s.loop()
}

func (s *Sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep 执行一次清扫，返回本次被放弃的会话数
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, span := tracing.StartSweepSpan(ctx)
	defer span.End()

	cutoff := time.Now().Add(-s.abandonAfter)
	expired, err := s.store.ExpireSessions(ctx, cutoff)
	if err != nil {
		s.logger.Error("清扫过期会话失败", "error", err)
		return 0
	}
	for _, sess := range expired {
		s.logger.Warn("会话因心跳超时被放弃",
			"session_id", sess.ID,
			"agent", sess.Agent,
			"last_heartbeat_at", sess.LastHeartbeatAt)
		metrics.SessionAbandoned.Inc()
		metrics.SessionsActive.Dec()
	}
	return len(expired)
}

// Stop 停止清扫并等待当前一轮结束
func (s *Sweeper) Stop() {
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
}
