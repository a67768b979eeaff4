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
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
)

// Middleware 中间件管理器
type Middleware struct {
	auth      config.AuthConfig
	rateLimit config.RateLimitConfig
	logger    *log.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewMiddleware 创建中间件管理器
func NewMiddleware(svc config.ServiceConfig, logger *log.Logger) *Middleware {
	return &Middleware{
		auth:      svc.Auth,
		rateLimit: svc.RateLimit,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Auth 静态 Bearer 凭证校验
func (m *Middleware) Auth() app.HandlerFunc {
	expected := "Bearer " + m.auth.Token
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.auth.Enable || m.auth.Token == "" {
			c.Next(ctx)
			return
		}
		if string(c.GetHeader("Authorization")) != expected {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// RateLimit 按客户端地址限流
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.rateLimit.Enable {
			c.Next(ctx)
			return
		}
		if !m.limiterFor(c.ClientIP()).Allow() {
			m.logger.Warn("请求被限流", "client", c.ClientIP(), "path", string(c.Path()))
			c.JSON(consts.StatusTooManyRequests, utils.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) limiterFor(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, ok := m.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(m.rateLimit.QPS), m.rateLimit.Burst)
		m.limiters[key] = lim
	}
	return lim
}
