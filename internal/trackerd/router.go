package trackerd

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, middleware *Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
	}
}

// Build 构建 Hertz 服务并挂载路由，opts 可附加链路追踪等服务器选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	srv := server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)

	// 健康检查与指标不经过认证
	srv.GET("/health", r.handler.Health)
	srv.GET("/metrics", r.handler.Metrics)

	// 会话生命周期
	api := srv.Group("/", r.middleware.Auth(), r.middleware.RateLimit())
	{
		api.POST("/sod", r.handler.Sod)
		api.GET("/active", r.handler.Active)
		api.POST("/heartbeat", r.handler.Heartbeat)
		api.POST("/update", r.handler.Update)
		api.POST("/eod", r.handler.Eod)
		api.GET("/ventures", r.handler.Ventures)
	}

	return srv
}
