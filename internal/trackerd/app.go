package trackerd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"agent-coord/pkg/config"
	"agent-coord/pkg/log"
	"agent-coord/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App trackerd 应用（装配存储、清扫器、HTTP Router、Handler、Middleware）
type App struct {
	cfg          *config.Config
	logger       *log.Logger
	store        Store
	sweeper      *Sweeper
	router       *Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 trackerd 应用（由 cmd/trackerd 调用）
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	store, err := NewStore(ctx, cfg.Service.Store)
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储失败: %w", err)
	}

	docs := LoadServiceDocs(cfg.Service.Docs, logger)
	handler := NewHandler(store, cfg.Service, docs, logger)
	mw := NewMiddleware(cfg.Service, logger)
	router := NewRouter(handler, mw)

	sweeper := NewSweeper(store,
		utils.DurationOrDefault(cfg.Service.Sessions.AbandonAfter, 45*time.Minute),
		utils.DurationOrDefault(cfg.Service.Sessions.SweepInterval, time.Minute),
		logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		sweeper: sweeper,
		router:  router,
	}, nil
}

// Run 启动 HTTP 服务并开始后台清扫，阻塞直到服务退出
func (a *App) Run() error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Service.Host, a.cfg.Service.Port)
	a.logger.Info("trackerd 服务启动", "addr", addr, "store", a.cfg.Service.Store.Type)

	// 使用 Hertz slog 扩展，与进程日志配置对齐
	output := os.Stdout
	if a.cfg.Log.Output == "stderr" {
		output = os.Stderr
	}
	levelVar := &slog.LevelVar{}
	switch a.cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.cfg.Monitoring.Tracing.Enable {
		serviceName := a.cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "trackerd"
		}
		exportEndpoint := a.cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, tcfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
			a.logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	a.sweeper.Start()
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	return nil
}
