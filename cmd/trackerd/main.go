package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-coord/internal/trackerd"
	"agent-coord/pkg/config"
	pkglog "agent-coord/pkg/log"
)

func main() {
	cfg, err := config.LoadTrackerdConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger, err := pkglog.NewLogger(&pkglog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	app, err := trackerd.NewApp(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("创建 trackerd 应用失败: %v", err)
	}

	go func() {
		if err := app.Run(); err != nil {
			log.Printf("trackerd 服务异常退出: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("关闭失败: %v", err)
	}
	log.Println("trackerd 服务已关闭")
}
