package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 保证默认档案存在，便于单人部署开箱即用
	if _, err := db.EnsureProfile(cfg.DefaultProfile); err != nil {
		log.Fatalf("failed to ensure default profile: %v", err)
	}

	loc, err := time.LoadLocation(cfg.ReferenceTimezone)
	if err != nil {
		log.Fatalf("invalid reference timezone %q: %v", cfg.ReferenceTimezone, err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(db.DB, loc, cfg.DailyHorizon)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
