package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	GinMode           string
	ReferenceTimezone string
	DailyHorizon      int
	DefaultProfile    string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "habitloop.db"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	// 逻辑日期统一在参考时区下换算，与各客户端的本地时区无关
	referenceTimezone := strings.TrimSpace(os.Getenv("REFERENCE_TIMEZONE"))
	if referenceTimezone == "" {
		referenceTimezone = "UTC"
	}

	dailyHorizon := 0
	if raw := strings.TrimSpace(os.Getenv("RECALC_DAILY_HORIZON")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			dailyHorizon = parsed
		}
	}

	defaultProfile := strings.TrimSpace(os.Getenv("DEFAULT_PROFILE"))
	if defaultProfile == "" {
		defaultProfile = "default"
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      databasePath,
		GinMode:           ginMode,
		ReferenceTimezone: referenceTimezone,
		DailyHorizon:      dailyHorizon,
		DefaultProfile:    defaultProfile,
	}
}
