package router

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSetupRouterRegistersCoreRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(
		&db.Profile{}, &db.Habit{}, &db.Goal{}, &db.Entry{}, &db.Metric{}, &db.PredictionRow{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	defer func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}()

	r := SetupRouter(gdb, time.UTC, 0)

	want := []string{
		"GET /api/habits",
		"POST /api/habits/:id/entries",
		"POST /api/habits/:id/recalc",
		"GET /api/habits/:id/stats",
		"GET /api/profiles/:id/heatmap",
		"GET /api/habits/:id/insights/unlock",
	}

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, key := range want {
		if !registered[key] {
			t.Fatalf("route %s not registered", key)
		}
	}
}
