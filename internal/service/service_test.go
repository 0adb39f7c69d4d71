package service

import (
	"testing"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.Profile{}, &db.Habit{}, &db.Goal{}, &db.Entry{}, &db.Metric{}, &db.PredictionRow{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// newTestRecalc 组装一套指向测试库的重算服务
func newTestRecalc() (*RecalcService, *MetricService, *GoalService) {
	metrics := NewMetricService(db.DB)
	goals := NewGoalService(db.DB)
	recalc := NewRecalcService(db.DB, metrics, goals, time.UTC, 0)
	return recalc, metrics, goals
}

// mustCreateHabit 直接落库一条习惯
func mustCreateHabit(t *testing.T, profileID uint, name, kind string) db.Habit {
	t.Helper()
	habit := db.Habit{ProfileID: profileID, Name: name, Kind: kind, Status: "active"}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return habit
}

// mustCreateEntry 直接落库一条打卡记录
func mustCreateEntry(t *testing.T, habitID uint, date string, value float64) db.Entry {
	t.Helper()
	loggedAt, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("bad date %q: %v", date, err)
	}
	entry := db.Entry{HabitID: habitID, Value: value, LoggedAt: loggedAt.Add(9 * time.Hour)}
	if err := db.DB.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create entry: %v", err)
	}
	return entry
}
