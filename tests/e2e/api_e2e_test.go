package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/router"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type e2eSuite struct {
	handler http.Handler
}

func newSuite(t *testing.T) *e2eSuite {
	t.Helper()
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
	db.DB = gdb

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return &e2eSuite{handler: router.SetupRouter(gdb, time.UTC, 0)}
}

func (s *e2eSuite) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

// waitFor 轮询等待异步重算落盘
func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHabitMetricsEndToEnd(t *testing.T) {
	suite := newSuite(t)

	// 创建习惯
	rec, habitResp := suite.do(t, http.MethodPost, "/api/habits", map[string]any{
		"profile_id": 1,
		"name":       "晨跑",
		"kind":       "binary",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create habit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	habitID := uint(habitResp["ID"].(float64))

	// 配置每日目标
	rec, _ = suite.do(t, http.MethodPut, fmt.Sprintf("/api/habits/%d/goal", habitID), map[string]any{
		"period_type":  "daily",
		"target_value": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set goal status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// 昨天 + 今天各打卡一次 → 当前连胜 2
	today := period.ToLogicalDate(time.Now(), time.UTC)
	yesterday, err := period.AddDays(today, -1)
	if err != nil {
		t.Fatalf("AddDays returned error: %v", err)
	}

	for _, date := range []period.DateKey{yesterday, today} {
		rec, _ = suite.do(t, http.MethodPost, fmt.Sprintf("/api/habits/%d/entries", habitID), map[string]any{
			"value":     1,
			"logged_at": string(date),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create entry status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	// 即时快照不依赖异步重算
	rec, statsResp := suite.do(t, http.MethodGet, fmt.Sprintf("/api/habits/%d/stats", habitID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body = %s", rec.Code, rec.Body.String())
	}
	snapshot := statsResp["stats"].(map[string]any)
	if snapshot["current_streak"].(float64) != 2 {
		t.Fatalf("current streak = %v, want 2", snapshot["current_streak"])
	}
	if snapshot["best_streak"].(float64) != 2 {
		t.Fatalf("best streak = %v, want 2", snapshot["best_streak"])
	}

	// 异步重算最终把指标缓存行写进存储
	listMetrics := func() []any {
		_, metricsResp := suite.do(t, http.MethodGet, fmt.Sprintf("/api/habits/%d/metrics", habitID), nil)
		rows, _ := metricsResp["metrics"].([]any)
		return rows
	}
	waitFor(t, func() bool {
		for _, raw := range listMetrics() {
			row := raw.(map[string]any)
			if row["MetricType"] == "streak" && row["Value"].(float64) == 2 {
				return true
			}
		}
		return false
	})

	// 数据量不足，洞察保持锁定
	rec, unlockResp := suite.do(t, http.MethodGet, fmt.Sprintf("/api/habits/%d/insights/unlock", habitID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock status = %d", rec.Code)
	}
	if unlockResp["status"] != "locked" || unlockResp["data_days"].(float64) != 2 {
		t.Fatalf("unexpected unlock response: %v", unlockResp)
	}

	// 删光全部打卡记录后，该习惯的指标行必须清空
	_, entriesResp := suite.do(t, http.MethodGet,
		fmt.Sprintf("/api/habits/%d/entries?start=%s&end=%s", habitID, yesterday, today), nil)
	for _, raw := range entriesResp["entries"].([]any) {
		entry := raw.(map[string]any)
		entryID := uint(entry["ID"].(float64))
		rec, _ = suite.do(t, http.MethodDelete, fmt.Sprintf("/api/entries/%d", entryID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete entry status = %d", rec.Code)
		}
	}
	waitFor(t, func() bool {
		return len(listMetrics()) == 0
	})
}

func TestManualRecalcReturnsAccepted(t *testing.T) {
	suite := newSuite(t)

	rec, habitResp := suite.do(t, http.MethodPost, "/api/habits", map[string]any{
		"profile_id": 1,
		"name":       "阅读",
		"kind":       "numeric",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create habit status = %d", rec.Code)
	}
	habitID := uint(habitResp["ID"].(float64))

	rec, _ = suite.do(t, http.MethodPost, fmt.Sprintf("/api/habits/%d/recalc", habitID), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("recalc status = %d, want 202", rec.Code)
	}
}

func TestPingEndpoint(t *testing.T) {
	suite := newSuite(t)

	rec, body := suite.do(t, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusOK || body["message"] != "pong" {
		t.Fatalf("unexpected ping response: %d %v", rec.Code, body)
	}
}
