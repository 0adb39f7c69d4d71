package service

import (
	"testing"
	"time"

	"github.com/habitloop/internal/db"
)

// 边界要求精确：13 → locked，14 → basic，21 → full
func TestUnlockStatusBoundaries(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, UnlockLocked},
		{13, UnlockLocked},
		{14, UnlockBasic},
		{20, UnlockBasic},
		{21, UnlockFull},
		{100, UnlockFull},
	}

	for _, tt := range tests {
		if got := UnlockStatusForDays(tt.days); got != tt.want {
			t.Fatalf("UnlockStatusForDays(%d) = %s, want %s", tt.days, got, tt.want)
		}
	}
}

func TestDataDaysCountsDistinctLogicalDates(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewInsightService(db.DB, time.UTC)
	habit := mustCreateHabit(t, 1, "晨跑", db.HabitKindNumeric)

	// 同一天两条记录只算一天
	mustCreateEntry(t, habit.ID, "2025-04-01", 1)
	mustCreateEntry(t, habit.ID, "2025-04-01", 2)
	mustCreateEntry(t, habit.ID, "2025-04-02", 1)

	days, err := svc.DataDays(habit.ID)
	if err != nil {
		t.Fatalf("DataDays returned error: %v", err)
	}
	if days != 2 {
		t.Fatalf("data days = %d, want 2", days)
	}

	status, err := svc.UnlockStatus(habit.ID)
	if err != nil {
		t.Fatalf("UnlockStatus returned error: %v", err)
	}
	if status != UnlockLocked {
		t.Fatalf("unlock status = %s, want locked", status)
	}
}

func TestResolveLatestCompleteSet(t *testing.T) {
	row := func(date, predictionType string) db.PredictionRow {
		return db.PredictionRow{HabitID: 1, PredictionType: predictionType, Date: date}
	}

	// 最新日期缺 optimal_time，完整一组在更早的日期
	rows := []db.PredictionRow{
		row("2025-05-02", "completion_forecast"),
		row("2025-05-02", "streak_forecast"),
		row("2025-05-01", "completion_forecast"),
		row("2025-05-01", "streak_forecast"),
		row("2025-05-01", "optimal_time"),
	}

	set := ResolveLatestCompleteSet(rows)
	if !set.HasAnyRows {
		t.Fatal("expected HasAnyRows")
	}
	if set.LatestDate != "2025-05-01" {
		t.Fatalf("latest date = %s, want 2025-05-01", set.LatestDate)
	}
	if len(set.Predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(set.Predictions))
	}
}

// “有行但凑不齐一组”与“完全没有行”必须可区分
func TestResolveLatestCompleteSetDistinguishesEmptyFromIncomplete(t *testing.T) {
	empty := ResolveLatestCompleteSet(nil)
	if empty.HasAnyRows || empty.Predictions != nil {
		t.Fatalf("unexpected result for no rows: %+v", empty)
	}

	incomplete := ResolveLatestCompleteSet([]db.PredictionRow{
		{HabitID: 1, PredictionType: "completion_forecast", Date: "2025-05-02"},
	})
	if !incomplete.HasAnyRows {
		t.Fatal("expected HasAnyRows for incomplete set")
	}
	if incomplete.Predictions != nil || incomplete.LatestDate != "" {
		t.Fatalf("unexpected result for incomplete set: %+v", incomplete)
	}
}
