package service

import (
	"encoding/json"
	"testing"

	"github.com/habitloop/internal/db"
)

func findMetric(t *testing.T, metrics []db.Metric, metricType string) *db.Metric {
	t.Helper()
	for i := range metrics {
		if metrics[i].MetricType == metricType {
			return &metrics[i]
		}
	}
	return nil
}

func TestRecalcWritesHabitMetrics(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, goals := newTestRecalc()
	habit := mustCreateHabit(t, 1, "晨跑", db.HabitKindNumeric)

	if _, err := goals.Set(GoalInput{HabitID: habit.ID, PeriodType: "daily", TargetValue: 3}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}

	// 目标 3，1 日 2、2 日 3、3 日 1 → 当前连胜 1
	mustCreateEntry(t, habit.ID, "2025-01-01", 2)
	mustCreateEntry(t, habit.ID, "2025-01-02", 3)
	mustCreateEntry(t, habit.ID, "2025-01-03", 1)

	if err := recalc.Run(habit.ID, 1, "2025-01-03"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rows, err := metrics.ListForHabit(1, habit.ID)
	if err != nil {
		t.Fatalf("ListForHabit returned error: %v", err)
	}

	streak := findMetric(t, rows, db.MetricStreak)
	if streak == nil || streak.Value != 1 {
		t.Fatalf("streak metric = %+v, want value 1", streak)
	}
	if streak.Date != "2025-01-03" || streak.Granularity != db.GranularityDaily {
		t.Fatalf("unexpected streak anchor: %+v", streak)
	}

	best := findMetric(t, rows, db.MetricBestStreak)
	if best == nil || best.Value != 1 {
		t.Fatalf("best streak metric = %+v, want value 1", best)
	}

	total := findMetric(t, rows, db.MetricTotalEntries)
	if total == nil || total.Value != 3 {
		t.Fatalf("total entries metric = %+v, want value 3", total)
	}

	avg := findMetric(t, rows, db.MetricAverageValue)
	if avg == nil || avg.Value != 2 {
		t.Fatalf("average metric = %+v, want value 2", avg)
	}

	completion := findMetric(t, rows, db.MetricCompletionRate)
	if completion == nil {
		t.Fatal("expected completion rate metric")
	}
	var meta map[string]any
	if err := json.Unmarshal(completion.Metadata, &meta); err != nil {
		t.Fatalf("failed to parse metadata: %v", err)
	}
	if meta["total"].(float64) != 30 || meta["completed"].(float64) != 1 {
		t.Fatalf("unexpected completion metadata: %v", meta)
	}
}

// 跨天重算后，总数指标只保留最新日期的一行
func TestRecalcReplacesTotalEntriesAcrossDays(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, _ := newTestRecalc()
	habit := mustCreateHabit(t, 1, "晨跑", db.HabitKindNumeric)

	mustCreateEntry(t, habit.ID, "2025-03-01", 5)
	if err := recalc.Run(habit.ID, 1, "2025-03-01"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	mustCreateEntry(t, habit.ID, "2025-03-02", 5)
	if err := recalc.Run(habit.ID, 1, "2025-03-02"); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	rows, err := metrics.ListForHabit(1, habit.ID)
	if err != nil {
		t.Fatalf("ListForHabit returned error: %v", err)
	}

	var totals []db.Metric
	for _, row := range rows {
		if row.MetricType == db.MetricTotalEntries {
			totals = append(totals, row)
		}
	}
	if len(totals) != 1 {
		t.Fatalf("total_entries rows = %d, want 1: %+v", len(totals), totals)
	}
	if totals[0].Date != "2025-03-02" || totals[0].Value != 2 {
		t.Fatalf("total_entries = %+v, want date 2025-03-02 value 2", totals[0])
	}
}

func TestRecalcSkipsGoalMetricsWithoutGoal(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, _ := newTestRecalc()
	habit := mustCreateHabit(t, 1, "阅读", db.HabitKindNumeric)
	mustCreateEntry(t, habit.ID, "2025-01-02", 10)

	if err := recalc.Run(habit.ID, 1, "2025-01-03"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rows, _ := metrics.ListForHabit(1, habit.ID)
	if findMetric(t, rows, db.MetricStreak) != nil {
		t.Fatal("streak metric should be skipped without a goal")
	}
	if findMetric(t, rows, db.MetricTotalEntries) == nil {
		t.Fatal("total entries metric should still be written")
	}
}

func TestRecalcBinaryHabitHasNoAverage(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, goals := newTestRecalc()
	habit := mustCreateHabit(t, 1, "冥想", db.HabitKindBinary)

	if _, err := goals.Set(GoalInput{HabitID: habit.ID, PeriodType: "daily", TargetValue: 1}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}
	mustCreateEntry(t, habit.ID, "2025-02-01", 1)
	mustCreateEntry(t, habit.ID, "2025-02-03", 1)

	if err := recalc.Run(habit.ID, 1, "2025-02-03"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rows, _ := metrics.ListForHabit(1, habit.ID)
	// binary 习惯不产出均值指标——宁缺毋滥
	if findMetric(t, rows, db.MetricAverageValue) != nil {
		t.Fatal("binary habit must not have an average value metric")
	}

	streak := findMetric(t, rows, db.MetricStreak)
	best := findMetric(t, rows, db.MetricBestStreak)
	if streak == nil || streak.Value != 1 || best == nil || best.Value != 1 {
		t.Fatalf("(streak, best) = (%+v, %+v), want values (1, 1)", streak, best)
	}
}

func TestRecalcZeroStreakNotPersisted(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, goals := newTestRecalc()
	habit := mustCreateHabit(t, 1, "写作", db.HabitKindBinary)

	if _, err := goals.Set(GoalInput{HabitID: habit.ID, PeriodType: "weekly", TargetValue: 1}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}
	// 只有两周前的记录：本周未完成，weekly 无宽限 → 连胜 0，不落行
	mustCreateEntry(t, habit.ID, "2025-06-02", 1)

	if err := recalc.Run(habit.ID, 1, "2025-06-20"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rows, _ := metrics.ListForHabit(1, habit.ID)
	if findMetric(t, rows, db.MetricStreak) != nil {
		t.Fatal("zero streak must not be persisted")
	}
	if best := findMetric(t, rows, db.MetricBestStreak); best == nil || best.Value != 1 {
		t.Fatalf("best streak metric = %+v, want value 1", best)
	}
}

func TestRecalcDeletesAllRowsWhenEntriesGone(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, goals := newTestRecalc()
	habit := mustCreateHabit(t, 1, "背单词", db.HabitKindBinary)

	if _, err := goals.Set(GoalInput{HabitID: habit.ID, PeriodType: "daily", TargetValue: 1}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}
	entry := mustCreateEntry(t, habit.ID, "2025-03-01", 1)

	if err := recalc.Run(habit.ID, 1, "2025-03-01"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	rows, _ := metrics.ListForHabit(1, habit.ID)
	if len(rows) == 0 {
		t.Fatal("expected metric rows before deletion")
	}

	// 删光全部记录再重算：该习惯的指标行必须一行不剩
	if err := db.DB.Delete(&db.Entry{}, entry.ID).Error; err != nil {
		t.Fatalf("failed to delete entry: %v", err)
	}
	if err := recalc.Run(habit.ID, 1, "2025-03-01"); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	rows, _ = metrics.ListForHabit(1, habit.ID)
	if len(rows) != 0 {
		t.Fatalf("expected zero metric rows, got %+v", rows)
	}
}

func TestRecalcProfileMetrics(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, metrics, goals := newTestRecalc()

	runner := mustCreateHabit(t, 1, "晨跑", db.HabitKindNumeric)
	reader := mustCreateHabit(t, 1, "阅读", db.HabitKindBinary)

	if _, err := goals.Set(GoalInput{HabitID: runner.ID, PeriodType: "daily", TargetValue: 1}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}
	if _, err := goals.Set(GoalInput{HabitID: reader.ID, PeriodType: "daily", TargetValue: 1}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}

	// 晨跑三连，阅读单日：档案最佳连胜应归属晨跑
	mustCreateEntry(t, runner.ID, "2025-05-01", 2)
	mustCreateEntry(t, runner.ID, "2025-05-02", 2)
	mustCreateEntry(t, runner.ID, "2025-05-03", 2)
	mustCreateEntry(t, reader.ID, "2025-05-03", 1)

	if err := recalc.Run(runner.ID, 1, "2025-05-03"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rows, err := metrics.ListForProfile(1)
	if err != nil {
		t.Fatalf("ListForProfile returned error: %v", err)
	}

	active := findMetric(t, rows, db.MetricActiveDays)
	if active == nil || active.Value != 3 {
		t.Fatalf("active days metric = %+v, want value 3", active)
	}

	best := findMetric(t, rows, db.MetricBestStreak)
	if best == nil || best.Value != 3 {
		t.Fatalf("profile best streak = %+v, want value 3", best)
	}
	var meta map[string]any
	if err := json.Unmarshal(best.Metadata, &meta); err != nil {
		t.Fatalf("failed to parse metadata: %v", err)
	}
	if uint(meta["habit_id"].(float64)) != runner.ID {
		t.Fatalf("best streak should belong to habit %d, got %v", runner.ID, meta["habit_id"])
	}

	if completion := findMetric(t, rows, db.MetricCompletionRate); completion == nil {
		t.Fatal("expected profile completion rate metric")
	}
}

func TestSnapshotComputesLiveStats(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	recalc, _, goals := newTestRecalc()
	habit := mustCreateHabit(t, 1, "晨跑", db.HabitKindNumeric)

	if _, err := goals.Set(GoalInput{HabitID: habit.ID, PeriodType: "daily", TargetValue: 3}); err != nil {
		t.Fatalf("failed to set goal: %v", err)
	}
	mustCreateEntry(t, habit.ID, "2025-01-01", 2)
	mustCreateEntry(t, habit.ID, "2025-01-02", 3)
	mustCreateEntry(t, habit.ID, "2025-01-03", 1)

	snapshot, err := recalc.Snapshot(habit.ID, "2025-01-03")
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	if snapshot.CurrentStreak != 1 || snapshot.BestStreak != 1 {
		t.Fatalf("(current, best) = (%d, %d), want (1, 1)", snapshot.CurrentStreak, snapshot.BestStreak)
	}
	if snapshot.TotalEntries != 3 {
		t.Fatalf("total entries = %d, want 3", snapshot.TotalEntries)
	}
	if snapshot.AverageValue == nil || *snapshot.AverageValue != 2 {
		t.Fatalf("average value = %v, want 2", snapshot.AverageValue)
	}
	if snapshot.CurrentStreak > snapshot.BestStreak {
		t.Fatal("current streak exceeds best streak")
	}
}
