package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/stats"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 窗口口径：档案完成率看最近 7 个周期，习惯详情看最近 30 个周期，
// 活跃天数与均值均取最近 30 天
const (
	profileCompletionWindow = 7
	habitCompletionWindow   = 30
	rollingWindowDays       = 30
)

// RecalcService 是重算触发器：每次打卡增删改之后，对所属习惯与档案
// 端到端重算全部派生指标。
//
// 重算总是从全量持久化数据出发重新计算，而非增量修补旧值，
// 因此同一习惯的并发重算乱序完成也会收敛到相同结果，无需加锁。
// 失败只记日志不重试，绝不影响触发它的那次写操作。
type RecalcService struct {
	db           *gorm.DB
	metrics      *MetricService
	goals        *GoalService
	loc          *time.Location
	dailyHorizon int
}

// NewRecalcService 构造 RecalcService
func NewRecalcService(gdb *gorm.DB, metrics *MetricService, goals *GoalService, loc *time.Location, dailyHorizon int) *RecalcService {
	if loc == nil {
		loc = time.UTC
	}
	if dailyHorizon <= 0 {
		dailyHorizon = stats.DefaultDailyHorizon
	}
	return &RecalcService{
		db:           gdb,
		metrics:      metrics,
		goals:        goals,
		loc:          loc,
		dailyHorizon: dailyHorizon,
	}
}

// Trigger 发起一次 fire-and-forget 重算，立即返回。
// logicalDate 为空时默认参考时区下的今天。
func (s *RecalcService) Trigger(habitID, profileID uint, logicalDate period.DateKey) {
	job := uuid.NewString()
	log.Printf("recalc %s received: habit=%d profile=%d", job, habitID, profileID)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recalc %s failed: habit=%d profile=%d panic=%v", job, habitID, profileID, r)
			}
		}()

		if err := s.Run(habitID, profileID, logicalDate); err != nil {
			log.Printf("recalc %s failed: habit=%d profile=%d: %v", job, habitID, profileID, err)
			return
		}
		log.Printf("recalc %s done: habit=%d profile=%d", job, habitID, profileID)
	}()
}

// Run 同步执行一次重算：Fetching → Computing → Writing。
// 测试与手动触发接口直接调用它以获得确定性。
func (s *RecalcService) Run(habitID, profileID uint, logicalDate period.DateKey) error {
	today, err := s.resolveToday(logicalDate)
	if err != nil {
		return err
	}

	// Fetching
	var habit db.Habit
	habitErr := s.db.First(&habit, habitID).Error
	if habitErr != nil && !errors.Is(habitErr, gorm.ErrRecordNotFound) {
		return fmt.Errorf("fetch habit: %w", habitErr)
	}

	entries, err := s.fetchEntries(habitID)
	if err != nil {
		return err
	}

	// 习惯已删除或已无任何记录：指标行全部清掉，只刷新档案级口径
	if errors.Is(habitErr, gorm.ErrRecordNotFound) || len(entries) == 0 {
		if err := s.metrics.DeleteAll(profileID, habitID); err != nil {
			return err
		}
		return s.recalcProfile(profileID, today)
	}

	logical := s.toStatsEntries(entries)

	// Computing + Writing，逐指标落盘。
	// 总数指标的日期随重算日前移，先清旧行再写，避免跨天残留
	if err := s.metrics.DeleteByType(profileID, habitID, db.MetricTotalEntries); err != nil {
		return err
	}
	if err := s.writeMetric(&db.Metric{
		ProfileID:   profileID,
		HabitID:     habitID,
		Date:        string(today),
		MetricType:  db.MetricTotalEntries,
		Granularity: db.GranularityAllTime,
		Value:       float64(len(entries)),
	}); err != nil {
		return err
	}

	if err := s.recalcGoalMetrics(habit, profileID, logical, today); err != nil {
		return err
	}

	if err := s.recalcAverage(habit, profileID, logical, today); err != nil {
		return err
	}

	return s.recalcProfile(profileID, today)
}

// recalcGoalMetrics 计算依赖目标配置的指标：连胜、最佳连胜、完成率。
// 习惯没有目标时整体跳过，既不算错误也不清旧行。
func (s *RecalcService) recalcGoalMetrics(habit db.Habit, profileID uint, logical []stats.Entry, today period.DateKey) error {
	goalRow, err := s.goals.Get(habit.ID)
	if errors.Is(err, ErrMissingGoal) {
		return nil
	}
	if err != nil {
		return err
	}

	goal := stats.Goal{
		PeriodType: period.PeriodType(goalRow.PeriodType),
		Target:     goalRow.TargetValue,
	}
	anchor, err := period.Anchor(goal.PeriodType, today)
	if err != nil {
		return err
	}

	current, err := stats.Current(logical, goal, today, s.dailyHorizon)
	if err != nil {
		return err
	}
	// 连胜为 0 不落行：行缺失即表示 0
	if err := s.metrics.DeleteByType(profileID, habit.ID, db.MetricStreak); err != nil {
		return err
	}
	if current > 0 {
		if err := s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			HabitID:     habit.ID,
			Date:        string(anchor),
			MetricType:  db.MetricStreak,
			Granularity: goalRow.PeriodType,
			Value:       float64(current),
		}); err != nil {
			return err
		}
	}

	best, err := stats.Best(logical, goal)
	if err != nil {
		return err
	}
	if err := s.metrics.DeleteByType(profileID, habit.ID, db.MetricBestStreak); err != nil {
		return err
	}
	if best > 0 {
		if err := s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			HabitID:     habit.ID,
			Date:        string(anchor),
			MetricType:  db.MetricBestStreak,
			Granularity: goalRow.PeriodType,
			Value:       float64(best),
			Metadata:    metaJSON(map[string]any{"habit_id": habit.ID}),
		}); err != nil {
			return err
		}
	}

	done, total, err := stats.WindowCompletion(logical, goal, today, habitCompletionWindow)
	if err != nil {
		return err
	}
	if err := s.metrics.DeleteByType(profileID, habit.ID, db.MetricCompletionRate); err != nil {
		return err
	}
	if total > 0 {
		return s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			HabitID:     habit.ID,
			Date:        string(anchor),
			MetricType:  db.MetricCompletionRate,
			Granularity: goalRow.PeriodType,
			Value:       float64(done) / float64(total),
			Metadata:    metaJSON(map[string]any{"completed": done, "total": total, "window": habitCompletionWindow}),
		})
	}
	return nil
}

// recalcAverage 计算 30 天均值，仅 numeric 习惯适用。
// binary 习惯不产出该指标——宁缺毋滥，不给出误导性的数字。
func (s *RecalcService) recalcAverage(habit db.Habit, profileID uint, logical []stats.Entry, today period.DateKey) error {
	if err := s.metrics.DeleteByType(profileID, habit.ID, db.MetricAverageValue); err != nil {
		return err
	}
	if habit.Kind != db.HabitKindNumeric {
		return nil
	}

	avg, ok, err := stats.AverageValue(logical, today, rollingWindowDays)
	if err != nil || !ok {
		return err
	}

	return s.writeMetric(&db.Metric{
		ProfileID:   profileID,
		HabitID:     habit.ID,
		Date:        string(today),
		MetricType:  db.MetricAverageValue,
		Granularity: db.GranularityDaily,
		Value:       avg,
		Metadata:    metaJSON(map[string]any{"window": rollingWindowDays}),
	})
}

// recalcProfile 刷新档案级指标：活跃天数、档案最佳连胜、7 周期完成率
func (s *RecalcService) recalcProfile(profileID uint, today period.DateKey) error {
	var habits []db.Habit
	if err := s.db.Where("profile_id = ? AND status = ?", profileID, "active").
		Find(&habits).Error; err != nil {
		return fmt.Errorf("fetch profile habits: %w", err)
	}

	var allLogical []stats.Entry
	var bestOverall int
	var bestHabitID uint
	var doneSum, totalSum int

	for _, habit := range habits {
		entries, err := s.fetchEntries(habit.ID)
		if err != nil {
			return err
		}
		logical := s.toStatsEntries(entries)
		allLogical = append(allLogical, logical...)

		goalRow, err := s.goals.Get(habit.ID)
		if errors.Is(err, ErrMissingGoal) {
			continue
		}
		if err != nil {
			return err
		}

		goal := stats.Goal{
			PeriodType: period.PeriodType(goalRow.PeriodType),
			Target:     goalRow.TargetValue,
		}

		best, err := stats.Best(logical, goal)
		if err != nil {
			return err
		}
		// 平局保留先到者：仅严格更大才改写归属
		if best > bestOverall {
			bestOverall = best
			bestHabitID = habit.ID
		}

		done, total, err := stats.WindowCompletion(logical, goal, today, profileCompletionWindow)
		if err != nil {
			return err
		}
		doneSum += done
		totalSum += total
	}

	activeDays, err := stats.ActiveDays(allLogical, today, rollingWindowDays)
	if err != nil {
		return err
	}
	if err := s.metrics.DeleteByType(profileID, 0, db.MetricActiveDays); err != nil {
		return err
	}
	if activeDays > 0 {
		if err := s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			Date:        string(today),
			MetricType:  db.MetricActiveDays,
			Granularity: db.GranularityDaily,
			Value:       float64(activeDays),
			Metadata:    metaJSON(map[string]any{"window": rollingWindowDays}),
		}); err != nil {
			return err
		}
	}

	if err := s.metrics.DeleteByType(profileID, 0, db.MetricBestStreak); err != nil {
		return err
	}
	if bestOverall > 0 {
		if err := s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			Date:        string(today),
			MetricType:  db.MetricBestStreak,
			Granularity: db.GranularityAllTime,
			Value:       float64(bestOverall),
			Metadata:    metaJSON(map[string]any{"habit_id": bestHabitID}),
		}); err != nil {
			return err
		}
	}

	if err := s.metrics.DeleteByType(profileID, 0, db.MetricCompletionRate); err != nil {
		return err
	}
	if totalSum > 0 {
		return s.writeMetric(&db.Metric{
			ProfileID:   profileID,
			Date:        string(today),
			MetricType:  db.MetricCompletionRate,
			Granularity: db.GranularityDaily,
			Value:       float64(doneSum) / float64(totalSum),
			Metadata:    metaJSON(map[string]any{"completed": doneSum, "total": totalSum, "window": profileCompletionWindow}),
		})
	}
	return nil
}

// HabitSnapshot 是习惯统计的即时视图，直接用纯函数从打卡记录现算。
// 与指标缓存行口径一致，供统计接口在缓存缺失/过期时兜底。
type HabitSnapshot struct {
	HabitID         uint     `json:"habit_id"`
	Kind            string   `json:"kind"`
	HasGoal         bool     `json:"has_goal"`
	PeriodType      string   `json:"period_type,omitempty"`
	CurrentStreak   int      `json:"current_streak"`
	BestStreak      int      `json:"best_streak"`
	WindowCompleted int      `json:"window_completed"`
	WindowTotal     int      `json:"window_total"`
	CompletionRate  float64  `json:"completion_rate"`
	AverageValue    *float64 `json:"average_value,omitempty"`
	TotalEntries    int      `json:"total_entries"`
}

// Snapshot 即时计算习惯统计，不读也不写指标缓存
func (s *RecalcService) Snapshot(habitID uint, logicalDate period.DateKey) (*HabitSnapshot, error) {
	today, err := s.resolveToday(logicalDate)
	if err != nil {
		return nil, err
	}

	var habit db.Habit
	if err := s.db.First(&habit, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("fetch habit: %w", err)
	}

	entries, err := s.fetchEntries(habitID)
	if err != nil {
		return nil, err
	}
	logical := s.toStatsEntries(entries)

	snapshot := &HabitSnapshot{
		HabitID:      habitID,
		Kind:         habit.Kind,
		TotalEntries: len(entries),
	}

	if habit.Kind == db.HabitKindNumeric {
		if avg, ok, err := stats.AverageValue(logical, today, rollingWindowDays); err != nil {
			return nil, err
		} else if ok {
			snapshot.AverageValue = &avg
		}
	}

	goalRow, err := s.goals.Get(habitID)
	if errors.Is(err, ErrMissingGoal) {
		return snapshot, nil
	}
	if err != nil {
		return nil, err
	}

	goal := stats.Goal{
		PeriodType: period.PeriodType(goalRow.PeriodType),
		Target:     goalRow.TargetValue,
	}
	snapshot.HasGoal = true
	snapshot.PeriodType = goalRow.PeriodType

	if snapshot.CurrentStreak, err = stats.Current(logical, goal, today, s.dailyHorizon); err != nil {
		return nil, err
	}
	if snapshot.BestStreak, err = stats.Best(logical, goal); err != nil {
		return nil, err
	}
	if snapshot.WindowCompleted, snapshot.WindowTotal, err = stats.WindowCompletion(logical, goal, today, habitCompletionWindow); err != nil {
		return nil, err
	}
	if snapshot.WindowTotal > 0 {
		snapshot.CompletionRate = float64(snapshot.WindowCompleted) / float64(snapshot.WindowTotal)
	}

	return snapshot, nil
}

func (s *RecalcService) resolveToday(logicalDate period.DateKey) (period.DateKey, error) {
	if logicalDate == "" {
		return period.ToLogicalDate(time.Now(), s.loc), nil
	}
	return period.ParseDateKey(string(logicalDate))
}

func (s *RecalcService) fetchEntries(habitID uint) ([]db.Entry, error) {
	var entries []db.Entry
	if err := s.db.Where("habit_id = ?", habitID).
		Order("logged_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	return entries, nil
}

func (s *RecalcService) toStatsEntries(entries []db.Entry) []stats.Entry {
	logical := make([]stats.Entry, 0, len(entries))
	for _, e := range entries {
		logical = append(logical, stats.Entry{
			Date:  period.ToLogicalDate(e.LoggedAt, s.loc),
			Value: e.Value,
		})
	}
	return logical
}

func (s *RecalcService) writeMetric(metric *db.Metric) error {
	return s.metrics.Upsert(metric)
}

func metaJSON(fields map[string]any) datatypes.JSON {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
