package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
	"gorm.io/gorm"
)

// ErrEntryNotFound 在指定打卡记录不存在时返回
var ErrEntryNotFound = errors.New("entry not found")

// EntryService 负责打卡日志的读写。
// 每次写操作成功后触发一次 fire-and-forget 重算，重算的成败
// 不影响写操作本身的返回。
type EntryService struct {
	db     *gorm.DB
	recalc *RecalcService
	loc    *time.Location
}

// EntryInput 定义打卡时的输入对象
type EntryInput struct {
	HabitID  uint
	Value    float64
	LoggedAt time.Time
}

// EntryFilter 指定查询区间（逻辑日期，均含）
type EntryFilter struct {
	HabitID uint
	Start   period.DateKey
	End     period.DateKey
}

// HeatmapEntry 表示热力图中的单日打卡数据
type HeatmapEntry struct {
	LogDate   string
	HabitID   uint
	HabitName string
	HabitKind string
}

// NewEntryService 构造 EntryService
func NewEntryService(gdb *gorm.DB, recalc *RecalcService, loc *time.Location) *EntryService {
	if loc == nil {
		loc = time.UTC
	}
	return &EntryService{db: gdb, recalc: recalc, loc: loc}
}

// Create 新增一条打卡记录并触发该习惯的异步重算
func (s *EntryService) Create(input EntryInput) (*db.Entry, error) {
	if input.HabitID == 0 {
		return nil, fmt.Errorf("habit id is required")
	}

	var habit db.Habit
	if err := s.db.First(&habit, input.HabitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	loggedAt := input.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = time.Now()
	}

	record := db.Entry{
		HabitID:  input.HabitID,
		Value:    input.Value,
		LoggedAt: loggedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	s.recalc.Trigger(habit.ID, habit.ProfileID, "")
	return &record, nil
}

// Update 修改一条打卡记录并触发重算
func (s *EntryService) Update(id uint, value float64, loggedAt *time.Time) (*db.Entry, error) {
	var record db.Entry
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}

	record.Value = value
	if loggedAt != nil && !loggedAt.IsZero() {
		record.LoggedAt = *loggedAt
	}
	if err := s.db.Save(&record).Error; err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	var habit db.Habit
	if err := s.db.First(&habit, record.HabitID).Error; err != nil {
		log.Printf("recalc skipped after entry update: habit=%d: %v", record.HabitID, err)
	} else {
		s.recalc.Trigger(habit.ID, habit.ProfileID, "")
	}
	return &record, nil
}

// Delete 删除一条打卡记录并触发重算。
// 习惯的最后一条记录被删除后，重算会清掉它的全部指标行。
func (s *EntryService) Delete(id uint) error {
	var record db.Entry
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("find entry: %w", err)
	}

	if err := s.db.Delete(&db.Entry{}, id).Error; err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	var habit db.Habit
	if err := s.db.First(&habit, record.HabitID).Error; err != nil {
		log.Printf("recalc skipped after entry delete: habit=%d: %v", record.HabitID, err)
	} else {
		s.recalc.Trigger(habit.ID, habit.ProfileID, "")
	}
	return nil
}

// ListBetween 返回逻辑日期区间内的打卡记录
func (s *EntryService) ListBetween(filter EntryFilter) ([]db.Entry, error) {
	if filter.HabitID == 0 {
		return nil, fmt.Errorf("habit id is required")
	}

	startAt, endAt, err := s.rangeBounds(filter.Start, filter.End)
	if err != nil {
		return nil, err
	}

	var entries []db.Entry
	if err := s.db.Where("habit_id = ?", filter.HabitID).
		Where("logged_at >= ? AND logged_at < ?", startAt, endAt).
		Order("logged_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return entries, nil
}

// ListAll 返回习惯的全量打卡记录
func (s *EntryService) ListAll(habitID uint) ([]db.Entry, error) {
	var entries []db.Entry
	if err := s.db.Where("habit_id = ?", habitID).
		Order("logged_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return entries, nil
}

// HeatmapRange 返回档案下所有活跃习惯在区间内的打卡数据
func (s *EntryService) HeatmapRange(profileID uint, start, end period.DateKey) ([]HeatmapEntry, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	startAt, endAt, err := s.rangeBounds(start, end)
	if err != nil {
		return nil, err
	}

	var entries []db.Entry
	if err := s.db.
		Joins("JOIN habits ON habits.id = entries.habit_id").
		Where("habits.profile_id = ? AND habits.status = ?", profileID, "active").
		Where("entries.logged_at >= ? AND entries.logged_at < ?", startAt, endAt).
		Preload("Habit").
		Order("entries.logged_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list heatmap entries: %w", err)
	}

	rows := make([]HeatmapEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, HeatmapEntry{
			LogDate:   string(period.ToLogicalDate(e.LoggedAt, s.loc)),
			HabitID:   e.HabitID,
			HabitName: e.Habit.Name,
			HabitKind: e.Habit.Kind,
		})
	}
	return rows, nil
}

// rangeBounds 把逻辑日期区间换算成参考时区下的绝对时间半开区间
func (s *EntryService) rangeBounds(start, end period.DateKey) (time.Time, time.Time, error) {
	startDay, err := start.Time()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDay, err := end.Time()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	startAt := time.Date(startDay.Year(), startDay.Month(), startDay.Day(), 0, 0, 0, 0, s.loc)
	endAt := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	return startAt, endAt, nil
}
