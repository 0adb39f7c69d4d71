package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricKey 是指标行的唯一键。
// HabitID 为 0 表示档案级指标。
type MetricKey struct {
	ProfileID   uint
	HabitID     uint
	Date        string
	MetricType  string
	Granularity string
}

// MetricService 是指标存储网关：对唯一键做幂等 upsert/删除。
// 并发调用同键 upsert 采用 last-write-wins——重算对相同源数据是确定性的，
// 后写覆盖先写不会引入错误值。
type MetricService struct {
	db *gorm.DB
}

// NewMetricService 构造 MetricService
func NewMetricService(gdb *gorm.DB) *MetricService {
	return &MetricService{db: gdb}
}

var metricKeyColumns = []clause.Column{
	{Name: "profile_id"},
	{Name: "habit_id"},
	{Name: "date"},
	{Name: "metric_type"},
	{Name: "granularity"},
}

// Upsert 写入或覆盖唯一键上的单行。
// 冲突键失效（如迁移中途）时退化为同键范围内的读改写，重试一次后放弃并告警。
func (s *MetricService) Upsert(metric *db.Metric) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   metricKeyColumns,
		DoUpdates: clause.AssignmentColumns([]string{"value", "metadata", "updated_at"}),
	}).Create(metric).Error
	if err == nil {
		return nil
	}

	if fallbackErr := s.readThenWrite(metric); fallbackErr != nil {
		log.Printf("metric upsert dropped after conflict retry: profile=%d habit=%d type=%s: %v",
			metric.ProfileID, metric.HabitID, metric.MetricType, fallbackErr)
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

// readThenWrite 是键范围内的读改写兜底，仅在冲突写失败后触发一次
func (s *MetricService) readThenWrite(metric *db.Metric) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing db.Metric
		err := tx.Where(
			"profile_id = ? AND habit_id = ? AND date = ? AND metric_type = ? AND granularity = ?",
			metric.ProfileID, metric.HabitID, metric.Date, metric.MetricType, metric.Granularity,
		).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(metric).Error
		case err != nil:
			return err
		}

		existing.Value = metric.Value
		existing.Metadata = metric.Metadata
		return tx.Save(&existing).Error
	})
}

// Get 按唯一键读取单行
func (s *MetricService) Get(key MetricKey) (*db.Metric, error) {
	var metric db.Metric
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ? AND date = ? AND metric_type = ? AND granularity = ?",
		key.ProfileID, key.HabitID, key.Date, key.MetricType, key.Granularity,
	).First(&metric).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get metric: %w", err)
	}
	return &metric, nil
}

// Latest 返回某类指标最新日期的一行，没有则返回 nil
func (s *MetricService) Latest(profileID, habitID uint, metricType string) (*db.Metric, error) {
	var metric db.Metric
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ? AND metric_type = ?",
		profileID, habitID, metricType,
	).Order("date DESC").First(&metric).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest metric: %w", err)
	}
	return &metric, nil
}

// Delete 按唯一键删除单行，行不存在时静默成功
func (s *MetricService) Delete(key MetricKey) error {
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ? AND date = ? AND metric_type = ? AND granularity = ?",
		key.ProfileID, key.HabitID, key.Date, key.MetricType, key.Granularity,
	).Delete(&db.Metric{}).Error; err != nil {
		return fmt.Errorf("delete metric: %w", err)
	}
	return nil
}

// DeleteByType 清掉某习惯某类指标的全部行。
// 重算写新值前先调它，防止锚点日期变化后旧日期的行残留。
func (s *MetricService) DeleteByType(profileID, habitID uint, metricType string) error {
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ? AND metric_type = ?",
		profileID, habitID, metricType,
	).Delete(&db.Metric{}).Error; err != nil {
		return fmt.Errorf("delete metric type: %w", err)
	}
	return nil
}

// DeleteAll 删除某习惯的全部指标行，习惯清空/删除后调用
func (s *MetricService) DeleteAll(profileID, habitID uint) error {
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ?", profileID, habitID,
	).Delete(&db.Metric{}).Error; err != nil {
		return fmt.Errorf("delete metrics: %w", err)
	}
	return nil
}

// ListForHabit 返回某习惯的全部指标行
func (s *MetricService) ListForHabit(profileID, habitID uint) ([]db.Metric, error) {
	var metrics []db.Metric
	if err := s.db.Where(
		"profile_id = ? AND habit_id = ?", profileID, habitID,
	).Order("metric_type ASC, date DESC").Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("list habit metrics: %w", err)
	}
	return metrics, nil
}

// ListForProfile 返回档案级指标行（habit_id = 0）
func (s *MetricService) ListForProfile(profileID uint) ([]db.Metric, error) {
	var metrics []db.Metric
	if err := s.db.Where(
		"profile_id = ? AND habit_id = 0", profileID,
	).Order("metric_type ASC, date DESC").Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("list profile metrics: %w", err)
	}
	return metrics, nil
}
