package db

import (
	"time"

	"gorm.io/datatypes"
)

// 指标类型
const (
	MetricStreak         = "streak"
	MetricBestStreak     = "best_streak"
	MetricCompletionRate = "completion_rate"
	MetricActiveDays     = "active_days"
	MetricAverageValue   = "average_value"
	MetricTotalEntries   = "total_entries"
)

// 指标粒度：daily/weekly/monthly 对应目标周期，all_time 表示全量口径
const (
	GranularityDaily   = "daily"
	GranularityWeekly  = "weekly"
	GranularityMonthly = "monthly"
	GranularityAllTime = "all_time"
)

// Metric 是一条派生指标缓存行。
// HabitID 为 0 表示档案级指标（sqlite 下唯一索引对 NULL 不去重，
// 故用 0 代替 NULL 保证键的唯一性约束始终生效）。
// Date 存周期锚点日期（YYYY-MM-DD 字符串，字典序即日期序）。
// 键约束：(profile_id, habit_id, date, metric_type, granularity) 至多一行。
type Metric struct {
	ID          uint   `gorm:"primaryKey"`
	ProfileID   uint   `gorm:"uniqueIndex:idx_metric_key"`
	HabitID     uint   `gorm:"uniqueIndex:idx_metric_key"`
	Date        string `gorm:"size:10;uniqueIndex:idx_metric_key"`
	MetricType  string `gorm:"size:32;uniqueIndex:idx_metric_key"`
	Granularity string `gorm:"size:16;uniqueIndex:idx_metric_key"`
	Value       float64
	Metadata    datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定自定义表名
func (Metric) TableName() string {
	return "metrics"
}

// PredictionRow 是洞察侧产出的预测行，引擎只读不写，
// 仅用于判定解锁状态与挑选最近一组完整预测。
type PredictionRow struct {
	ID             uint   `gorm:"primaryKey"`
	HabitID        uint   `gorm:"index"`
	PredictionType string `gorm:"size:32;index"`
	Date           string `gorm:"size:10;index"`
	Value          float64
	Metadata       datatypes.JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定自定义表名
func (PredictionRow) TableName() string {
	return "prediction_rows"
}
