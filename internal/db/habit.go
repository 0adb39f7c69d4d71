package db

import (
	"time"

	"gorm.io/gorm"
)

// 习惯类型：numeric 记数值（如公里数、页数），binary 记是否发生
const (
	HabitKindNumeric = "numeric"
	HabitKindBinary  = "binary"
)

// Habit 定义了习惯模型
// Kind 区分数值型与打勾型，决定部分聚合指标是否适用
// Status 使用 active/inactive 控制是否参与档案级统计
type Habit struct {
	gorm.Model
	ProfileID   uint `gorm:"index"`
	Name        string
	Description string
	Kind        string `gorm:"size:16;default:binary"`
	Status      string `gorm:"size:16;default:active"`
}

// Goal 是习惯的周期目标配置，每个习惯至多一条。
// HabitID 上的唯一索引即冲突键：新目标通过 upsert 覆盖旧目标。
type Goal struct {
	gorm.Model
	HabitID     uint   `gorm:"uniqueIndex"`
	PeriodType  string `gorm:"size:16"`
	TargetValue float64
}

// Entry 记录一次习惯打卡：数值 + 绝对时间戳。
// 逻辑日期不落库，统一由参考时区换算，保证各端对“属于哪一天”一致。
// binary 习惯以 value>0 表示完成。
type Entry struct {
	gorm.Model
	HabitID  uint  `gorm:"index"`
	Habit    Habit `gorm:"constraint:OnDelete:CASCADE"`
	Value    float64
	LoggedAt time.Time `gorm:"index"`
}

// TableName 指定自定义表名，避免自动复数化导致的歧义
func (Entry) TableName() string {
	return "entries"
}
