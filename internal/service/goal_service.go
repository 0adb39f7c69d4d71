package service

import (
	"errors"
	"fmt"

	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMissingGoal 表示习惯没有配置目标。
	// 这不是故障：重算时完成率/连胜类指标会被直接跳过。
	ErrMissingGoal = errors.New("habit has no goal")
	// ErrGoalInvalid 当目标配置非法时返回
	ErrGoalInvalid = errors.New("invalid goal configuration")
)

// GoalService 负责习惯目标的读写。
// 每个习惯至多一条目标，写入走 habit_id 冲突键 upsert，新配置覆盖旧配置。
type GoalService struct {
	db *gorm.DB
}

// GoalInput 定义设置目标时的输入对象
type GoalInput struct {
	HabitID     uint
	PeriodType  string
	TargetValue float64
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// Set 以幂等方式写入目标：存在则覆盖周期与目标值，否则创建
func (s *GoalService) Set(input GoalInput) (*db.Goal, error) {
	if input.HabitID == 0 {
		return nil, fmt.Errorf("%w: habit id is required", ErrGoalInvalid)
	}
	if !period.PeriodType(input.PeriodType).Valid() {
		return nil, fmt.Errorf("%w: unsupported period type %s", ErrGoalInvalid, input.PeriodType)
	}
	if input.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: target must be positive", ErrGoalInvalid)
	}

	record := db.Goal{
		HabitID:     input.HabitID,
		PeriodType:  input.PeriodType,
		TargetValue: input.TargetValue,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"period_type", "target_value", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert goal: %w", err)
	}

	if err := s.db.Where("habit_id = ?", input.HabitID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload goal: %w", err)
	}

	return &record, nil
}

// Get 返回习惯的目标，未配置时返回 ErrMissingGoal
func (s *GoalService) Get(habitID uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("habit_id = ?", habitID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMissingGoal
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}
