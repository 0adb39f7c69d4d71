package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidKind 当习惯类型非法时返回
	ErrHabitInvalidKind = errors.New("invalid habit kind")
)

// HabitService 负责 Habit 数据的增删改查
// 主要服务于 API 层，保持与 handler 解耦
// Kind 支持 numeric/binary，Status 仅使用 active/inactive，默认 active

type HabitService struct {
	db *gorm.DB
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	ProfileID uint
	Status    string
	Kind      string
	Search    string
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	ProfileID   uint
	Name        string
	Description string
	Kind        string
	Status      string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回习惯集合，支持基本筛选
func (s *HabitService) List(filter HabitFilter) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.Model(&db.Habit{})

	if filter.ProfileID != 0 {
		query = query.Where("profile_id = ?", filter.ProfileID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	habit := db.Habit{
		ProfileID:   input.ProfileID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Kind:        normalizeKind(input.Kind),
		Status:      normalizeStatus(input.Status),
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯
func (s *HabitService) Update(id uint, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	var existing db.Habit
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Description = strings.TrimSpace(input.Description)
	existing.Kind = normalizeKind(input.Kind)
	existing.Status = normalizeStatus(input.Status)

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return &existing, nil
}

// Delete 删除习惯及其打卡、目标与指标行，避免留下孤儿数据
func (s *HabitService) Delete(id uint) error {
	var habit db.Habit
	if err := s.db.First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHabitNotFound
		}
		return fmt.Errorf("find habit: %w", err)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("habit_id = ?", id).Delete(&db.Entry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("habit_id = ?", id).Delete(&db.Goal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ? AND habit_id = ?", habit.ProfileID, id).
			Delete(&db.Metric{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Habit{}, id).Error
	}); err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

func validateHabitInput(input HabitInput) error {
	kind := strings.TrimSpace(strings.ToLower(input.Kind))
	if kind != "" && kind != db.HabitKindNumeric && kind != db.HabitKindBinary {
		return fmt.Errorf("%w: unsupported kind %s", ErrHabitInvalidKind, input.Kind)
	}

	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("habit name is required")
	}

	return nil
}

func normalizeKind(kind string) string {
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind != db.HabitKindNumeric {
		return db.HabitKindBinary
	}
	return db.HabitKindNumeric
}

func normalizeStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != "inactive" {
		return "active"
	}
	return "inactive"
}
