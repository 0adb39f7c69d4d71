package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
	"gorm.io/gorm"
)

// 解锁状态与数据量阈值（按有打卡记录的不同逻辑日期数计）
const (
	UnlockLocked = "locked"
	UnlockBasic  = "basic"
	UnlockFull   = "full"

	unlockBasicThreshold = 14
	unlockFullThreshold  = 21
)

// requiredPredictionTypes 是一组完整预测必须齐备的三种类型
var requiredPredictionTypes = []string{
	"completion_forecast",
	"streak_forecast",
	"optimal_time",
}

// PredictionSet 是最近一组自洽预测的解析结果。
// HasAnyRows 用于区分“有预测行但凑不齐一组”与“完全没有预测行”。
type PredictionSet struct {
	Predictions []db.PredictionRow `json:"predictions"`
	LatestDate  string             `json:"latest_date"`
	HasAnyRows  bool               `json:"has_any_rows"`
}

// InsightService 是预测就绪门：根据数据量判定洞察解锁档位，
// 并从预测行中解析最近一组完整预测。预测行本身由洞察侧产出，引擎只读。
type InsightService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewInsightService 构造 InsightService
func NewInsightService(gdb *gorm.DB, loc *time.Location) *InsightService {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightService{db: gdb, loc: loc}
}

// UnlockStatusForDays 按数据天数判定解锁档位。
// 边界要求精确：<14 locked，14..20 basic，>=21 full。
func UnlockStatusForDays(days int) string {
	switch {
	case days >= unlockFullThreshold:
		return UnlockFull
	case days >= unlockBasicThreshold:
		return UnlockBasic
	default:
		return UnlockLocked
	}
}

// ResolveLatestCompleteSet 按日期降序扫描预测行，
// 返回第一组三种必需类型齐备的预测；没有完整组时 Predictions 为 nil。
func ResolveLatestCompleteSet(rows []db.PredictionRow) PredictionSet {
	result := PredictionSet{HasAnyRows: len(rows) > 0}
	if len(rows) == 0 {
		return result
	}

	byDate := make(map[string][]db.PredictionRow)
	for _, row := range rows {
		byDate[row.Date] = append(byDate[row.Date], row)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates {
		group := byDate[date]
		if !hasAllRequiredTypes(group) {
			continue
		}
		result.Predictions = group
		result.LatestDate = date
		return result
	}
	return result
}

func hasAllRequiredTypes(rows []db.PredictionRow) bool {
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.PredictionType] = true
	}
	for _, required := range requiredPredictionTypes {
		if !present[required] {
			return false
		}
	}
	return true
}

// DataDays 统计习惯有打卡记录的不同逻辑日期数
func (s *InsightService) DataDays(habitID uint) (int, error) {
	var entries []db.Entry
	if err := s.db.Where("habit_id = ?", habitID).Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("count data days: %w", err)
	}

	seen := make(map[period.DateKey]struct{}, len(entries))
	for _, e := range entries {
		seen[period.ToLogicalDate(e.LoggedAt, s.loc)] = struct{}{}
	}
	return len(seen), nil
}

// UnlockStatus 返回习惯的洞察解锁档位
func (s *InsightService) UnlockStatus(habitID uint) (string, error) {
	days, err := s.DataDays(habitID)
	if err != nil {
		return "", err
	}
	return UnlockStatusForDays(days), nil
}

// LatestCompleteSet 加载习惯的全部预测行并解析最近一组完整预测
func (s *InsightService) LatestCompleteSet(habitID uint) (PredictionSet, error) {
	var rows []db.PredictionRow
	if err := s.db.Where("habit_id = ?", habitID).
		Order("date DESC").
		Find(&rows).Error; err != nil {
		return PredictionSet{}, fmt.Errorf("list prediction rows: %w", err)
	}
	return ResolveLatestCompleteSet(rows), nil
}
