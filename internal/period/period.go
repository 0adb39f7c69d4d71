package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDateKey 在日期键格式非法时返回
var ErrInvalidDateKey = errors.New("invalid date key")

const dateKeyLayout = "2006-01-02"

// DateKey 表示参考时区下的逻辑日期（YYYY-MM-DD）。
// 字符串字典序即日期序，可直接用 <、>= 比较。
type DateKey string

// PeriodType 表示目标周期类型
type PeriodType string

const (
	Daily   PeriodType = "daily"
	Weekly  PeriodType = "weekly"
	Monthly PeriodType = "monthly"
)

// Valid 校验周期类型是否受支持
func (p PeriodType) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// ParseDateKey 解析并规范化日期键，非法输入返回 ErrInvalidDateKey
func ParseDateKey(raw string) (DateKey, error) {
	t, err := time.ParseInLocation(dateKeyLayout, raw, time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, raw)
	}
	return DateKey(t.Format(dateKeyLayout)), nil
}

// ToLogicalDate 把绝对时间戳换算为参考时区下的逻辑日期。
// 所有消费方共用同一参考时区，保证对“这条记录属于哪一天”达成一致。
func ToLogicalDate(t time.Time, reference *time.Location) DateKey {
	if reference == nil {
		reference = time.UTC
	}
	return DateKey(t.In(reference).Format(dateKeyLayout))
}

// Time 返回日期键对应的 UTC 零点，仅用于日期运算
func (d DateKey) Time() (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, string(d), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, string(d))
	}
	return t, nil
}

// AddDays 返回偏移 n 天后的日期键
func AddDays(d DateKey, n int) (DateKey, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	return DateKey(t.AddDate(0, 0, n).Format(dateKeyLayout)), nil
}

// Bounds 计算锚点日期所在周期的起止日期（均含）。
// daily: start=end=anchor；weekly: 周一至周日；monthly: 当月首日至末日。
func Bounds(periodType PeriodType, anchor DateKey) (start, end DateKey, err error) {
	t, err := anchor.Time()
	if err != nil {
		return "", "", err
	}

	switch periodType {
	case Daily:
		return anchor, anchor, nil
	case Weekly:
		// time.Weekday 以周日为 0，换算成周一偏移
		offset := (int(t.Weekday()) + 6) % 7
		monday := t.AddDate(0, 0, -offset)
		sunday := monday.AddDate(0, 0, 6)
		return DateKey(monday.Format(dateKeyLayout)), DateKey(sunday.Format(dateKeyLayout)), nil
	case Monthly:
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		return DateKey(first.Format(dateKeyLayout)), DateKey(last.Format(dateKeyLayout)), nil
	default:
		return "", "", fmt.Errorf("%w: unsupported period type %q", ErrInvalidDateKey, periodType)
	}
}

// Prev 返回上一个周期的锚点日期（即上一周期的起始日）
func Prev(periodType PeriodType, anchor DateKey) (DateKey, error) {
	start, _, err := Bounds(periodType, anchor)
	if err != nil {
		return "", err
	}

	t, err := start.Time()
	if err != nil {
		return "", err
	}

	switch periodType {
	case Daily:
		return DateKey(t.AddDate(0, 0, -1).Format(dateKeyLayout)), nil
	case Weekly:
		return DateKey(t.AddDate(0, 0, -7).Format(dateKeyLayout)), nil
	case Monthly:
		return DateKey(t.AddDate(0, -1, 0).Format(dateKeyLayout)), nil
	default:
		return "", fmt.Errorf("%w: unsupported period type %q", ErrInvalidDateKey, periodType)
	}
}

// Anchor 返回日期所在周期的锚点（起始日），作为指标行的规范日期
func Anchor(periodType PeriodType, d DateKey) (DateKey, error) {
	start, _, err := Bounds(periodType, d)
	return start, err
}
