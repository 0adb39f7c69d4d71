package stats

import (
	"sort"

	"github.com/habitloop/internal/period"
)

// Entry 是打卡记录在纯计算层的视图：逻辑日期 + 数值。
// 服务端重算任务与离线客户端共用这一套函数，避免两侧算法漂移。
type Entry struct {
	Date  period.DateKey
	Value float64
}

// Goal 描述一个习惯的周期目标
type Goal struct {
	PeriodType period.PeriodType
	Target     float64
}

// DefaultDailyHorizon 是 daily 连胜回溯的默认上限（天）。
// 超出上限视为“连胜未知”，直接封顶，不做无界扫描。
const DefaultDailyHorizon = 60

// sumByAnchor 把记录按所属周期锚点聚合求和。
// 非正值记录完全不计入，任何情况下都不参与完成判定。
func sumByAnchor(entries []Entry, periodType period.PeriodType) (map[period.DateKey]float64, error) {
	sums := make(map[period.DateKey]float64, len(entries))
	for _, e := range entries {
		if e.Value <= 0 {
			continue
		}
		anchor, err := period.Anchor(periodType, e.Date)
		if err != nil {
			return nil, err
		}
		sums[anchor] += e.Value
	}
	return sums, nil
}

// Evaluate 判定锚点所在周期是否完成，并返回该周期的数值总和。
// 完成判定对 numeric/binary 习惯走同一条路径：sum 与 target 比较。
func Evaluate(entries []Entry, goal Goal, anchor period.DateKey) (complete bool, sum float64, err error) {
	start, end, err := period.Bounds(goal.PeriodType, anchor)
	if err != nil {
		return false, 0, err
	}

	for _, e := range entries {
		if e.Value <= 0 {
			continue
		}
		if e.Date >= start && e.Date <= end {
			sum += e.Value
		}
	}

	if goal.Target > 0 {
		return sum >= goal.Target, sum, nil
	}
	return sum > 0, sum, nil
}

func isComplete(sums map[period.DateKey]float64, target float64, anchor period.DateKey) bool {
	sum := sums[anchor]
	if target > 0 {
		return sum >= target
	}
	return sum > 0
}

// Current 计算截至 today 的当前连胜。
//
// daily：今天未完成时不算失败（仅是尚未发生），回溯从昨天开始；
// 回溯最多 dailyHorizon 天，超出按封顶处理。
// weekly/monthly：当前周期未完成即为 0——周期未结束前的部分进度
// 不构成宽限，完成后才逐周期向前回溯。
func Current(entries []Entry, goal Goal, today period.DateKey, dailyHorizon int) (int, error) {
	sums, err := sumByAnchor(entries, goal.PeriodType)
	if err != nil {
		return 0, err
	}
	if len(sums) == 0 {
		return 0, nil
	}

	anchor, err := period.Anchor(goal.PeriodType, today)
	if err != nil {
		return 0, err
	}

	if goal.PeriodType == period.Daily {
		if dailyHorizon <= 0 {
			dailyHorizon = DefaultDailyHorizon
		}

		cursor := anchor
		if !isComplete(sums, goal.Target, cursor) {
			if cursor, err = period.Prev(period.Daily, cursor); err != nil {
				return 0, err
			}
		}

		streak := 0
		for i := 0; i < dailyHorizon; i++ {
			if !isComplete(sums, goal.Target, cursor) {
				break
			}
			streak++
			if cursor, err = period.Prev(period.Daily, cursor); err != nil {
				return 0, err
			}
		}
		return streak, nil
	}

	if !isComplete(sums, goal.Target, anchor) {
		return 0, nil
	}

	earliest := earliestAnchor(sums)
	streak := 1
	cursor := anchor
	for {
		if cursor, err = period.Prev(goal.PeriodType, cursor); err != nil {
			return 0, err
		}
		if cursor < earliest || !isComplete(sums, goal.Target, cursor) {
			break
		}
		streak++
	}
	return streak, nil
}

// Best 计算历史最佳连胜：扫描所有有数据的周期，找最长完成连段。
// 只有相邻周期（锚点正好前后衔接）才能延续连段。
func Best(entries []Entry, goal Goal) (int, error) {
	sums, err := sumByAnchor(entries, goal.PeriodType)
	if err != nil {
		return 0, err
	}
	if len(sums) == 0 {
		return 0, nil
	}

	anchors := make([]period.DateKey, 0, len(sums))
	for anchor := range sums {
		anchors = append(anchors, anchor)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i] < anchors[j] })

	best, run := 0, 0
	var prev period.DateKey
	for i, anchor := range anchors {
		if !isComplete(sums, goal.Target, anchor) {
			run = 0
			prev = anchor
			continue
		}

		adjacent := false
		if i > 0 && run > 0 {
			expected, err := period.Prev(goal.PeriodType, anchor)
			if err != nil {
				return 0, err
			}
			adjacent = expected == prev
		}

		if adjacent {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = anchor
	}
	return best, nil
}

// WindowCompletion 统计最近 n 个周期（含当前周期）中完成的周期数。
// 窗口以习惯自身的周期类型为单位：daily 数天，weekly 数周，monthly 数月。
func WindowCompletion(entries []Entry, goal Goal, today period.DateKey, n int) (done, total int, err error) {
	if n <= 0 {
		return 0, 0, nil
	}

	sums, err := sumByAnchor(entries, goal.PeriodType)
	if err != nil {
		return 0, 0, err
	}

	cursor, err := period.Anchor(goal.PeriodType, today)
	if err != nil {
		return 0, 0, err
	}

	for i := 0; i < n; i++ {
		if isComplete(sums, goal.Target, cursor) {
			done++
		}
		if cursor, err = period.Prev(goal.PeriodType, cursor); err != nil {
			return 0, 0, err
		}
	}
	return done, n, nil
}

// ActiveDays 统计最近 windowDays 天内有打卡记录的不同逻辑日期数
func ActiveDays(entries []Entry, today period.DateKey, windowDays int) (int, error) {
	if windowDays <= 0 {
		return 0, nil
	}

	start, err := period.AddDays(today, -(windowDays - 1))
	if err != nil {
		return 0, err
	}

	seen := make(map[period.DateKey]struct{})
	for _, e := range entries {
		if e.Date >= start && e.Date <= today {
			seen[e.Date] = struct{}{}
		}
	}
	return len(seen), nil
}

// AverageValue 计算最近 windowDays 天记录值的均值。
// 仅对 numeric 习惯有意义；窗口内无有效记录时 ok=false，调用方不得显示数值。
func AverageValue(entries []Entry, today period.DateKey, windowDays int) (avg float64, ok bool, err error) {
	if windowDays <= 0 {
		return 0, false, nil
	}

	start, err := period.AddDays(today, -(windowDays - 1))
	if err != nil {
		return 0, false, err
	}

	var sum float64
	var count int
	for _, e := range entries {
		if e.Value <= 0 {
			continue
		}
		if e.Date >= start && e.Date <= today {
			sum += e.Value
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float64(count), true, nil
}

func earliestAnchor(sums map[period.DateKey]float64) period.DateKey {
	var earliest period.DateKey
	for anchor := range sums {
		if earliest == "" || anchor < earliest {
			earliest = anchor
		}
	}
	return earliest
}
