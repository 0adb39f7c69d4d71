package client

import (
	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/stats"
)

// 指标值来源：authoritative 为服务端缓存行，local 为本地兜底计算
const (
	SourceAuthoritative = "authoritative"
	SourceLocal         = "local"
)

// Resolved 是一次读取的解析结果
type Resolved struct {
	Value  float64
	Source string
}

// Resolver 是客户端的过期判定与本地兜底计算器。
// 权威指标缺失或落后于当前周期时，用缓存的打卡记录套同一套纯函数
// 现算出近似值，等服务端指标追上来再回到权威值——UI 永远不会
// 展示比当前周期更旧的指标。
type Resolver struct {
	store        *FileStore
	dailyHorizon int
}

// NewResolver 构造 Resolver
func NewResolver(store *FileStore, dailyHorizon int) *Resolver {
	if dailyHorizon <= 0 {
		dailyHorizon = stats.DefaultDailyHorizon
	}
	return &Resolver{store: store, dailyHorizon: dailyHorizon}
}

// ExpectedDate 返回 today 所在目标周期的锚点日期。
// 缓存指标的日期不早于它才算新鲜。
func ExpectedDate(periodType period.PeriodType, today period.DateKey) (period.DateKey, error) {
	return period.Anchor(periodType, today)
}

// IsFresh 判定缓存指标相对当前周期是否仍然可用
func IsFresh(metricDate string, periodType period.PeriodType, today period.DateKey) (bool, error) {
	expected, err := ExpectedDate(periodType, today)
	if err != nil {
		return false, err
	}
	return period.DateKey(metricDate) >= expected, nil
}

// CurrentStreak 解析当前连胜：优先权威缓存行，过期则本地重算
func (r *Resolver) CurrentStreak(habitID uint, metricType string, today period.DateKey) (Resolved, error) {
	goal := r.store.Goal(habitID)
	if goal == nil {
		// 没有目标配置就没有连胜语义，本地视为 0
		return Resolved{Value: 0, Source: SourceLocal}, nil
	}

	periodType := period.PeriodType(goal.PeriodType)
	cached := r.store.Metric(habitID, metricType)
	if cached != nil {
		fresh, err := IsFresh(cached.Date, periodType, today)
		if err != nil {
			return Resolved{}, err
		}
		if fresh {
			return Resolved{Value: cached.Value, Source: SourceAuthoritative}, nil
		}
	}

	streak, err := stats.Current(r.store.Entries(habitID), stats.Goal{
		PeriodType: periodType,
		Target:     goal.TargetValue,
	}, today, r.dailyHorizon)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Value: float64(streak), Source: SourceLocal}, nil
}

// BestStreak 解析最佳连胜。最佳连胜不随周期推进过期，
// 有权威行就用权威行，否则本地重算。
func (r *Resolver) BestStreak(habitID uint, metricType string) (Resolved, error) {
	if cached := r.store.Metric(habitID, metricType); cached != nil {
		return Resolved{Value: cached.Value, Source: SourceAuthoritative}, nil
	}

	goal := r.store.Goal(habitID)
	if goal == nil {
		return Resolved{Value: 0, Source: SourceLocal}, nil
	}

	best, err := stats.Best(r.store.Entries(habitID), stats.Goal{
		PeriodType: period.PeriodType(goal.PeriodType),
		Target:     goal.TargetValue,
	})
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Value: float64(best), Source: SourceLocal}, nil
}
