package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/service"
)

// GetHabitMetrics 返回习惯的全部指标缓存行
func (a *API) GetHabitMetrics(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	habit, err := a.habits.Get(habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to get habit")
		return
	}

	metrics, err := a.metrics.ListForHabit(habit.ProfileID, habitID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list metrics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

// GetProfileMetrics 返回档案级指标缓存行
func (a *API) GetProfileMetrics(c *gin.Context) {
	profileID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := a.metrics.ListForProfile(profileID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list metrics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

// GetHabitStats 返回习惯统计的即时快照。
// 快照直接用纯函数从打卡记录现算，口径与指标缓存行一致，
// 因此即便缓存尚未追上最近一次写入，这里也不会给出过期值。
func (a *API) GetHabitStats(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	date, err := parseDateQuery(c, "date", "")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid date")
		return
	}

	snapshot, err := a.recalc.Snapshot(habitID, date)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        snapshot,
		"generated_at": period.ToLogicalDate(time.Now(), a.loc),
	})
}

// TriggerRecalc 手动触发一次异步重算，立即返回 202
func (a *API) TriggerRecalc(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	habit, err := a.habits.Get(habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to get habit")
		return
	}

	date, err := parseDateQuery(c, "date", "")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid date")
		return
	}

	a.recalc.Trigger(habit.ID, habit.ProfileID, date)
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}
