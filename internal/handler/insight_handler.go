package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/service"
)

// GetUnlockStatus 返回习惯的洞察解锁档位及当前数据天数
func (a *API) GetUnlockStatus(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	days, err := a.insights.DataDays(habitID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to count data days")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    service.UnlockStatusForDays(days),
		"data_days": days,
	})
}

// GetLatestPredictionSet 返回最近一组完整预测
func (a *API) GetLatestPredictionSet(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	set, err := a.insights.LatestCompleteSet(habitID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to resolve predictions")
		return
	}
	c.JSON(http.StatusOK, set)
}
