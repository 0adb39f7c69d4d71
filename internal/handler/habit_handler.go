package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/service"
)

type habitPayload struct {
	ProfileID   uint   `json:"profile_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
}

type goalPayload struct {
	PeriodType  string  `json:"period_type"`
	TargetValue float64 `json:"target_value"`
}

// GetHabits 返回习惯列表，支持 status/kind/search 筛选
func (a *API) GetHabits(c *gin.Context) {
	filter := service.HabitFilter{
		Status: c.Query("status"),
		Kind:   c.Query("kind"),
		Search: c.Query("search"),
	}
	if raw := c.Query("profile_id"); raw != "" {
		if id, err := parseUintQuery(raw); err == nil {
			filter.ProfileID = id
		}
	}

	habits, err := a.habits.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list habits")
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

// GetHabit 返回单个习惯
func (a *API) GetHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	habit, err := a.habits.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to get habit")
		return
	}
	c.JSON(http.StatusOK, habit)
}

// CreateHabit 新建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, "invalid habit payload") {
		return
	}

	habit, err := a.habits.Create(service.HabitInput{
		ProfileID:   payload.ProfileID,
		Name:        payload.Name,
		Description: payload.Description,
		Kind:        payload.Kind,
		Status:      payload.Status,
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, habit)
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload habitPayload
	if !bindJSON(c, &payload, "invalid habit payload") {
		return
	}

	habit, err := a.habits.Update(id, service.HabitInput{
		ProfileID:   payload.ProfileID,
		Name:        payload.Name,
		Description: payload.Description,
		Kind:        payload.Kind,
		Status:      payload.Status,
	})
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, habit)
}

// DeleteHabit 删除习惯及其全部数据
func (a *API) DeleteHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.habits.Delete(id); err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to delete habit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// SetGoal 设置/覆盖习惯目标
func (a *API) SetGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload goalPayload
	if !bindJSON(c, &payload, "invalid goal payload") {
		return
	}

	habit, err := a.habits.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to get habit")
		return
	}

	goal, err := a.goals.Set(service.GoalInput{
		HabitID:     id,
		PeriodType:  payload.PeriodType,
		TargetValue: payload.TargetValue,
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	// 目标变化会改变完成判定口径，立即触发重算
	a.recalc.Trigger(habit.ID, habit.ProfileID, "")
	c.JSON(http.StatusOK, goal)
}

// GetGoal 返回习惯目标，未配置时 404
func (a *API) GetGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := a.goals.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrMissingGoal) {
			respondError(c, http.StatusNotFound, "goal not configured")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to get goal")
		return
	}
	c.JSON(http.StatusOK, goal)
}
