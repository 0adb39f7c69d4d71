package handler

import (
	"cmp"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/service"
)

type entryPayload struct {
	Value    float64 `json:"value"`
	LoggedAt string  `json:"logged_at"`
}

type heatmapDay struct {
	Date   string `json:"date"`
	Habits []uint `json:"habits"`
}

// CreateEntry 为习惯新增一条打卡记录
func (a *API) CreateEntry(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload entryPayload
	if !bindJSON(c, &payload, "invalid entry payload") {
		return
	}

	loggedAt, ok := parseLoggedAt(c, payload.LoggedAt)
	if !ok {
		return
	}

	entry, err := a.entries.Create(service.EntryInput{
		HabitID:  habitID,
		Value:    payload.Value,
		LoggedAt: loggedAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "habit not found")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateEntry 修改打卡记录
func (a *API) UpdateEntry(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload entryPayload
	if !bindJSON(c, &payload, "invalid entry payload") {
		return
	}

	var loggedAt *time.Time
	if payload.LoggedAt != "" {
		parsed, ok := parseLoggedAt(c, payload.LoggedAt)
		if !ok {
			return
		}
		loggedAt = &parsed
	}

	entry, err := a.entries.Update(id, payload.Value, loggedAt)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			respondError(c, http.StatusNotFound, "entry not found")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteEntry 删除打卡记录
func (a *API) DeleteEntry(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.entries.Delete(id); err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			respondError(c, http.StatusNotFound, "entry not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to delete entry")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetEntries 返回习惯在逻辑日期区间内的打卡记录
func (a *API) GetEntries(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	today := period.ToLogicalDate(time.Now(), a.loc)
	defaultStart, _ := period.AddDays(today, -29)

	start, err := parseDateQuery(c, "start", defaultStart)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDateQuery(c, "end", today)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid end date")
		return
	}

	entries, err := a.entries.ListBetween(service.EntryFilter{
		HabitID: habitID,
		Start:   start,
		End:     end,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "start": start, "end": end})
}

// GetHeatmap 返回档案在区间内的打卡热力图数据
func (a *API) GetHeatmap(c *gin.Context) {
	profileID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	today := period.ToLogicalDate(time.Now(), a.loc)
	defaultStart, _ := period.AddDays(today, -29)

	start, err := parseDateQuery(c, "start", defaultStart)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDateQuery(c, "end", today)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid end date")
		return
	}

	rows, err := a.entries.HeatmapRange(profileID, start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to build heatmap")
		return
	}

	// 按日聚合，去重同一习惯同一天的多条记录
	grouped := make(map[string]map[uint]struct{})
	for _, row := range rows {
		if grouped[row.LogDate] == nil {
			grouped[row.LogDate] = make(map[uint]struct{})
		}
		grouped[row.LogDate][row.HabitID] = struct{}{}
	}

	days := make([]heatmapDay, 0, len(grouped))
	for date, habitSet := range grouped {
		habits := make([]uint, 0, len(habitSet))
		for id := range habitSet {
			habits = append(habits, id)
		}
		slices.Sort(habits)
		days = append(days, heatmapDay{Date: date, Habits: habits})
	}
	slices.SortFunc(days, func(a, b heatmapDay) int {
		return cmp.Compare(a.Date, b.Date)
	})

	c.JSON(http.StatusOK, gin.H{
		"range": gin.H{"start": start, "end": end},
		"days":  days,
	})
}

// parseLoggedAt 解析打卡时间戳，支持 RFC3339 与纯日期两种格式
func parseLoggedAt(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	respondError(c, http.StatusBadRequest, "invalid logged_at timestamp")
	return time.Time{}, false
}
