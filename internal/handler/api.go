package handler

import (
	"time"

	"github.com/habitloop/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	habits   *service.HabitService
	goals    *service.GoalService
	entries  *service.EntryService
	metrics  *service.MetricService
	recalc   *service.RecalcService
	insights *service.InsightService
	loc      *time.Location
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, loc *time.Location, dailyHorizon int) *API {
	if loc == nil {
		loc = time.UTC
	}

	metricService := service.NewMetricService(db)
	goalService := service.NewGoalService(db)
	recalcService := service.NewRecalcService(db, metricService, goalService, loc, dailyHorizon)

	return &API{
		habits:   service.NewHabitService(db),
		goals:    goalService,
		entries:  service.NewEntryService(db, recalcService, loc),
		metrics:  metricService,
		recalc:   recalcService,
		insights: service.NewInsightService(db, loc),
		loc:      loc,
	}
}
