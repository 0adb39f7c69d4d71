package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/handler"
	"gorm.io/gorm"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, loc *time.Location, dailyHorizon int) *gin.Engine {
	r := gin.Default()

	api := handler.NewAPI(gdb, loc, dailyHorizon)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	v1 := r.Group("/api")
	{
		v1.GET("/habits", api.GetHabits)
		v1.POST("/habits", api.CreateHabit)
		v1.GET("/habits/:id", api.GetHabit)
		v1.PUT("/habits/:id", api.UpdateHabit)
		v1.DELETE("/habits/:id", api.DeleteHabit)

		v1.GET("/habits/:id/goal", api.GetGoal)
		v1.PUT("/habits/:id/goal", api.SetGoal)

		v1.POST("/habits/:id/entries", api.CreateEntry)
		v1.GET("/habits/:id/entries", api.GetEntries)
		v1.PUT("/entries/:id", api.UpdateEntry)
		v1.DELETE("/entries/:id", api.DeleteEntry)

		v1.GET("/habits/:id/stats", api.GetHabitStats)
		v1.GET("/habits/:id/metrics", api.GetHabitMetrics)
		v1.POST("/habits/:id/recalc", api.TriggerRecalc)

		v1.GET("/profiles/:id/metrics", api.GetProfileMetrics)
		v1.GET("/profiles/:id/heatmap", api.GetHeatmap)

		v1.GET("/habits/:id/insights/unlock", api.GetUnlockStatus)
		v1.GET("/habits/:id/insights/latest", api.GetLatestPredictionSet)
	}

	return r
}
