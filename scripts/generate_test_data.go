package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
)

// 测试数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	profile, err := db.EnsureProfile("演示档案")
	if err != nil {
		log.Fatal("创建档案失败:", err)
	}

	habits := createTestHabits(profile.ID)
	createTestGoals(habits)
	createTestEntries(habits)

	fmt.Println("测试数据生成完成！")
	fmt.Printf("档案: %s (%s)\n", profile.Name, profile.UUID)
	fmt.Printf("习惯: %d 个，打卡记录覆盖最近 45 天\n", len(habits))
	fmt.Println("提示: 通过 POST /api/habits/:id/recalc 触发指标重算")
}

// 创建测试习惯
func createTestHabits(profileID uint) []db.Habit {
	var count int64
	db.DB.Model(&db.Habit{}).Count(&count)
	if count > 0 {
		fmt.Println("习惯已存在，跳过创建")
		var habits []db.Habit
		db.DB.Find(&habits)
		return habits
	}

	habits := []db.Habit{
		{ProfileID: profileID, Name: "晨跑", Description: "每天 5 公里", Kind: db.HabitKindNumeric, Status: "active"},
		{ProfileID: profileID, Name: "阅读", Description: "每天读书页数", Kind: db.HabitKindNumeric, Status: "active"},
		{ProfileID: profileID, Name: "冥想", Description: "每天一次", Kind: db.HabitKindBinary, Status: "active"},
		{ProfileID: profileID, Name: "写周记", Description: "每周一篇", Kind: db.HabitKindBinary, Status: "active"},
	}
	for i := range habits {
		if err := db.DB.Create(&habits[i]).Error; err != nil {
			log.Fatal("创建习惯失败:", err)
		}
	}
	return habits
}

// 为每个习惯配置目标
func createTestGoals(habits []db.Habit) {
	periods := map[string]string{
		"晨跑":  "daily",
		"阅读":  "daily",
		"冥想":  "daily",
		"写周记": "weekly",
	}
	targets := map[string]float64{
		"晨跑":  5,
		"阅读":  20,
		"冥想":  1,
		"写周记": 1,
	}

	for _, habit := range habits {
		goal := db.Goal{
			HabitID:     habit.ID,
			PeriodType:  periods[habit.Name],
			TargetValue: targets[habit.Name],
		}
		if goal.PeriodType == "" {
			goal.PeriodType = "daily"
			goal.TargetValue = 1
		}
		if err := db.DB.Create(&goal).Error; err != nil {
			log.Fatal("创建目标失败:", err)
		}
	}
}

// 生成最近 45 天的打卡记录，留一些随机缺口让连胜有断点
func createTestEntries(habits []db.Habit) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	for _, habit := range habits {
		for day := 0; day < 45; day++ {
			if rng.Float64() < 0.2 {
				continue
			}

			loggedAt := now.AddDate(0, 0, -day).Add(-time.Duration(rng.Intn(8)) * time.Hour)
			value := 1.0
			if habit.Kind == db.HabitKindNumeric {
				value = float64(1 + rng.Intn(30))
			}

			entry := db.Entry{
				HabitID:  habit.ID,
				Value:    value,
				LoggedAt: loggedAt,
			}
			if err := db.DB.Create(&entry).Error; err != nil {
				log.Fatal("创建打卡记录失败:", err)
			}
		}
	}
}
