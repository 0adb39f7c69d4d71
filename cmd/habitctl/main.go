package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/habitloop/internal/client"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/period"
)

// habitctl 是离线可用的瘦客户端：sync 把服务端数据拉进本地缓存，
// streak/best 走过期判定 + 本地兜底，网络不可用时照样给出数值。

var cli struct {
	Server   string `help:"Server base URL." default:"http://localhost:8080"`
	Cache    string `help:"Cache file path." type:"path" default:"~/.cache/habitloop/cache.json"`
	Timezone string `help:"Reference timezone." default:"UTC"`

	Sync   syncCmd   `cmd:"" help:"Pull entries, goal and metrics for a habit into the local cache."`
	Streak streakCmd `cmd:"" help:"Show the current streak for a habit."`
	Best   bestCmd   `cmd:"" help:"Show the best streak for a habit."`
}

type syncCmd struct {
	HabitID uint `arg:"" help:"Habit ID."`
	Days    int  `help:"How many days of entries to pull." default:"365"`
}

type streakCmd struct {
	HabitID uint `arg:"" help:"Habit ID."`
}

type bestCmd struct {
	HabitID uint `arg:"" help:"Habit ID."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("habitctl"),
		kong.Description("Offline-capable habit metrics client"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "habitctl: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (*client.FileStore, error) {
	store := client.NewFileStore(cli.Cache)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (cmd *syncCmd) Run() error {
	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cli.Timezone, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	goal, err := fetchGoal(cmd.HabitID)
	if err != nil {
		return err
	}
	entries, err := fetchEntries(cmd.HabitID, cmd.Days, loc)
	if err != nil {
		return err
	}
	metrics, err := fetchMetrics(cmd.HabitID)
	if err != nil {
		return err
	}

	if err := store.ReplaceHabit(cmd.HabitID, goal, entries, metrics); err != nil {
		return err
	}

	fmt.Printf("synced habit %d: %d entries, %d metrics (cache v%d)\n",
		cmd.HabitID, len(entries), len(metrics), store.Version())
	return nil
}

func (cmd *streakCmd) Run() error {
	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cli.Timezone, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	resolver := client.NewResolver(store, 0)
	today := period.ToLogicalDate(time.Now(), loc)
	resolved, err := resolver.CurrentStreak(cmd.HabitID, db.MetricStreak, today)
	if err != nil {
		return err
	}

	fmt.Printf("current streak: %.0f (%s)\n", resolved.Value, resolved.Source)
	return nil
}

func (cmd *bestCmd) Run() error {
	store, err := openStore()
	if err != nil {
		return err
	}

	resolver := client.NewResolver(store, 0)
	resolved, err := resolver.BestStreak(cmd.HabitID, db.MetricBestStreak)
	if err != nil {
		return err
	}

	fmt.Printf("best streak: %.0f (%s)\n", resolved.Value, resolved.Source)
	return nil
}

func getJSON(path string, dst interface{}) (int, error) {
	resp, err := http.Get(cli.Server + path)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func fetchGoal(habitID uint) (*client.CachedGoal, error) {
	var goal struct {
		PeriodType  string  `json:"PeriodType"`
		TargetValue float64 `json:"TargetValue"`
	}
	status, err := getJSON(fmt.Sprintf("/api/habits/%d/goal", habitID), &goal)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch goal: unexpected status %d", status)
	}
	return &client.CachedGoal{PeriodType: goal.PeriodType, TargetValue: goal.TargetValue}, nil
}

func fetchEntries(habitID uint, days int, loc *time.Location) ([]client.CachedEntry, error) {
	today := period.ToLogicalDate(time.Now(), loc)
	start, err := period.AddDays(today, -(days - 1))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Entries []struct {
			Value    float64   `json:"Value"`
			LoggedAt time.Time `json:"LoggedAt"`
		} `json:"entries"`
	}
	status, err := getJSON(fmt.Sprintf("/api/habits/%d/entries?start=%s&end=%s", habitID, start, today), &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch entries: unexpected status %d", status)
	}

	entries := make([]client.CachedEntry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entries = append(entries, client.CachedEntry{
			Date:  string(period.ToLogicalDate(e.LoggedAt, loc)),
			Value: e.Value,
		})
	}
	return entries, nil
}

func fetchMetrics(habitID uint) ([]client.CachedMetric, error) {
	var payload struct {
		Metrics []struct {
			HabitID     uint    `json:"HabitID"`
			Date        string  `json:"Date"`
			MetricType  string  `json:"MetricType"`
			Granularity string  `json:"Granularity"`
			Value       float64 `json:"Value"`
		} `json:"metrics"`
	}
	status, err := getJSON(fmt.Sprintf("/api/habits/%d/metrics", habitID), &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch metrics: unexpected status %d", status)
	}

	metrics := make([]client.CachedMetric, 0, len(payload.Metrics))
	for _, m := range payload.Metrics {
		metrics = append(metrics, client.CachedMetric{
			HabitID:     m.HabitID,
			Date:        m.Date,
			MetricType:  m.MetricType,
			Granularity: m.Granularity,
			Value:       m.Value,
		})
	}
	return metrics, nil
}
