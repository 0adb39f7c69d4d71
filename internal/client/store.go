package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/habitloop/internal/period"
	"github.com/habitloop/internal/stats"
)

// CachedGoal mirrors the server-side goal configuration.
type CachedGoal struct {
	PeriodType  string  `json:"period_type"`
	TargetValue float64 `json:"target_value"`
}

// CachedMetric is one authoritative metric row pulled from the server.
type CachedMetric struct {
	HabitID     uint    `json:"habit_id"`
	Date        string  `json:"date"`
	MetricType  string  `json:"metric_type"`
	Granularity string  `json:"granularity"`
	Value       float64 `json:"value"`
}

// CachedEntry is one habit log entry in the local cache, already reduced
// to its logical date in the reference timezone.
type CachedEntry struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// cacheFile is the on-disk layout. Version bumps on every sync so callers
// can detect reconciliation instead of relying on ad hoc dirty flags.
type cacheFile struct {
	Version int                     `json:"version"`
	Goals   map[uint]CachedGoal     `json:"goals"`
	Entries map[uint][]CachedEntry  `json:"entries"`
	Metrics map[uint][]CachedMetric `json:"metrics"`
}

// FileStore is the client-side cache backing offline reads.
type FileStore struct {
	path  string
	cache *cacheFile
}

// NewFileStore 构造 FileStore，路径不存在时首次保存会自动建目录
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the cache from disk; a missing file yields an empty cache.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cache = emptyCache()
			return nil
		}
		return fmt.Errorf("read cache: %w", err)
	}

	cache := &cacheFile{}
	if err := json.Unmarshal(data, cache); err != nil {
		return fmt.Errorf("parse cache: %w", err)
	}
	if cache.Goals == nil || cache.Entries == nil || cache.Metrics == nil {
		filled := emptyCache()
		filled.Version = cache.Version
		if cache.Goals != nil {
			filled.Goals = cache.Goals
		}
		if cache.Entries != nil {
			filled.Entries = cache.Entries
		}
		if cache.Metrics != nil {
			filled.Metrics = cache.Metrics
		}
		cache = filled
	}
	s.cache = cache
	return nil
}

// Version returns the current cache version.
func (s *FileStore) Version() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Version
}

// ReplaceHabit 覆盖某习惯的本地缓存（目标 + 记录 + 权威指标），并递增版本。
// 同步拉到新数据后调用，即“指标追上来之后”的对账动作。
func (s *FileStore) ReplaceHabit(habitID uint, goal *CachedGoal, entries []CachedEntry, metrics []CachedMetric) error {
	if s.cache == nil {
		s.cache = emptyCache()
	}

	if goal != nil {
		s.cache.Goals[habitID] = *goal
	} else {
		delete(s.cache.Goals, habitID)
	}
	s.cache.Entries[habitID] = entries
	s.cache.Metrics[habitID] = metrics
	s.cache.Version++

	return s.save()
}

// Goal returns the cached goal for a habit, nil when absent.
func (s *FileStore) Goal(habitID uint) *CachedGoal {
	if s.cache == nil {
		return nil
	}
	goal, ok := s.cache.Goals[habitID]
	if !ok {
		return nil
	}
	return &goal
}

// Entries returns the cached entries as stats-layer values.
func (s *FileStore) Entries(habitID uint) []stats.Entry {
	if s.cache == nil {
		return nil
	}
	cached := s.cache.Entries[habitID]
	entries := make([]stats.Entry, 0, len(cached))
	for _, e := range cached {
		entries = append(entries, stats.Entry{Date: period.DateKey(e.Date), Value: e.Value})
	}
	return entries
}

// Metric returns the cached metric of the given type, nil when absent.
func (s *FileStore) Metric(habitID uint, metricType string) *CachedMetric {
	if s.cache == nil {
		return nil
	}
	for _, m := range s.cache.Metrics[habitID] {
		if m.MetricType == metricType {
			metric := m
			return &metric
		}
	}
	return nil
}

func (s *FileStore) save() error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func emptyCache() *cacheFile {
	return &cacheFile{
		Version: 0,
		Goals:   make(map[uint]CachedGoal),
		Entries: make(map[uint][]CachedEntry),
		Metrics: make(map[uint][]CachedMetric),
	}
}
