package period

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateKeyRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "2025-13-01", "2025-02-30", "20250101", "abc"}
	for _, raw := range cases {
		if _, err := ParseDateKey(raw); !errors.Is(err, ErrInvalidDateKey) {
			t.Fatalf("expected ErrInvalidDateKey for %q, got %v", raw, err)
		}
	}

	key, err := ParseDateKey("2025-06-15")
	if err != nil {
		t.Fatalf("ParseDateKey returned error: %v", err)
	}
	if key != "2025-06-15" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestToLogicalDateUsesReferenceTimezone(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// UTC 晚上 22 点在上海已是次日
	ts := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)

	if got := ToLogicalDate(ts, time.UTC); got != "2025-03-10" {
		t.Fatalf("UTC logical date = %s", got)
	}
	if got := ToLogicalDate(ts, shanghai); got != "2025-03-11" {
		t.Fatalf("Shanghai logical date = %s", got)
	}
	if got := ToLogicalDate(ts, nil); got != "2025-03-10" {
		t.Fatalf("nil location should fall back to UTC, got %s", got)
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name       string
		periodType PeriodType
		anchor     DateKey
		wantStart  DateKey
		wantEnd    DateKey
	}{
		{"daily", Daily, "2025-06-15", "2025-06-15", "2025-06-15"},
		{"weekly midweek", Weekly, "2025-06-11", "2025-06-09", "2025-06-15"},
		{"weekly on monday", Weekly, "2025-06-09", "2025-06-09", "2025-06-15"},
		{"weekly on sunday", Weekly, "2025-06-15", "2025-06-09", "2025-06-15"},
		{"monthly", Monthly, "2025-06-15", "2025-06-01", "2025-06-30"},
		{"monthly february leap", Monthly, "2024-02-10", "2024-02-01", "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Bounds(tt.periodType, tt.anchor)
			if err != nil {
				t.Fatalf("Bounds returned error: %v", err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Fatalf("Bounds = %s..%s, want %s..%s", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}

	if _, _, err := Bounds("yearly", "2025-06-15"); err == nil {
		t.Fatal("expected error for unsupported period type")
	}
}

func TestPrev(t *testing.T) {
	tests := []struct {
		periodType PeriodType
		anchor     DateKey
		want       DateKey
	}{
		{Daily, "2025-03-01", "2025-02-28"},
		{Weekly, "2025-06-11", "2025-06-02"},
		{Monthly, "2025-01-15", "2024-12-01"},
	}

	for _, tt := range tests {
		got, err := Prev(tt.periodType, tt.anchor)
		if err != nil {
			t.Fatalf("Prev returned error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("Prev(%s, %s) = %s, want %s", tt.periodType, tt.anchor, got, tt.want)
		}
	}
}

func TestDateKeyOrdering(t *testing.T) {
	// 字符串字典序即日期序，过期判定依赖这一点
	if !(DateKey("2025-01-31") < DateKey("2025-02-01")) {
		t.Fatal("date key ordering broken")
	}
}
