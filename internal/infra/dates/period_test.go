package dates

import (
	"testing"
	"time"
)

func TestRange(t *testing.T) {
	// Sunday, first day of March in a non-leap year.
	r := newTestResolver(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))

	tests := []struct {
		period   string
		from, to string
	}{
		{"today", "2026/03/01", "2026/03/01"},
		{"Yesterday", "2026/02/28", "2026/02/28"},
		{"this week", "2026/02/23", "2026/03/01"},
		{"this_week", "2026/02/23", "2026/03/01"},
		{"LAST WEEK", "2026/02/16", "2026/02/22"},
		{"this month", "2026/03/01", "2026/03/01"},
		{"last month", "2026/02/01", "2026/02/28"},
		{"last-month", "2026/02/01", "2026/02/28"},
	}
	for _, tt := range tests {
		from, to, ok := r.Range(tt.period)
		if !ok {
			t.Errorf("Range(%q) not recognized", tt.period)
			continue
		}
		if from != tt.from || to != tt.to {
			t.Errorf("Range(%q) = (%s, %s), want (%s, %s)", tt.period, from, to, tt.from, tt.to)
		}
	}
}

func TestRangeLastMonthLeapYear(t *testing.T) {
	r := newTestResolver(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	from, to, ok := r.Range("last month")
	if !ok || from != "2024/02/01" || to != "2024/02/29" {
		t.Errorf("Range(last month) = (%s, %s, %v)", from, to, ok)
	}
}

func TestRangeMidWeek(t *testing.T) {
	// Wednesday.
	r := newTestResolver(time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC))
	from, to, _ := r.Range("this week")
	if from != "2026/03/02" || to != "2026/03/04" {
		t.Errorf("this week = (%s, %s)", from, to)
	}
	from, to, _ = r.Range("last week")
	if from != "2026/02/23" || to != "2026/03/01" {
		t.Errorf("last week = (%s, %s)", from, to)
	}
}

func TestRangeUnknown(t *testing.T) {
	r := newTestResolver(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range []string{"", "next quarter", "fortnight"} {
		from, to, ok := r.Range(p)
		if ok || from != "" || to != "" {
			t.Errorf("Range(%q) = (%q, %q, %v), want empty", p, from, to, ok)
		}
	}
}

func TestWindow(t *testing.T) {
	r := newTestResolver(time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC))

	tests := []struct {
		name             string
		period, from, to string
		wantFrom, wantTo string
	}{
		{"explicit dates beat period", "today", "2025-11-01", "2025-11-30", "2025/11/01", "2025/11/30"},
		{"slash dates pass through", "", "2025/11/01", "2025/11/30", "2025/11/01", "2025/11/30"},
		{"from only runs to today", "", "2026-03-01", "", "2026/03/01", "2026/03/04"},
		{"to only is a single day", "", "", "2026-02-10", "2026/02/10", "2026/02/10"},
		{"named period", "yesterday", "", "", "2026/03/03", "2026/03/03"},
		{"unknown period", "someday", "", "", "2026/03/04", "2026/03/04"},
		{"nothing", "", "", "", "2026/03/04", "2026/03/04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := r.Window(tt.period, tt.from, tt.to)
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("Window = (%s, %s), want (%s, %s)", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestNormalizeDay(t *testing.T) {
	tests := map[string]string{
		"2025-11-01":                   "2025/11/01",
		"2025/11/01":                   "2025/11/01",
		" 2025-11-01 ":                 "2025/11/01",
		"2025-11-01T10:00:00.000+0000": "2025/11/01",
		"":                             "",
	}
	for in, want := range tests {
		if got := NormalizeDay(in); got != want {
			t.Errorf("NormalizeDay(%q) = %q, want %q", in, got, want)
		}
	}
}
