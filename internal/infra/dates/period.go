package dates

import (
	"strings"
	"time"
)

// Named periods accepted by Range.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodThisWeek  = "this week"
	PeriodLastWeek  = "last week"
	PeriodThisMonth = "this month"
	PeriodLastMonth = "last month"
)

// Range resolves a named period into a DayLayout pair. Weeks start on
// Monday. ok is false for unrecognized input.
func (r *Resolver) Range(period string) (from, to string, ok bool) {
	now := r.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)

	var start, end time.Time
	switch normalizePeriod(period) {
	case PeriodToday:
		start, end = today, today
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		start, end = y, y
	case PeriodThisWeek:
		start, end = weekStart(today), today
	case PeriodLastWeek:
		monday := weekStart(today)
		start, end = monday.AddDate(0, 0, -7), monday.AddDate(0, 0, -1)
	case PeriodThisMonth:
		start, end = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.loc), today
	case PeriodLastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.loc)
		start, end = first.AddDate(0, -1, 0), first.AddDate(0, 0, -1)
	default:
		return "", "", false
	}
	return start.Format(DayLayout), end.Format(DayLayout), true
}

// Window picks the date range for a listing. Explicit dates win over the
// period; a lone to date also becomes from, a lone from date runs to today.
// With neither and no recognizable period the range is today.
func (r *Resolver) Window(period, from, to string) (string, string) {
	from, to = NormalizeDay(from), NormalizeDay(to)
	today := r.Now().Format(DayLayout)

	switch {
	case from != "" && to != "":
		return from, to
	case from != "":
		return from, today
	case to != "":
		return to, to
	}

	if f, t, ok := r.Range(period); ok {
		return f, t
	}
	if strings.TrimSpace(period) != "" {
		r.logger.Debug("unknown period, defaulting to today", "period", period)
	}
	return today, today
}

// Today returns today's date in DayLayout.
func (r *Resolver) Today() string {
	return r.Now().Format(DayLayout)
}

// NormalizeDay converts a dash-separated date to the slash form the backend
// requires and drops any time component.
func NormalizeDay(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "-", "/")
}

func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func normalizePeriod(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	p = strings.NewReplacer("_", " ", "-", " ").Replace(p)
	return strings.Join(strings.Fields(p), " ")
}
