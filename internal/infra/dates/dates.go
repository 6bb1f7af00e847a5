// Package dates resolves natural-language date expressions into the fixed
// formats the business backend accepts.
package dates

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const (
	// InstantLayout is the backend's date-time format.
	InstantLayout = "2006-01-02T15:04:05.000-0700"
	// DayLayout is the backend's date format for ranges.
	DayLayout = "2006/01/02"
)

// Layouts carrying their own offset; the offset is preserved.
var zonedLayouts = []string{
	InstantLayout,
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

// Layouts interpreted in the resolver's location. Input is upper-cased and
// stripped of commas before matching.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 3PM",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02 3:04 PM",
	"2006/01/02",
	"Jan 2 2006 3:04 PM",
	"Jan 2 2006 3:04PM",
	"Jan 2 2006 3PM",
	"Jan 2 2006 15:04",
	"Jan 2 2006",
	"January 2 2006 3:04 PM",
	"January 2 2006",
	"2 Jan 2006 3:04 PM",
	"2 Jan 2006",
	"2 January 2006",
}

// Layouts without a year; they resolve to the nearest future occurrence.
var yearlessLayouts = []string{
	"Jan 2 3:04 PM",
	"Jan 2 3:04PM",
	"Jan 2 3PM",
	"Jan 2 15:04",
	"Jan 2",
	"January 2 3:04 PM",
	"January 2 3PM",
	"January 2",
	"2 Jan 3:04 PM",
	"2 Jan",
	"2 January",
}

var (
	weekdayExact     = regexp.MustCompile(`^(?:(?:next|on)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	nextWeekdayLoose = regexp.MustCompile(`\bnext\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	spaces           = regexp.MustCompile(`\s+`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Resolver turns free-form date text into canonical backend values.
// It is safe for concurrent use.
type Resolver struct {
	loc    *time.Location
	now    func() time.Time
	parser *when.Parser
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLocation sets the zone used for "today" and zone-less input.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a Resolver. The default location is UTC.
func New(logger *slog.Logger, opts ...Option) *Resolver {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)

	r := &Resolver{
		loc:    time.UTC,
		now:    time.Now,
		parser: p,
		logger: logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Now returns the current time in the resolver's location.
func (r *Resolver) Now() time.Time {
	return r.now().In(r.loc)
}

// Location returns the resolver's zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Instant resolves text to InstantLayout. Unparseable or empty input yields
// the current time and a warning; it never fails.
func (r *Resolver) Instant(text string) string {
	if t, ok := r.ParseInstant(text); ok {
		return Format(t)
	}
	if strings.TrimSpace(text) != "" {
		r.logger.Warn("date not understood, using now", "input", text)
	}
	return Format(r.Now())
}

// ParseInstant resolves text without falling back to now.
func (r *Resolver) ParseInstant(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	now := r.Now()

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}

	norm := strings.ToUpper(spaces.ReplaceAllString(strings.ReplaceAll(text, ",", " "), " "))
	norm = strings.TrimSpace(norm)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, norm, r.loc); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.ParseInLocation(layout, norm, r.loc); err == nil {
			return futureYear(t, now), true
		}
	}

	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	// A bare weekday means its next occurrence.
	if m := weekdayExact.FindStringSubmatch(lower); m != nil {
		return NextWeekday(now, weekdays[m[1]]), true
	}

	if res, err := r.parser.Parse(text, now); err == nil && res != nil {
		return res.Time.In(r.loc), true
	} else if err != nil {
		r.logger.Debug("natural date parse failed", "input", text, "error", err)
	}

	if m := nextWeekdayLoose.FindStringSubmatch(lower); m != nil {
		return NextWeekday(now, weekdays[m[1]]), true
	}
	return time.Time{}, false
}

// Format renders t in InstantLayout with whole seconds.
func Format(t time.Time) string {
	return t.Truncate(time.Second).Format(InstantLayout)
}

// NextWeekday returns the next occurrence of wd strictly after now, keeping
// now's clock time.
func NextWeekday(now time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return now.AddDate(0, 0, ahead)
}

// futureYear places a year-less date in the current year, or the next one
// when that day has already passed.
func futureYear(t, now time.Time) time.Time {
	t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if t.Before(today) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}
