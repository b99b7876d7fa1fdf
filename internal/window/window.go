// Package window implements the time-of-day and day-of-week gate applied to
// progress and payment writes.
package window

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day in minutes since midnight.
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (24-hour).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(hour*60 + minute), nil
}

// ClockOf returns the minute of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is an inclusive daily time range restricted to a set of weekdays.
type Window struct {
	Start Clock
	End   Clock
	Days  []time.Weekday
}

// Default is the window applied when an admin enables a gate without
// choosing one: 09:00 to 17:00, Monday to Friday.
func Default() Window {
	return Window{
		Start: 9 * 60,
		End:   17 * 60,
		Days:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// Parse builds a validated window from wire values. Days use 0 for Sunday.
func Parse(start, end string, days []int) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	for _, d := range days {
		w.Days = append(w.Days, time.Weekday(d))
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	w.normalize()
	return w, nil
}

// Validate checks the bounds of the window.
func (w Window) Validate() error {
	if w.Start < 0 || w.Start >= minutesPerDay || w.End < 0 || w.End >= minutesPerDay {
		return fmt.Errorf("window times must be within 00:00-23:59")
	}
	if w.Start > w.End {
		return fmt.Errorf("window start %s is after end %s", w.Start, w.End)
	}
	for _, d := range w.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid day of week %d", d)
		}
	}
	return nil
}

func (w *Window) normalize() {
	slices.Sort(w.Days)
	w.Days = slices.Compact(w.Days)
}

// Allows reports whether now falls inside the window. Both bounds are
// inclusive at minute granularity.
func (w Window) Allows(now time.Time) bool {
	if !slices.Contains(w.Days, now.Weekday()) {
		return false
	}
	c := ClockOf(now)
	return c >= w.Start && c <= w.End
}

// IsOpen reports whether a gated write may proceed at now. A nil window
// never blocks.
func IsOpen(w *Window, now time.Time) bool {
	if w == nil {
		return true
	}
	return w.Allows(now)
}

// String renders the window as "Monday, Tuesday from 09:00 to 17:00".
func (w Window) String() string {
	names := make([]string, len(w.Days))
	for i, d := range w.Days {
		names[i] = d.String()
	}
	return fmt.Sprintf("%s from %s to %s", strings.Join(names, ", "), w.Start, w.End)
}

// DayNumbers returns the weekdays as integers, Sunday = 0.
func (w Window) DayNumbers() []int {
	out := make([]int, len(w.Days))
	for i, d := range w.Days {
		out[i] = int(d)
	}
	return out
}

type wireWindow struct {
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	DaysOfWeek []int  `json:"daysOfWeek"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireWindow{
		StartTime:  w.Start.String(),
		EndTime:    w.End.String(),
		DaysOfWeek: w.DayNumbers(),
	})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var ww wireWindow
	if err := json.Unmarshal(data, &ww); err != nil {
		return err
	}
	parsed, err := Parse(ww.StartTime, ww.EndTime, ww.DaysOfWeek)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
