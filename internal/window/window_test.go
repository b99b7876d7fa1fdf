package window

import (
	"encoding/json"
	"testing"
	"time"
)

// 2024-06-04 is a Tuesday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func weekdays() *Window {
	w := Default()
	return &w
}

// ============================================================
// Clock parsing
// ============================================================

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:00", 540, true},
		{"9:05", 545, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"1200", 0, false},
		{"ab:cd", 0, false},
		{"12:5", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseClock(%q): unexpected error %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClockString(t *testing.T) {
	if s := Clock(545).String(); s != "09:05" {
		t.Fatalf("got %q", s)
	}
}

// ============================================================
// Gate
// ============================================================

func TestIsOpenNilWindow(t *testing.T) {
	if !IsOpen(nil, at(8, 3, 0)) {
		t.Fatal("nil window must always be open")
	}
}

func TestIsOpenExamples(t *testing.T) {
	w := weekdays()
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"saturday morning", at(8, 10, 0), false},
		{"tuesday before close", at(4, 16, 59), true},
		{"tuesday after close", at(4, 17, 1), false},
		{"tuesday at close", at(4, 17, 0), true},
		{"tuesday at open", at(4, 9, 0), true},
		{"tuesday before open", at(4, 8, 59), false},
		{"sunday inside hours", at(9, 12, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOpen(w, tt.now); got != tt.want {
				t.Fatalf("IsOpen(%s) = %v, want %v", tt.now.Format(time.RFC1123), got, tt.want)
			}
		})
	}
}

func TestIsOpenSecondsWithinClosingMinute(t *testing.T) {
	now := time.Date(2024, 6, 4, 17, 0, 45, 0, time.UTC)
	if !IsOpen(weekdays(), now) {
		t.Fatal("17:00:45 is within the closing minute")
	}
}

func TestIsOpenExcludedDayNeverOpens(t *testing.T) {
	w := &Window{Start: 0, End: 1439, Days: []time.Weekday{time.Wednesday}}
	for d := 2; d <= 8; d++ {
		for h := 0; h < 24; h++ {
			now := at(d, h, 30)
			if now.Weekday() != time.Wednesday && IsOpen(w, now) {
				t.Fatalf("open on excluded day %s", now.Weekday())
			}
		}
	}
}

func TestIsOpenUsesTimeLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 12:00 UTC Tuesday is 17:30 IST, after close.
	now := time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC).In(loc)
	if IsOpen(weekdays(), now) {
		t.Fatal("expected closed in site time zone")
	}
}

func TestIsOpenNoDays(t *testing.T) {
	w := &Window{Start: 0, End: 1439}
	if IsOpen(w, at(4, 12, 0)) {
		t.Fatal("window without days must be closed")
	}
}

// ============================================================
// Parse / Validate
// ============================================================

func TestParse(t *testing.T) {
	w, err := Parse("09:00", "17:00", []int{3, 1, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if w.Start != 540 || w.End != 1020 {
		t.Fatalf("bounds: %d-%d", w.Start, w.End)
	}
	if len(w.Days) != 3 || w.Days[0] != time.Monday || w.Days[2] != time.Wednesday {
		t.Fatalf("days not normalized: %v", w.Days)
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse("17:00", "09:00", []int{1}); err == nil {
		t.Fatal("expected error for start after end")
	}
	if _, err := Parse("09:00", "17:00", []int{7}); err == nil {
		t.Fatal("expected error for day 7")
	}
	if _, err := Parse("9am", "17:00", nil); err == nil {
		t.Fatal("expected error for bad clock")
	}
}

func TestString(t *testing.T) {
	w, _ := Parse("09:00", "17:00", []int{1, 2})
	if got := w.String(); got != "Monday, Tuesday from 09:00 to 17:00" {
		t.Fatalf("got %q", got)
	}
}

// ============================================================
// JSON
// ============================================================

func TestJSONWireFormat(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"startTime":"09:00","endTime":"17:00","daysOfWeek":[1,2,3,4,5]}`
	if string(data) != want {
		t.Fatalf("got %s", data)
	}

	var w Window
	if err := json.Unmarshal([]byte(`{"startTime":"08:30","endTime":"12:00","daysOfWeek":[6]}`), &w); err != nil {
		t.Fatal(err)
	}
	if w.Start != 510 || w.End != 720 || len(w.Days) != 1 || w.Days[0] != time.Saturday {
		t.Fatalf("decoded %+v", w)
	}
}

func TestJSONRejectsInvalid(t *testing.T) {
	var w Window
	if err := json.Unmarshal([]byte(`{"startTime":"18:00","endTime":"08:00","daysOfWeek":[1]}`), &w); err == nil {
		t.Fatal("expected error")
	}
}

func TestJSONNilPointer(t *testing.T) {
	var holder struct {
		W *Window `json:"w,omitempty"`
	}
	data, _ := json.Marshal(holder)
	if string(data) != `{}` {
		t.Fatalf("got %s", data)
	}
}
