package schedule

import (
	"testing"
	"time"
)

func TestIntervalNextFire(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	tr := Trigger{Kind: TriggerInterval, Every: time.Minute}

	if got := tr.NextFire(time.Time{}, start, true, time.UTC); !got.Equal(start) {
		t.Fatalf("run_on_start first fire = %v, want %v", got, start)
	}
	if got := tr.NextFire(time.Time{}, start, false, time.UTC); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("first fire = %v, want %v", got, start.Add(time.Minute))
	}
	last := start.Add(5 * time.Minute)
	if got := tr.NextFire(last, start, true, time.UTC); !got.Equal(last.Add(time.Minute)) {
		t.Fatalf("steady-state fire = %v, want %v", got, last.Add(time.Minute))
	}
}

func TestCalendarNextFire(t *testing.T) {
	t.Parallel()
	w, err := ParseWhen("Wednesday 5:00pm")
	if err != nil {
		t.Fatalf("ParseWhen: %v", err)
	}
	tr := Trigger{Kind: TriggerCalendar, When: []WhenExpr{w}}

	// Tuesday 10am, never fired: next occurrence is Wednesday 17:00.
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	want := time.Date(2026, 8, 26, 17, 0, 0, 0, time.UTC)
	if got := tr.NextFire(time.Time{}, start, true, time.UTC); !got.Equal(want) {
		t.Fatalf("next = %v, want %v", got, want)
	}
	// After that fire, the following one is a week later.
	if got := tr.NextFire(want, start, true, time.UTC); !got.Equal(want.AddDate(0, 0, 7)) {
		t.Fatalf("next = %v, want %v", got, want.AddDate(0, 0, 7))
	}
}

func TestCronNextFire(t *testing.T) {
	t.Parallel()
	sch, err := cronParser.Parse("*/15 * * * *")
	if err != nil {
		t.Fatalf("cron parse: %v", err)
	}
	tr := Trigger{Kind: TriggerCron, CronExpr: "*/15 * * * *", cronSch: sch}

	ref := time.Date(2026, 8, 25, 10, 7, 0, 0, time.UTC)
	want := time.Date(2026, 8, 25, 10, 15, 0, 0, time.UTC)
	if got := tr.NextFire(ref, ref, true, time.UTC); !got.Equal(want) {
		t.Fatalf("next = %v, want %v", got, want)
	}
}

func TestWindowContains(t *testing.T) {
	t.Parallel()
	day := func(h, m int) time.Time {
		return time.Date(2026, 8, 25, h, m, 0, 0, time.UTC)
	}
	tests := []struct {
		name string
		w    Window
		at   time.Time
		want bool
	}{
		{name: "inside", w: Window{Start: DayTime{8, 0}, End: DayTime{17, 0}}, at: day(12, 0), want: true},
		{name: "before start", w: Window{Start: DayTime{8, 0}, End: DayTime{17, 0}}, at: day(7, 59), want: false},
		{name: "end exclusive", w: Window{Start: DayTime{8, 0}, End: DayTime{17, 0}}, at: day(17, 0), want: false},
		{name: "inverted inside", w: Window{Start: DayTime{8, 0}, End: DayTime{17, 0}, Invert: true}, at: day(12, 0), want: false},
		{name: "inverted outside", w: Window{Start: DayTime{8, 0}, End: DayTime{17, 0}, Invert: true}, at: day(18, 0), want: true},
		{name: "overnight late evening", w: Window{Start: DayTime{22, 0}, End: DayTime{6, 0}}, at: day(23, 30), want: true},
		{name: "overnight early morning", w: Window{Start: DayTime{22, 0}, End: DayTime{6, 0}}, at: day(5, 0), want: true},
		{name: "overnight daytime", w: Window{Start: DayTime{22, 0}, End: DayTime{6, 0}}, at: day(12, 0), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Contains(tt.at, time.UTC); got != tt.want {
				t.Fatalf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestInWindowWithoutWindow(t *testing.T) {
	t.Parallel()
	tr := Trigger{Kind: TriggerInterval, Every: time.Minute}
	if !tr.InWindow(time.Now(), time.UTC) {
		t.Fatal("trigger without a window must always dispatch")
	}
}
