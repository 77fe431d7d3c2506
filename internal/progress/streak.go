package progress

import (
	"time"

	"github.com/pavelanni/recall/internal/model"
)

func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse(model.DayLayout, s)
	return t, err == nil
}

func shiftDay(s string, days int) string {
	t, ok := parseDay(s)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, days).Format(model.DayLayout)
}

func activeDays(history []model.DailyStat) map[string]bool {
	active := make(map[string]bool, len(history))
	for _, d := range history {
		if d.QuestionsAnswered > 0 {
			active[d.Date] = true
		}
	}
	return active
}

// CurrentStreak counts consecutive active days ending today, or ending
// yesterday when today has no answers yet.
func CurrentStreak(history []model.DailyStat, today string) int {
	active := activeDays(history)
	day := today
	if !active[day] {
		day = shiftDay(today, -1)
	}
	n := 0
	for active[day] {
		n++
		day = shiftDay(day, -1)
	}
	return n
}

// LongestStreak returns the longest run of consecutive active days.
// History must be ordered oldest first.
func LongestStreak(history []model.DailyStat) int {
	longest, run := 0, 0
	var prev time.Time
	for _, d := range history {
		if d.QuestionsAnswered <= 0 {
			continue
		}
		t, ok := parseDay(d.Date)
		if !ok {
			continue
		}
		if run > 0 && t.Equal(prev.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		prev = t
		longest = max(longest, run)
	}
	return longest
}

// Calendar returns n consecutive days ending today, oldest first, with days
// missing from history reported as zero.
func Calendar(history []model.DailyStat, today string, n int) []model.DailyStat {
	byDate := make(map[string]model.DailyStat, len(history))
	for _, d := range history {
		byDate[d.Date] = d
	}
	out := make([]model.DailyStat, n)
	for i := range n {
		date := shiftDay(today, i-n+1)
		d, ok := byDate[date]
		if !ok {
			d = model.DailyStat{Date: date}
		}
		out[i] = d.WithAccuracy()
	}
	return out
}
