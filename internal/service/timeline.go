package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the ISO layout used for all stored dates.
const DateFormat = "2006-01-02"

// Review durations and allocation floors, in minutes. Reviews use a fixed
// policy per kind; a slot must have at least the floor left before an
// allocation of that kind is emitted.
const (
	rev24Minutes = 15
	rev7Minutes  = 60
	rev30Minutes = 120

	minReviewMinutes = 5
	minCycleMinutes  = 10
)

// buildTimeline merges history and plan dates into the virtual study
// timeline: distinct dates with any study activity, ascending.
func buildTimeline(history, plan []string) []string {
	seen := make(map[string]struct{}, len(history)+len(plan))
	out := make([]string, 0, len(history)+len(plan))
	for _, d := range history {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	for _, d := range plan {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// timelineIndex returns the zero-based position of date on the timeline.
func timelineIndex(timeline []string, date string) (int, bool) {
	i := sort.SearchStrings(timeline, date)
	if i < len(timeline) && timeline[i] == date {
		return i, true
	}
	return 0, false
}

// insertDate adds date to the timeline keeping it sorted. No-op when the
// date is already present.
func insertDate(timeline []string, date string) []string {
	i := sort.SearchStrings(timeline, date)
	if i < len(timeline) && timeline[i] == date {
		return timeline
	}
	timeline = append(timeline, "")
	copy(timeline[i+1:], timeline[i:])
	timeline[i] = date
	return timeline
}

// removeDate drops date from the timeline if present.
func removeDate(timeline []string, date string) []string {
	i := sort.SearchStrings(timeline, date)
	if i < len(timeline) && timeline[i] == date {
		return append(timeline[:i], timeline[i+1:]...)
	}
	return timeline
}

// reviewNeeds maps a timeline index to the review minutes due that day.
// Only the highest-priority due review fires: a 30-day review suppresses
// the 7-day one, and both suppress the 24-hour one. Index 0 (the first
// study day ever) owes nothing.
func reviewNeeds(index int) (need24, need7, need30 int) {
	switch {
	case index > 0 && index%30 == 0:
		need30 = rev30Minutes
	case index > 0 && index%7 == 0:
		need7 = rev7Minutes
	case index >= 1:
		need24 = rev24Minutes
	}
	return need24, need7, need30
}

// parseClock converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// formatClock renders minutes since midnight as "HH:MM:SS".
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// weekdayNumber maps a date to the stored weekday numbering, 1=Sunday
// through 7=Saturday.
func weekdayNumber(t time.Time) int {
	return int(t.Weekday()) + 1
}
