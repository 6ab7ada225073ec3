package injury

import (
	"time"
)

const (
	// MonitorLead is how long before a window's first kickoff monitoring begins.
	MonitorLead = 2 * time.Hour
	// AlertBefore and AlertAfter bound the alertable span around a kickoff.
	AlertBefore = 120 * time.Minute
	AlertAfter  = 30 * time.Minute
)

// Schedule answers kickoff questions in a league's local time.
type Schedule interface {
	// Kickoff returns the kickoff of the team's nearest relevant game. A game
	// stays relevant until AlertAfter past its kickoff.
	Kickoff(team string, now time.Time, loc *time.Location) (time.Time, bool)
	// NextKickoff returns the first kickoff at or after now.
	NextKickoff(now time.Time, loc *time.Location) (time.Time, bool)
	// InWindow reports whether now falls inside a monitoring window.
	InWindow(now time.Time, loc *time.Location) bool
}

// GameWindow is a recurring weekly slot of games. Hours are local to the league.
type GameWindow struct {
	Name      string
	Day       time.Weekday
	StartHour int
	EndHour   int
}

// DefaultWindows approximates the NFL week.
var DefaultWindows = []GameWindow{
	{Name: "thursday_night", Day: time.Thursday, StartHour: 18, EndHour: 23},
	{Name: "sunday_early", Day: time.Sunday, StartHour: 12, EndHour: 15},
	{Name: "sunday_late", Day: time.Sunday, StartHour: 15, EndHour: 18},
	{Name: "sunday_night", Day: time.Sunday, StartHour: 18, EndHour: 20},
	{Name: "monday_night", Day: time.Monday, StartHour: 18, EndHour: 23},
}

// WindowSchedule treats every game in a window as kicking off at the window
// start. It has no per-team data, so Kickoff ignores the team.
type WindowSchedule struct {
	windows []GameWindow
}

func NewWindowSchedule(windows ...GameWindow) *WindowSchedule {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	return &WindowSchedule{windows: windows}
}

type occurrence struct {
	start, end time.Time
}

// occurrences lists each window's slot in the previous, current and next week
// relative to now.
func (s *WindowSchedule) occurrences(now time.Time, loc *time.Location) []occurrence {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	out := make([]occurrence, 0, len(s.windows)*3)
	for _, w := range s.windows {
		offset := int(w.Day) - int(local.Weekday())
		for _, week := range []int{-7, 0, 7} {
			day := local.Day() + offset + week
			start := time.Date(local.Year(), local.Month(), day, w.StartHour, 0, 0, 0, loc)
			end := time.Date(local.Year(), local.Month(), day, w.EndHour, 0, 0, 0, loc)
			out = append(out, occurrence{start: start, end: end})
		}
	}
	return out
}

func (s *WindowSchedule) Kickoff(_ string, now time.Time, loc *time.Location) (time.Time, bool) {
	return s.firstStartAfter(now.Add(-AlertAfter), loc)
}

func (s *WindowSchedule) NextKickoff(now time.Time, loc *time.Location) (time.Time, bool) {
	return s.firstStartAfter(now, loc)
}

func (s *WindowSchedule) InWindow(now time.Time, loc *time.Location) bool {
	for _, o := range s.occurrences(now, loc) {
		if !now.Before(o.start.Add(-MonitorLead)) && !now.After(o.end) {
			return true
		}
	}
	return false
}

func (s *WindowSchedule) firstStartAfter(t time.Time, loc *time.Location) (time.Time, bool) {
	var best time.Time
	found := false
	for _, o := range s.occurrences(t, loc) {
		if o.start.Before(t) {
			continue
		}
		if !found || o.start.Before(best) {
			best = o.start
			found = true
		}
	}
	return best, found
}
