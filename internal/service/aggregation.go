// Package service holds the business logic: auth, sync, aggregation and
// cached stats reads.
package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// Aggregation over stored runs. Everything in this file is pure: no I/O, no
// clock reads, deterministic for a given input slice.
//
// Weekly buckets use the UTC start instant; monthly buckets, streaks and
// leaderboards use the athlete's local wall clock, matching how runners think
// about "which day I ran".

// WeekGroup is one Monday-anchored week with at least one run
type WeekGroup struct {
	// Label is the ISO week label, e.g. "2026-W05"
	Label string        `json:"label"`
	Start time.Time     `json:"start"` // Monday 00:00:00 UTC
	End   time.Time     `json:"end"`   // the following Monday 00:00:00 UTC, exclusive
	Runs  []*models.Run `json:"runs"`
}

// MonthGroup is one "YYYY-MM" month with at least one run
type MonthGroup struct {
	Month string        `json:"month"`
	Runs  []*models.Run `json:"runs"`
}

// weekStart returns the Monday 00:00:00 UTC of the week containing t
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday numbers Sunday as 0; shift so Monday is 0
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}

// WeekRanges returns the Monday-anchored weeks overlapping the given year,
// oldest first. The first week may start in December of the previous year.
func WeekRanges(year int) []WeekGroup {
	start := weekStart(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	var weeks []WeekGroup
	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 7) {
		weeks = append(weeks, WeekGroup{
			Label: isoWeekLabel(cur),
			Start: cur,
			End:   cur.AddDate(0, 0, 7),
		})
	}
	return weeks
}

func isoWeekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// GroupRunsByWeek buckets runs into Monday-anchored half-open weeks
// [Monday, next Monday) by UTC start instant. A run starting exactly at
// Monday 00:00:00 UTC belongs to the week it opens. Weeks with no runs are
// omitted; groups and the runs within them come back oldest first.
func GroupRunsByWeek(runs []*models.Run) []WeekGroup {
	byStart := make(map[time.Time][]*models.Run)
	for _, run := range runs {
		ws := weekStart(run.StartDate)
		byStart[ws] = append(byStart[ws], run)
	}

	starts := make([]time.Time, 0, len(byStart))
	for ws := range byStart {
		starts = append(starts, ws)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	groups := make([]WeekGroup, 0, len(starts))
	for _, ws := range starts {
		weekRuns := byStart[ws]
		sort.SliceStable(weekRuns, func(i, j int) bool {
			return weekRuns[i].StartDate.Before(weekRuns[j].StartDate)
		})
		groups = append(groups, WeekGroup{
			Label: isoWeekLabel(ws),
			Start: ws,
			End:   ws.AddDate(0, 0, 7),
			Runs:  weekRuns,
		})
	}
	return groups
}

// GroupRunsByMonth buckets runs by the "YYYY-MM" of their local start date.
// Months and the runs within them come back oldest first.
func GroupRunsByMonth(runs []*models.Run) []MonthGroup {
	byMonth := make(map[string][]*models.Run)
	for _, run := range runs {
		key := monthKey(run.StartDateLocal)
		byMonth[key] = append(byMonth[key], run)
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]MonthGroup, 0, len(keys))
	for _, k := range keys {
		monthRuns := byMonth[k]
		sort.SliceStable(monthRuns, func(i, j int) bool {
			return monthRuns[i].StartDateLocal.Before(monthRuns[j].StartDateLocal)
		})
		groups = append(groups, MonthGroup{Month: k, Runs: monthRuns})
	}
	return groups
}

// monthKey formats a timestamp's month as "YYYY-MM". String sort order equals
// chronological order.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// LongestStreak returns the longest chain of consecutive local calendar days
// with at least one run. Multiple runs on the same day count once.
func LongestStreak(runs []*models.Run) int {
	if len(runs) == 0 {
		return 0
	}

	seen := make(map[time.Time]bool)
	for _, run := range runs {
		seen[run.LocalDate()] = true
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
	}
	return longest
}

// UniqueClubs returns the distinct club names among the runs in order of
// first appearance. Unclassified runs contribute nothing.
func UniqueClubs(runs []*models.Run) []string {
	seen := make(map[string]bool)
	var clubs []string
	for _, run := range runs {
		if run.ClubName == "" || seen[run.ClubName] {
			continue
		}
		seen[run.ClubName] = true
		clubs = append(clubs, run.ClubName)
	}
	return clubs
}

// ComputeLeaderboard aggregates runs into per-month ranked leaderboards.
// Within a month each user gets one row: run count, distinct run days, total
// km, total moving seconds, and average pace in minutes per km (0 for a
// zero-distance month, never a division by zero). Rows rank by run days
// descending, then total distance descending. Month blocks are ordered
// oldest-first for MonthAscending, newest-first for MonthDescending.
func ComputeLeaderboard(runs []*models.Run, userNames map[string]string, order types.MonthOrder) []types.MonthLeaderboard {
	type userAgg struct {
		runCount int
		days     map[time.Time]bool
		meters   float64
		seconds  int
	}

	byMonth := make(map[string]map[string]*userAgg)
	for _, run := range runs {
		month := monthKey(run.StartDateLocal)
		users, ok := byMonth[month]
		if !ok {
			users = make(map[string]*userAgg)
			byMonth[month] = users
		}
		agg, ok := users[run.UserID]
		if !ok {
			agg = &userAgg{days: make(map[time.Time]bool)}
			users[run.UserID] = agg
		}
		agg.runCount++
		agg.days[run.LocalDate()] = true
		agg.meters += run.Distance
		agg.seconds += run.MovingTime
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	if order == types.MonthDescending {
		for i, j := 0, len(months)-1; i < j; i, j = i+1, j-1 {
			months[i], months[j] = months[j], months[i]
		}
	}

	board := make([]types.MonthLeaderboard, 0, len(months))
	for _, month := range months {
		users := byMonth[month]

		rows := make([]types.LeaderboardRow, 0, len(users))
		for userID, agg := range users {
			km := agg.meters / 1000.0
			var pace float64
			if km > 0 {
				pace = (float64(agg.seconds) / 60.0) / km
			}
			rows = append(rows, types.LeaderboardRow{
				UserID:      userID,
				UserName:    userNames[userID],
				Month:       month,
				RunCount:    agg.runCount,
				RunDays:     len(agg.days),
				TotalKm:     km,
				TotalTime:   agg.seconds,
				AveragePace: pace,
			})
		}

		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].RunDays != rows[j].RunDays {
				return rows[i].RunDays > rows[j].RunDays
			}
			if rows[i].TotalKm != rows[j].TotalKm {
				return rows[i].TotalKm > rows[j].TotalKm
			}
			return rows[i].UserName < rows[j].UserName
		})

		board = append(board, types.MonthLeaderboard{Month: month, Rows: rows})
	}

	return board
}
