package goal

import (
	"fmt"
	"math"
	"time"

	"finsight/internal/core"
)

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
	StatusOnTrack    Status = "on_track"
	StatusAtRisk     Status = "at_risk"
	StatusInProgress Status = "in_progress"
)

const (
	day = 24 * time.Hour

	// A goal this close to its deadline and at least this far along is
	// on track regardless of its savings velocity.
	finalStretchDays = 7
	finalStretchPct  = 90.0

	daysPerMonth = 30

	earlyFinishWeeks     = 2
	earlyFinishMinWeeks  = 2.5
	earlyFinishMaxAmount = 1_000_000.0
)

// Summary is a goal with its derived progress figures. Rates are expressed
// in currency units.
type Summary struct {
	core.Goal
	Percentage        float64
	Status            Status
	DaysRemaining     *int
	DaysElapsed       int
	DailyRateNeeded   *float64
	MonthlyRateNeeded *float64
}

// Summarize derives progress and status for g as of now. It has no side
// effects. Status is decided on unrounded figures; only the reported
// values are rounded.
func Summarize(g core.Goal, now time.Time) Summary {
	s := Summary{Goal: g}

	var ratio float64
	if g.TargetAmount.Cents > 0 {
		ratio = float64(g.CurrentAmount.Cents) * 100 / float64(g.TargetAmount.Cents)
	}
	s.Percentage = round2(math.Max(0, math.Min(ratio, 100)))

	s.DaysElapsed = int(math.Floor(now.Sub(g.CreatedAt).Hours() / 24))
	if s.DaysElapsed < 1 {
		s.DaysElapsed = 1
	}

	var dailyNeeded *float64
	if g.Deadline != nil {
		d := int(math.Ceil(g.Deadline.Sub(now).Hours() / 24))
		s.DaysRemaining = &d

		if d > 0 && ratio < 100 {
			raw := g.TargetAmount.Sub(g.CurrentAmount).Float64() / float64(d)
			dailyNeeded = &raw
			daily := round2(raw)
			monthly := round2(raw * daysPerMonth)
			s.DailyRateNeeded = &daily
			s.MonthlyRateNeeded = &monthly
		}
	}

	s.Status = status(s, ratio, dailyNeeded)
	return s
}

// status evaluates the state machine in precedence order on the raw
// completion ratio and required daily rate.
func status(s Summary, ratio float64, dailyNeeded *float64) Status {
	switch {
	case ratio >= 100:
		return StatusCompleted
	case s.DaysRemaining == nil:
		return StatusInProgress
	case *s.DaysRemaining < 0:
		return StatusOverdue
	case *s.DaysRemaining == 0:
		return StatusAtRisk
	}

	if *s.DaysRemaining <= finalStretchDays && ratio >= finalStretchPct {
		return StatusOnTrack
	}
	actualDaily := s.CurrentAmount.Float64() / float64(s.DaysElapsed)
	if dailyNeeded != nil && actualDaily >= *dailyNeeded {
		return StatusOnTrack
	}
	return StatusAtRisk
}

// EarlyFinishNudges suggests how much more per week would finish each
// eligible goal two weeks before its deadline.
func EarlyFinishNudges(summaries []Summary) []core.Nudge {
	var out []core.Nudge
	for _, s := range summaries {
		if s.Status != StatusOnTrack && s.Status != StatusAtRisk {
			continue
		}
		if s.DaysRemaining == nil {
			continue
		}

		weeks := float64(*s.DaysRemaining) / 7
		if weeks < earlyFinishMinWeeks {
			continue
		}
		denom := weeks - earlyFinishWeeks
		if denom <= 0 {
			continue
		}

		remaining := s.TargetAmount.Sub(s.CurrentAmount).Float64()
		requiredWeekly := remaining / weeks
		weeklyToFinishEarly := remaining / denom
		extra := round2(weeklyToFinishEarly - requiredWeekly)
		if extra <= 0 || extra >= earlyFinishMaxAmount {
			continue
		}

		out = append(out, core.Nudge{
			ID:   "goal-early-" + s.ID,
			Type: core.NudgeFinishEarly,
			Message: fmt.Sprintf("Save %.2f more per week to reach %q %d weeks early.",
				extra, s.Name, earlyFinishWeeks),
			Severity: core.SeverityInfo,
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
