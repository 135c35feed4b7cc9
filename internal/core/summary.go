package core

// Severity orders advisory messages for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Nudge is a derived advisory message. Insights share the same shape.
// Nudges are rebuilt from ledger state on every request and never stored.
type Nudge struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Insight is the insights-page name for a Nudge.
type Insight = Nudge

const (
	NudgeWeekendSpending = "weekend_spending"
	NudgeCategorySpike   = "category_spike"
	NudgeUnderBudget     = "under_budget"
	NudgeFinishEarly     = "goal_finish_early"
)
