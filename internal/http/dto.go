package http

import (
	"encoding/json"
	"fmt"
	"time"

	"finsight/internal/budget"
	"finsight/internal/core"
	"finsight/internal/goal"
	"finsight/internal/nudge"
)

// Amounts travel as JSON numbers in currency units.

type transactionRequest struct {
	UserID       string     `json:"userId"`
	Amount       *Amount    `json:"amount"`
	Type         string     `json:"type"`
	Date         *Timestamp `json:"date"`
	Description  string     `json:"description"`
	CategoryID   *int64     `json:"categoryId"`
	IncomeSource string     `json:"incomeSource"`
}

type recategorizeRequest struct {
	CategorySlug string `json:"categorySlug"`
}

type budgetRequest struct {
	UserID      string     `json:"userId"`
	CategoryID  *int64     `json:"categoryId"`
	LimitAmount *Amount    `json:"limitAmount"`
	Period      string     `json:"period"`
	StartAt     *Timestamp `json:"startAt"`
	EndAt       *Timestamp `json:"endAt"`
}

type budgetPatch struct {
	CategoryID  optionalID `json:"categoryId"`
	LimitAmount *Amount    `json:"limitAmount"`
	Period      *string    `json:"period"`
	StartAt     *Timestamp `json:"startAt"`
	EndAt       *Timestamp `json:"endAt"`
}

// optionalID tells an absent field from an explicit null: absent leaves
// the category alone, null makes a budget overall.
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("categoryId must be an integer or null: %w", err)
	}
	o.Value = &id
	return nil
}

type goalRequest struct {
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	TargetAmount *Amount    `json:"targetAmount"`
	Deadline     *Timestamp `json:"deadline"`
}

type amountRequest struct {
	Amount *Amount `json:"amount"`
}

type categoryResponse struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type transactionResponse struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	Amount              float64   `json:"amount"`
	Type                string    `json:"type"`
	Date                time.Time `json:"date"`
	Description         string    `json:"description"`
	CategoryID          *int64    `json:"categoryId"`
	SuggestedCategoryID *int64    `json:"suggestedCategoryId"`
	CategoryConfidence  *float64  `json:"categoryConfidence"`
	IncomeSource        string    `json:"incomeSource,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

type budgetResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CategoryID     *int64    `json:"categoryId"`
	CategorySlug   string    `json:"categorySlug,omitempty"`
	CategoryName   string    `json:"categoryName,omitempty"`
	LimitAmount    float64   `json:"limitAmount"`
	Period         string    `json:"period"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	CreatedAt      time.Time `json:"createdAt"`
	TotalSpent     float64   `json:"totalSpent"`
	Remaining      float64   `json:"remaining"`
	PercentageUsed float64   `json:"percentageUsed"`
	AlertStatus    string    `json:"alertStatus"`
	IsSocial       bool      `json:"isSocial"`
}

type goalResponse struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Name              string     `json:"name"`
	TargetAmount      float64    `json:"targetAmount"`
	CurrentAmount     float64    `json:"currentAmount"`
	Deadline          *time.Time `json:"deadline"`
	CreatedAt         time.Time  `json:"createdAt"`
	Percentage        float64    `json:"percentage"`
	Status            string     `json:"status"`
	DaysRemaining     *int       `json:"daysRemaining"`
	DaysElapsed       int        `json:"daysElapsed"`
	DailyRateNeeded   *float64   `json:"dailyRateNeeded"`
	MonthlyRateNeeded *float64   `json:"monthlyRateNeeded"`
}

type alertsResponse struct {
	BudgetAlerts []budgetResponse `json:"budgetAlerts"`
	Nudges       []core.Nudge     `json:"nudges"`
}

func toCategory(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Slug: c.Slug, Name: c.Name, Color: c.Color}
}

func toTransaction(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                  t.ID,
		UserID:              t.UserID,
		Amount:              t.Amount.Float64(),
		Type:                string(t.Type),
		Date:                t.Date,
		Description:         t.Description,
		CategoryID:          t.CategoryID,
		SuggestedCategoryID: t.SuggestedCategoryID,
		CategoryConfidence:  t.CategoryConfidence,
		IncomeSource:        t.IncomeSource,
		CreatedAt:           t.CreatedAt,
	}
}

func toBudget(s budget.Summary) budgetResponse {
	return budgetResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		CategoryID:     s.CategoryID,
		CategorySlug:   s.CategorySlug,
		CategoryName:   s.CategoryName,
		LimitAmount:    s.LimitAmount.Float64(),
		Period:         string(s.Period),
		StartAt:        s.StartAt,
		EndAt:          s.EndAt,
		CreatedAt:      s.CreatedAt,
		TotalSpent:     s.TotalSpent.Float64(),
		Remaining:      s.Remaining.Float64(),
		PercentageUsed: s.PercentageUsed,
		AlertStatus:    string(s.AlertStatus),
		IsSocial:       s.IsSocial,
	}
}

func toGoal(s goal.Summary) goalResponse {
	return goalResponse{
		ID:                s.ID,
		UserID:            s.UserID,
		Name:              s.Name,
		TargetAmount:      s.TargetAmount.Float64(),
		CurrentAmount:     s.CurrentAmount.Float64(),
		Deadline:          s.Deadline,
		CreatedAt:         s.CreatedAt,
		Percentage:        s.Percentage,
		Status:            string(s.Status),
		DaysRemaining:     s.DaysRemaining,
		DaysElapsed:       s.DaysElapsed,
		DailyRateNeeded:   s.DailyRateNeeded,
		MonthlyRateNeeded: s.MonthlyRateNeeded,
	}
}

func toAlerts(a nudge.Alerts) alertsResponse {
	return alertsResponse{BudgetAlerts: mapSlice(a.BudgetAlerts, toBudget), Nudges: a.Nudges}
}

// mapSlice never returns nil so empty lists encode as [].
func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
