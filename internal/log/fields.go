package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldBudgetID    = "budget_id"
	FieldGoalID      = "goal_id"
	FieldTxID        = "transaction_id"
	FieldCategory    = "category"
	FieldConfidence  = "confidence"
	FieldAmountCents = "amount_cents"
	FieldEndpoint    = "endpoint"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentClassifier = "classifier"
	ComponentBudget     = "budget"
	ComponentGoal       = "goal"
	ComponentInsight    = "insight"
	ComponentNudge      = "nudge"
	ComponentLedger     = "ledger"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpClassify = "classify"
	OpPing     = "ping"
	OpFeedback = "feedback"
	OpAllocate = "allocate"
	OpWithdraw = "withdraw"
	OpAlerts   = "alerts"
	OpInsights = "insights"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
