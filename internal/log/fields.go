package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldExpenseID  = "expense_id"
	FieldTitle      = "title"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldFilterDays = "filter_days"
	FieldFormat     = "format"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentState   = "state"
	ComponentEvents  = "events"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpLoad     = "load"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
