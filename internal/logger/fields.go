package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried through the call chain in context.
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldIdentity  = "identity"
	FieldProvider  = "provider"
	FieldLanguage  = "language"
)

// Metric fields, attached per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldAttempt    = "attempt"
	FieldFromCache  = "from_cache"
	FieldStatus     = "status"
	FieldSize       = "size"
)
