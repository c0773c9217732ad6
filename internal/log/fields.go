package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldRecordID  = "record_id"
	FieldKind      = "kind"
	FieldCategory  = "category"
	FieldAmount    = "amount"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
)

// Operations name the record mutations carried on events and audit entries.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds record identification fields.
func (f LogFields) WithRecord(kind, id, category string, amount string) LogFields {
	f[FieldKind] = kind
	f[FieldRecordID] = id
	f[FieldCategory] = category
	f[FieldAmount] = amount
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
