package ingest

import "fmt"

// ValidationError reports a file that cannot be turned into records. Row is the
// 1-based spreadsheet row (the header is row 1); Row 0 means the file as a whole.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
	Value  interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	where := "file"
	if e.Row > 0 {
		where = fmt.Sprintf("row %d", e.Row)
	}
	if e.Value != nil && e.Value != "" {
		return fmt.Sprintf("%s: field '%s' %s (value: %v)", where, e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("%s: field '%s' %s", where, e.Field, e.Reason)
}
