package datatable

import (
	"errors"
	"fmt"
)

// Error kinds returned by the exploration engine. Callers match them with
// errors.Is; every one of them is recoverable at the caller boundary.
var (
	// ErrEmptyDataset is returned when a dataset has no columns or no rows.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrMalformedInput is returned when source content cannot be read as a table.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNoNumericColumns is returned when an operation needs at least one numeric column.
	ErrNoNumericColumns = errors.New("no numeric columns")

	// ErrInvalidColumn is returned when a column does not exist or has the wrong role.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrUnsupportedRequest is returned when a chart request's preconditions are unmet.
	ErrUnsupportedRequest = errors.New("unsupported request")

	// ErrInvalidRow is returned when a row index is out of range.
	ErrInvalidRow = errors.New("invalid row index")

	// ErrInvalidFilter is returned when a filter expression is invalid.
	ErrInvalidFilter = errors.New("invalid filter expression")

	// ErrExportFailed is returned when export operation fails.
	ErrExportFailed = errors.New("export failed")

	// ErrInvalidExpression is returned when a derived-column expression does
	// not compile or fails while evaluating.
	ErrInvalidExpression = errors.New("invalid expression")
)

// Error attaches a human-readable detail to one of the error kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
