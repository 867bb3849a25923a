package mirror

import "fmt"

// Argument error codes.
const (
	CodeIndexName = "index_name"
	CodeSettings  = "settings"
	CodeMapping   = "mapping"
	CodeType      = "type"
	CodeID        = "id"
	CodeModel     = "model"
	CodeDocument  = "document"
)

// InvalidArgumentError reports malformed input detected before any I/O.
// Never retried.
type InvalidArgumentError struct {
	Code string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Code)
}

// BufferOverflowError reports an enqueue that would exceed the bulk buffer's
// hard ceiling. The operation was not queued.
type BufferOverflowError struct {
	Limit int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("bulk buffer full (limit %d)", e.Limit)
}
