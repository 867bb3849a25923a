package backend

import (
	"errors"
	"fmt"
)

// IndexNotFoundError reports an operation against an index that does not
// exist on the backend.
type IndexNotFoundError struct {
	Index string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %s not found", e.Index)
}

// DocumentNotFoundError reports a get or delete of a document the backend
// does not hold.
type DocumentNotFoundError struct {
	Index string
	Type  string
	ID    string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %s/%s/%s not found", e.Index, e.Type, e.ID)
}

// IndexOperationError reports a request the backend accepted but did not
// carry out.
type IndexOperationError struct {
	Op     string
	Index  string
	Reason string
}

func (e *IndexOperationError) Error() string {
	return fmt.Sprintf("%s on index %s failed: %s", e.Op, e.Index, e.Reason)
}

// IsNotFound reports whether err is a missing index or missing document.
func IsNotFound(err error) bool {
	var ie *IndexNotFoundError
	var de *DocumentNotFoundError
	return errors.As(err, &ie) || errors.As(err, &de)
}
