package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned from FindOne when no document matches the
// filter.
var ErrNotFound = errors.New("No matching document")

// WriteError describes one failed operation within a batch write.
// Index is the operation's position in the batch.
type WriteError struct {
	Index   int
	Message string
}

func (e WriteError) Error() string {
	return e.Message
}

// BulkError is returned from InsertMany and BulkWrite when one or
// more operations in the batch fail.  Operations that did not fail
// may have been applied; callers that need the store's actual state
// must re-read it.
type BulkError struct {
	Errors []WriteError
}

func (e BulkError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "bulk write failed"
	case 1:
		return e.Errors[0].Message
	default:
		return fmt.Sprintf("%s (and %d more errors)",
			e.Errors[0].Message, len(e.Errors)-1)
	}
}

// IsDuplicateKey reports whether err is a BulkError whose first
// failure was a unique index violation.  Every backend's violation
// message contains the phrase "duplicate key" (MongoDB's E11000,
// PostgreSQL's 23505, and the in-process backends' own messages).
func IsDuplicateKey(err error) bool {
	var bulk BulkError
	if !errors.As(err, &bulk) || len(bulk.Errors) == 0 {
		return false
	}
	return strings.Contains(bulk.Errors[0].Message, "duplicate key")
}
