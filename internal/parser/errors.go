package parser

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrBudgetExceeded reports that a parse attempt ran out of its time budget
// before completing. It is recoverable: the caller may retry with a larger
// budget or against a frozen snapshot.
var ErrBudgetExceeded = errors.New("parse time budget exceeded")

// IsBudgetExceeded reports whether err is a recoverable time-budget failure,
// as opposed to a structural parse failure.
func IsBudgetExceeded(err error) bool {
	return errors.Is(err, ErrBudgetExceeded)
}

// isAbortError reports whether the underlying library aborted the parse due
// to deadline or operation-limit cancellation.
func isAbortError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sitter.ErrOperationLimit)
}
