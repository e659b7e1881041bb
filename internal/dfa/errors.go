package dfa

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrInvariant marks a violated engine invariant. These are bugs in the
// calling traversal and are raised as panics carrying an *InvariantError.
var ErrInvariant = errors.New("dataflow invariant violated")

// InvariantError describes a violated invariant.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariant, e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// failInvariant logs and panics. Callers that want to survive a broken
// analysis unit can recover and test the value with errors.Is(err, ErrInvariant).
func failInvariant(logger *zap.Logger, op, format string, args ...any) {
	err := &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
	if logger != nil {
		logger.Error("invariant violation", zap.String("op", op), zap.Error(err))
	}
	panic(err)
}

// RecoverInvariant converts an invariant panic into an error. Any other
// panic is re-raised.
//
//	defer dfa.RecoverInvariant(&err)
func RecoverInvariant(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok && errors.Is(err, ErrInvariant) {
		*errp = err
		return
	}
	panic(r)
}
