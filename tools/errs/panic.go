package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrPanic wraps a recovered value as an internal CodeError with a stack.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	err := &CodeError{
		Code:   ServerInternalError,
		Msg:    "panic error",
		Detail: fmt.Sprint(r),
	}
	return pkgerrors.WithStack(err)
}
