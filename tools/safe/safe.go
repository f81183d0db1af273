package safe

import (
	"fmt"
	"reflect"

	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts f in a new goroutine that recovers from panic,
// so that a bad handler doesn't crash the entire gateway.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover logs a recovered panic; use it as `defer safe.Recover("where")`.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Errorf("[%s] panic recovered: %v", name, errs.ErrPanic(r))
	}
}
