package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Boundary runs fn, and if it returns an error, writes one diagnostic line
// tagged with origin before re-raising it unchanged. Nothing is logged on
// success. session.WriteScalar and session.WriteVector wrap their bodies
// in it; other operations return their errors without logging them.
func Boundary(origin string, fn func() error) error {
	if err := fn(); err != nil {
		Logf("[%s] %v", origin, err)
		return err
	}
	return nil
}

// BoundaryValue is Boundary for operations that also return a value.
func BoundaryValue[T any](origin string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err != nil {
		Logf("[%s] %v", origin, err)
	}
	return v, err
}
