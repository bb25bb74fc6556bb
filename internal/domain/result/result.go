// Package result models the state of a remote call whose outcome gates
// what a caller may show or do next.
package result

// State is the lifecycle position of a Result.
type State uint8

const (
	// Idle means nothing has been requested. It is the zero value.
	Idle State = iota
	// Loading means a request is in flight.
	Loading
	// Failed means the request finished with an error.
	Failed
	// Succeeded means the request finished with a value.
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Result is a tagged union over the States. Construct it with the package
// functions; the zero value is Idle.
type Result[T any] struct {
	state State
	value T
	err   error
}

// NewLoading returns a Result in the Loading state.
func NewLoading[T any]() Result[T] {
	return Result[T]{state: Loading}
}

// Fail returns a Result in the Failed state.
func Fail[T any](err error) Result[T] {
	return Result[T]{state: Failed, err: err}
}

// Succeed returns a Result in the Succeeded state.
func Succeed[T any](v T) Result[T] {
	return Result[T]{state: Succeeded, value: v}
}

// State returns the current state.
func (r Result[T]) State() State { return r.state }

// Value returns the value and true only when the Result succeeded.
func (r Result[T]) Value() (T, bool) {
	if r.state != Succeeded {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the error of a Failed result and nil otherwise.
func (r Result[T]) Err() error {
	if r.state != Failed {
		return nil
	}
	return r.err
}
