package query

// Status is the state of a read as seen by a page.
type Status int

const (
	// StatusDisabled means the read was not attempted: the backend is not
	// ready yet or a required argument is missing.
	StatusDisabled Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Result is what a query hook hands to a page. On StatusError, Data holds
// the degraded value (an empty list, a nil profile) and Err the cause.
type Result[T any] struct {
	Status Status
	Data   T
	Err    error
}

// Disabled returns a Result for a read that was not attempted.
func Disabled[T any]() Result[T] {
	return Result[T]{Status: StatusDisabled}
}

// Success wraps a fetched value.
func Success[T any](v T) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: v}
}

// Failed wraps a degraded value and its cause.
func Failed[T any](fallback T, err error) Result[T] {
	return Result[T]{Status: StatusError, Data: fallback, Err: err}
}

func (r Result[T]) IsDisabled() bool { return r.Status == StatusDisabled }
func (r Result[T]) IsSuccess() bool  { return r.Status == StatusSuccess }
func (r Result[T]) IsError() bool    { return r.Status == StatusError }
