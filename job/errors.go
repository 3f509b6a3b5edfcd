package job

import "errors"

var (
	// ErrNoCodeProvided is returned when the request has no source code
	ErrNoCodeProvided = errors.New("no code provided")
	// ErrUnsupportedLanguage is returned for a language outside {cpp, python}
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrInternal wraps every infrastructure failure
	ErrInternal = errors.New("internal error")
)

// ValidationError is a client input error. Message is safe to show to the user.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(err error) *ValidationError {
	switch {
	case errors.Is(err, ErrNoCodeProvided):
		return &ValidationError{Message: "No code provided.", Err: err}
	case errors.Is(err, ErrUnsupportedLanguage):
		return &ValidationError{Message: "Unsupported language.", Err: err}
	default:
		return &ValidationError{Message: err.Error(), Err: err}
	}
}
