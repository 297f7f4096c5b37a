package errs

import "errors"

type Category string

const (
	CategoryConfiguration       Category = "configuration"
	CategoryDependencyViolation Category = "dependency_violation"
	CategoryMissingTarget       Category = "missing_target"
)

var (
	// ErrConfiguration marks an invalid session configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRule marks an attribution rule that cannot be evaluated.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrDependencyViolation marks a rejected pipeline mutation.
	ErrDependencyViolation = errors.New("dependency violation")
	// ErrMissingTarget marks a run without an output destination.
	ErrMissingTarget = errors.New("missing target")
)

type classifiedError struct {
	category Category
	code     string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Is(target error) bool {
	switch e.category {
	case CategoryConfiguration:
		return target == ErrConfiguration
	case CategoryDependencyViolation:
		return target == ErrDependencyViolation
	case CategoryMissingTarget:
		return target == ErrMissingTarget
	}
	return false
}

// Wrap attaches a category and a short machine readable code to cause.
func Wrap(cause error, category Category, code string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{category: category, code: code, cause: cause}
}

func Configuration(code string, cause error) error {
	return Wrap(cause, CategoryConfiguration, code)
}

func DependencyViolation(code string, cause error) error {
	return Wrap(cause, CategoryDependencyViolation, code)
}

func MissingTarget(code string, cause error) error {
	return Wrap(cause, CategoryMissingTarget, code)
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}
