package database

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrForeignKey      = errors.New("foreign key constraint failed")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrNotNull         = errors.New("not null constraint failed")
)

// ConstraintError carries the table/column a SQLite constraint failure
// refers to, extracted from the driver's error text.
type ConstraintError struct {
	Kind    error // one of the sentinels above
	Table   string
	Column  string
	Message string
}

func (e *ConstraintError) Error() string {
	return e.Message
}

func (e *ConstraintError) Unwrap() error {
	return e.Kind
}

var (
	fkPattern     = regexp.MustCompile(`FOREIGN KEY constraint failed`)
	uniquePattern = regexp.MustCompile(`UNIQUE constraint failed: ([^\s]+)`)
	notNullRegex  = regexp.MustCompile(`NOT NULL constraint failed: ([^\s]+)`)
)

// ClassifyError maps a raw SQLite error onto a ConstraintError where
// possible, and returns the error unchanged otherwise.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if fkPattern.MatchString(errStr) {
		return &ConstraintError{
			Kind:    ErrForeignKey,
			Message: "referenced record does not exist",
		}
	}

	if matches := uniquePattern.FindStringSubmatch(errStr); len(matches) == 2 {
		ce := &ConstraintError{
			Kind:    ErrUniqueViolation,
			Message: "a record with this value already exists",
		}
		if parts := strings.Split(matches[1], "."); len(parts) == 2 {
			ce.Table = parts[0]
			ce.Column = parts[1]
			ce.Message = "a record with this '" + parts[1] + "' already exists"
		}
		return ce
	}

	if matches := notNullRegex.FindStringSubmatch(errStr); len(matches) == 2 {
		ce := &ConstraintError{
			Kind:    ErrNotNull,
			Message: "required field is missing",
		}
		if parts := strings.Split(matches[1], "."); len(parts) == 2 {
			ce.Table = parts[0]
			ce.Column = parts[1]
			ce.Message = "field '" + parts[1] + "' is required"
		}
		return ce
	}

	return err
}

func IsUniqueError(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

func IsForeignKeyError(err error) bool {
	return errors.Is(err, ErrForeignKey)
}
