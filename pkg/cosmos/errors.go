package cosmos

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-success response from the database's REST surface.
type Error struct {
	StatusCode int
	Operation  string
	Body       string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("cosmos %s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// IsConflict reports whether err is a "resource already exists" conflict.
// Document seeding treats such conflicts as success for idempotent re-runs.
func IsConflict(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err is a 404 from the database.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound
}
