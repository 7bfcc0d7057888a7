package review

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound is returned when no review has the requested id.
	ErrNotFound = eris.New("review: not found")
	// ErrAlreadyResolved is returned when the review already carries an
	// outcome, including when a concurrent classification won the write.
	ErrAlreadyResolved = eris.New("review: already resolved")
)

// ValidationError reports malformed ingestion input. Fields holds the JSON
// names of the offending fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "review: invalid " + strings.Join(e.Fields, ", ")
}
