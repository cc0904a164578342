package errs

import "strings"

// RecordParsingError aggregates every cell-level problem found while parsing one
// header row or data row.
type RecordParsingError struct {
	Causes []error
}

func (e *RecordParsingError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return strings.Join(msgs, "\n")
}

func (e *RecordParsingError) Unwrap() []error { return e.Causes }

// Flatten returns the causes of a RecordParsingError, or err itself.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if rp, ok := err.(*RecordParsingError); ok {
		return rp.Causes
	}
	return []error{err}
}
