// Package errs holds the error taxonomy of the import pipeline. Every error is an
// *apierr.Error whose Code is a stable problem slug and whose message is user-facing.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

func newErr(status int, code, msg string, props map[string]any) *apierr.Error {
	return apierr.New(status, code, errors.New(msg)).WithProps(props)
}

func wrapErr(status int, code, msg string, cause error, props map[string]any) *apierr.Error {
	var err error = errors.New(msg)
	if cause != nil {
		err = &causedError{msg: msg, cause: cause}
	}
	return apierr.New(status, code, err).WithProps(props)
}

type causedError struct {
	msg   string
	cause error
}

func (e *causedError) Error() string { return e.msg }
func (e *causedError) Unwrap() error { return e.cause }

// ---- structural ----

func CSVAlreadyExists() *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_already_exists", "A CSV with the same data already exists.", nil)
}

func CSVCannotBeBlank() *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_cannot_be_blank", "The CSV can not be blank.", nil)
}

func CSVNotFound(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusNotFound, "csv_not_found",
		fmt.Sprintf(`CSV "%s" not found.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVValidationJobNotFound(csvID uuid.UUID, jobID *uuid.UUID) *apierr.Error {
	return newErr(http.StatusNotFound, "csv_validation_job_not_found", "CSV validation job not found.",
		map[string]any{"csv_id": csvID, "job_id": jobID})
}

func CSVImportJobNotFound(csvID uuid.UUID, jobID *uuid.UUID) *apierr.Error {
	return newErr(http.StatusNotFound, "csv_import_job_not_found", "CSV import job not found.",
		map[string]any{"csv_id": csvID, "job_id": jobID})
}

func CSVAlreadyValidated(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_already_validated",
		fmt.Sprintf(`CSV "%s" was already validated.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVValidationAlreadyRunning(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_validation_already_running",
		fmt.Sprintf(`Validation for CSV "%s" is already running.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVValidationRestartFailed(csvID uuid.UUID, cause error) *apierr.Error {
	return wrapErr(http.StatusBadRequest, "csv_validation_restart_failed",
		fmt.Sprintf(`Could not restart validation for CSV "%s".`, csvID), cause,
		map[string]any{"csv_id": csvID})
}

func CSVNotValidated(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_not_validated",
		fmt.Sprintf(`CSV "%s" must be validated before import.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVAlreadyImported(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_already_imported",
		fmt.Sprintf(`CSV "%s" was already imported.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVImportAlreadyRunning(csvID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "csv_import_already_running",
		fmt.Sprintf(`Import for CSV "%s" is already running.`, csvID),
		map[string]any{"csv_id": csvID})
}

func CSVImportRestartFailed(csvID uuid.UUID, cause error) *apierr.Error {
	return wrapErr(http.StatusBadRequest, "csv_import_restart_failed",
		fmt.Sprintf(`Could not restart import for CSV "%s".`, csvID), cause,
		map[string]any{"csv_id": csvID})
}

// ---- job control ----

func JobNotFound(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusNotFound, "job_not_found",
		fmt.Sprintf(`Job "%s" not found.`, jobID), map[string]any{"job_id": jobID})
}

func JobResultNotFound(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusNotFound, "job_result_not_found",
		fmt.Sprintf(`Result for job "%s" not found.`, jobID), map[string]any{"job_id": jobID})
}

func JobNotComplete(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "job_not_complete",
		fmt.Sprintf(`Job "%s" is not complete.`, jobID), map[string]any{"job_id": jobID})
}

func JobNotRunning(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "job_not_running",
		fmt.Sprintf(`Job "%s" is not running.`, jobID), map[string]any{"job_id": jobID})
}

func JobAlreadyRunning(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "job_already_running",
		fmt.Sprintf(`Job "%s" is already running.`, jobID), map[string]any{"job_id": jobID})
}

func JobAlreadyComplete(jobID uuid.UUID) *apierr.Error {
	return newErr(http.StatusBadRequest, "job_already_complete",
		fmt.Sprintf(`Job "%s" is already complete.`, jobID), map[string]any{"job_id": jobID})
}

func JobRestartFailed(jobID uuid.UUID, cause error) *apierr.Error {
	return wrapErr(http.StatusBadRequest, "job_restart_failed",
		fmt.Sprintf(`Could not restart job "%s".`, jobID), cause, map[string]any{"job_id": jobID})
}

// JobException carries the problems that made a job fail.
func JobException(problems []*apierr.Error) *apierr.Error {
	msgs := make([]string, 0, len(problems))
	for _, p := range problems {
		if p != nil {
			msgs = append(msgs, p.Error())
		}
	}
	return newErr(http.StatusBadRequest, "job_execution_exception", strings.Join(msgs, "\n"),
		map[string]any{"errors": problems})
}

// ---- schema / parsing ----

// DuplicateCSVHeaders lists duplicate header names with their columns, ordered by
// first occurrence.
func DuplicateCSVHeaders(duplicates map[string][]int) *apierr.Error {
	names := make([]string, 0, len(duplicates))
	for name := range duplicates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := duplicates[names[i]], duplicates[names[j]]
		if len(a) > 0 && len(b) > 0 && a[0] != b[0] {
			return a[0] < b[0]
		}
		return names[i] < names[j]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf(`"%s" in columns %s`, name, formatInts(duplicates[name])))
	}
	return newErr(http.StatusBadRequest, "duplicate_csv_headers",
		fmt.Sprintf("Duplicate CSV headers %s.", strings.Join(parts, ", ")),
		map[string]any{"csv_headers": duplicates})
}

func BlankCSVHeaderValue(column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "blank_csv_header_value",
		fmt.Sprintf("The CSV header value in column %d must not be blank.", column),
		map[string]any{"csv_column": column})
}

func EmptyCSVHeader() *apierr.Error {
	return newErr(http.StatusBadRequest, "empty_csv_header", "The CSV header must not be empty.", nil)
}

func UnknownCSVNamespace(namespace, value string, row int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "unknown_csv_namespace",
		fmt.Sprintf(`Unknown namespace "%s" for value "%s" in row %d, column %d.`, namespace, value, row, column),
		map[string]any{"csv_namespace": namespace, "csv_value": value, "csv_row": row, "csv_column": column})
}

func UnknownCSVNamespaceValue(namespace, value string, row int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "unknown_namespace_value",
		fmt.Sprintf(`Unknown value "%s" for closed namespace "%s" in row %d, column %d.`, value, namespace, row, column),
		map[string]any{"csv_namespace": namespace, "csv_value": value, "csv_row": row, "csv_column": column})
}

func UnexpectedCSVValueType(actual, expected string, row int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "unexpected_csv_value_type",
		fmt.Sprintf(`Invalid type "%s" for value in row %d, column %d. Expected type "%s".`, actual, row, column, expected),
		map[string]any{
			"actual_csv_cell_value_type":   actual,
			"expected_csv_cell_value_type": expected,
			"csv_row":                      row,
			"csv_column":                   column,
		})
}

func UnknownCSVValueType(typ string, row int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "unknown_csv_value_type",
		fmt.Sprintf(`Unknown type "%s" for value in row %d, column %d.`, typ, row, column),
		map[string]any{"csv_cell_value_type": typ, "csv_row": row, "csv_column": column})
}

func InconsistentCSVColumnCount(actual, expected int, row int64) *apierr.Error {
	return newErr(http.StatusBadRequest, "inconsistent_csv_column_count",
		fmt.Sprintf("Inconsistent column count in row %d. Found %d, expected %d.", row, actual, expected),
		map[string]any{"actual_csv_column_count": actual, "expected_csv_column_count": expected, "csv_row": row})
}

// InvalidCSVValue reports a value rejected by a validator; reason becomes part of
// the message.
func InvalidCSVValue(value string, row int64, column int, reason error) *apierr.Error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return wrapErr(http.StatusBadRequest, "invalid_csv_value",
		fmt.Sprintf(`Invalid value "%s" in row %d, column %d. Reason: %s`, value, row, column, msg), reason,
		map[string]any{"csv_cell_value": value, "csv_row": row, "csv_column": column, "reason": msg})
}

// MalformedCSVRow reports a row the CSV tokenizer could not split, such as a
// stray quote. The rows around it are still read.
func MalformedCSVRow(itemNumber, lineNumber int64, reason error) *apierr.Error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return wrapErr(http.StatusBadRequest, "malformed_csv_row",
		fmt.Sprintf("Malformed row %d (line %d). Reason: %s", itemNumber, lineNumber, msg), reason,
		map[string]any{"item_number": itemNumber, "line_number": lineNumber, "reason": msg})
}

func InvalidCSVEncoding(itemNumber, lineNumber int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "invalid_csv_encoding",
		fmt.Sprintf("Row %d, column %d is not valid UTF-8 (line %d).", itemNumber, column, lineNumber),
		map[string]any{"item_number": itemNumber, "line_number": lineNumber, "csv_column": column})
}

// UnparsableCSVValue reports a value that cannot be converted to requiredType.
func UnparsableCSVValue(value string, row int64, column int, requiredType string) *apierr.Error {
	return InvalidCSVValue(value, row, column, fmt.Errorf(`Value cannot be parsed as type "%s".`, requiredType))
}

func UnknownCSVPredicate(id string, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "unknown_csv_predicate",
		fmt.Sprintf(`Predicate "%s" referenced in column %d not found.`, id, column),
		map[string]any{"predicate_id": id, "csv_column": column})
}

// ---- paper records ----

func PaperCSVMissingTitle(itemNumber, lineNumber int64) *apierr.Error {
	return newErr(http.StatusBadRequest, "paper_csv_missing_paper_title",
		fmt.Sprintf("Missing title for paper in row %d (line %d).", itemNumber, lineNumber),
		map[string]any{"item_number": itemNumber, "line_number": lineNumber})
}

func PaperCSVMissingResearchField(itemNumber, lineNumber int64) *apierr.Error {
	return newErr(http.StatusBadRequest, "paper_csv_missing_research_field",
		fmt.Sprintf("Missing research field for paper in row %d (line %d).", itemNumber, lineNumber),
		map[string]any{"item_number": itemNumber, "line_number": lineNumber})
}

func PaperCSVResourceNotFound(id string, itemNumber, lineNumber int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "paper_csv_resource_not_found",
		fmt.Sprintf(`Resource "%s" in row %d, column %d not found (line %d).`, id, itemNumber, column, lineNumber),
		map[string]any{"resource_id": id, "item_number": itemNumber, "line_number": lineNumber, "csv_column": column})
}

func PaperCSVThingNotFound(id string, itemNumber, lineNumber int64, column int) *apierr.Error {
	return newErr(http.StatusBadRequest, "paper_csv_thing_not_found",
		fmt.Sprintf(`Thing "%s" in row %d, column %d not found (line %d).`, id, itemNumber, column, lineNumber),
		map[string]any{"thing_id": id, "item_number": itemNumber, "line_number": lineNumber, "csv_column": column})
}

// Column returns the csv_column property of err, when present.
func Column(err error) (int, bool) {
	e, ok := apierr.As(err)
	if !ok || e.Props == nil {
		return 0, false
	}
	switch v := e.Props["csv_column"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// Position returns the item_number and line_number properties of err. It is
// how a row error raised while reading, before any record exists, keeps its
// place.
func Position(err error) (itemNumber, lineNumber int64, ok bool) {
	e, found := apierr.As(err)
	if !found || e.Props == nil {
		return 0, 0, false
	}
	itemNumber, ok = e.Props["item_number"].(int64)
	lineNumber, _ = e.Props["line_number"].(int64)
	return itemNumber, lineNumber, ok
}

func formatInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
