package csvimport

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateData is returned when a CSV with the same data hash exists.
var ErrDuplicateData = errors.New("csv data already stored")

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == pgerrcode.UniqueViolation
	}
	return strings.Contains(strings.ToLower(errString(err)), "duplicate key")
}

// IsTransient reports database failures worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable,
			pgerrcode.AdminShutdown, pgerrcode.CannotConnectNow:
			return true
		}
		return false
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type Page struct {
	Number int
	Size   int
}

func (p Page) normalized() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > 1000 {
		p.Size = 1000
	}
	return p
}

func (p Page) Offset() int {
	n := p.normalized()
	return n.Number * n.Size
}

func (p Page) Limit() int { return p.normalized().Size }
