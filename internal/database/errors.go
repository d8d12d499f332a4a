package database

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// UniqueViolation reports whether err is a Postgres unique_violation and,
// if so, which constraint or index was hit.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}
	if string(pqErr.Code) != pgerrcode.UniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}
