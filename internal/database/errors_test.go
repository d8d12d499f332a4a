package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation), Constraint: "users_email_key"})

	constraint, ok := UniqueViolation(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	_, ok = UniqueViolation(&pq.Error{Code: pq.ErrorCode(pgerrcode.ForeignKeyViolation)})
	assert.False(t, ok)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}
