package postgres

import (
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

// SQLSTATE codes the booking flow has to tell apart.
const (
	codeInsufficientPrivilege = "42501"
	codeUniqueViolation       = "23505"
	codeForeignKeyViolation   = "23503"
	codeUndefinedTable        = "42P01"
)

// classify maps a driver error to a structured application error. Unique
// violations are split by constraint: a slot collision means the seat was
// taken in a race, a code collision means the generator should retry.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("record", err)
	}

	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case codeInsufficientPrivilege:
		return errors.Permission("database rejected the operation", pqErr).
			WithHint("check the role grants for the application user")
	case codeUniqueViolation:
		if strings.Contains(pqErr.Constraint, "slot") {
			return errors.SlotOccupied("the slot was just taken")
		}
		if strings.Contains(pqErr.Constraint, "code") {
			return errors.Duplicate("appointment code collision", pqErr)
		}
		return errors.Duplicate("duplicate record", pqErr)
	case codeForeignKeyViolation:
		return errors.ForeignKey("referenced record does not exist", pqErr).
			WithHint("the patient profile may be missing")
	case codeUndefinedTable:
		return errors.SchemaMissing("schema is not migrated", pqErr).
			WithHint("run the database migrations")
	}
	return err
}
