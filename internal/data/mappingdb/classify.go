package mappingdb

import (
	stderrors "errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mcmappings/internal/core/errors"
)

// classify translates a storage error into the domain taxonomy. Unique
// violations become onUnique, foreign key violations a scope mismatch, and
// anything else an internal error tagged with op.
func classify(err error, op string, onUnique errors.ErrorCode) error {
	if err == nil {
		return nil
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	switch constraintOf(err) {
	case constraintUnique:
		return errors.AddContext(errors.Wrap(err, onUnique, op+": already exists"), errors.CtxOperation, op)
	case constraintForeignKey:
		return errors.AddContext(
			errors.Wrap(err, errors.CodeForeignScopeMismatch, op+": referenced row is missing or belongs to another version"),
			errors.CtxOperation, op)
	}
	return errors.AddContext(errors.Wrap(err, errors.CodeInternal, op), errors.CtxOperation, op)
}

type constraint int

const (
	constraintNone constraint = iota
	constraintUnique
	constraintForeignKey
)

func constraintOf(err error) constraint {
	var se *sqlite.Error
	if !stderrors.As(err, &se) {
		return constraintNone
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return constraintUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return constraintForeignKey
	}
	// Primary result code only: fall back to the message.
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := strings.ToUpper(se.Error())
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return constraintUnique
		case strings.Contains(msg, "FOREIGN KEY"):
			return constraintForeignKey
		}
	}
	return constraintNone
}

func scopeMismatch(op string, table string, id int64) error {
	return errors.Newf(errors.CodeForeignScopeMismatch, "%s: %s row %d is missing or belongs to another version", op, table, id).
		WithContext(errors.CtxOperation, op).
		WithContext(errors.CtxTable, table)
}
