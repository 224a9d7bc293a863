package db

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
)

// IsUniqueViolation reports whether the error is a sqlite UNIQUE or PRIMARY KEY
// failure. When constraintName is provided (e.g. "usuarios.numero_socio") the
// helper also requires it in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == ""
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	if constraintName != "" {
		return strings.Contains(sqliteErr.Error(), constraintName)
	}
	return true
}

// IsForeignKeyViolation reports whether the error is a FOREIGN KEY failure.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// IsIntegrityViolation covers every constraint failure the store can raise.
func IsIntegrityViolation(err error) bool {
	if IsUniqueViolation(err, "") || IsForeignKeyViolation(err) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// IsNotFound reports whether a First/Take call found no row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// MapError wraps a storage error with the matching code. Errors that already
// carry a code pass through unchanged.
func MapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	case IsIntegrityViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, message)
	case isUnavailable(err):
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
	}
}

func isUnavailable(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrBusy, sqlite3.ErrLocked,
		sqlite3.ErrReadonly, sqlite3.ErrFull, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return true
	}
	return false
}
