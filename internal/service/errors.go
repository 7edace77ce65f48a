package service

import (
	"context"
	"errors"

	"go-inventory-ledger/internal/lock"
	pkgerrors "go-inventory-ledger/pkg/errors"

	"gorm.io/gorm"
)

// translate turns store errors into typed service errors. Typed errors pass through.
func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "record already exists")
	case errors.Is(err, lock.ErrNotAcquired):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product is busy, try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request cancelled")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persistence failure")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func validationError(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
