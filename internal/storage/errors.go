package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no comic matches the requested id
	ErrNotFound = errors.New("comic not found")

	// ErrDuplicatePanel is returned when a comic already has a panel at the requested order index
	ErrDuplicatePanel = errors.New("panel order index already used")
)

// StoreError wraps a failed read or write against the persistent store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// classify passes domain errors through, maps constraint violations onto
// them and wraps everything else
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	// the unique index and FK catch races the in-transaction checks miss
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicatePanel
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrNotFound
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicatePanel) {
		return err
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
