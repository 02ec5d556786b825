package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Category is a budget block. CategoryID is the matching key shared with
	// the remote feed.
	Category struct {
		CategoryID int64
		Name       string
		Budget     Money
	}

	// Transaction is a single spending record. CategoryID is a non-owning
	// reference and is nil when the transaction is not linked to a category.
	Transaction struct {
		TransactionID string
		Name          string
		Amount        Money
		Date          Date
		CategoryID    *int64
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyID       = errors.New("empty transaction id")
	ErrInvalidID     = errors.New("invalid category id")
	ErrNameTooLong   = errors.New("name too long (max 200 characters)")
)

const maxNameLength = 200

func (c Category) Validate() error {
	if c.CategoryID <= 0 {
		return ErrInvalidID
	}
	return validateName(c.Name)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.TransactionID) == "" {
		return ErrEmptyID
	}
	if err := validateName(t.Name); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.CategoryID != nil && *t.CategoryID <= 0 {
		return ErrInvalidID
	}
	return nil
}

// LinkedTo reports whether the transaction references the given category.
func (t Transaction) LinkedTo(categoryID int64) bool {
	return t.CategoryID != nil && *t.CategoryID == categoryID
}

// CategoryRef returns a fresh pointer suitable for Transaction.CategoryID.
func CategoryRef(id int64) *int64 {
	return &id
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}
