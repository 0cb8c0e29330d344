package entity

import (
	"context"
	"time"

	"goldshop/internal/core/apperror"
)

// Document is the base type for purchases, invoices, job cards and returns.
type Document struct {
	BaseEntity

	// Number is the document number (PUR-2026-00001, INV-2026-00001, ...)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Locked is set once a document can no longer be edited: a fully paid
	// purchase, a finalized invoice or return, a converted job card.
	Locked bool `db:"locked" json:"locked"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewDocument creates a new Document dated now.
func NewDocument() Document {
	return Document{
		BaseEntity: NewBaseEntity(),
		Date:       time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	if len(d.Notes) > 2000 {
		return apperror.NewValidation("notes must be at most 2000 characters").
			WithDetail("field", "notes")
	}
	return nil
}

// CanModify rejects edits to locked or deleted documents.
func (d *Document) CanModify(entity string) error {
	if d.IsDeleted {
		return apperror.NewNotFound(entity, d.ID)
	}
	if d.Locked {
		return apperror.NewLocked(entity, d.ID)
	}
	return nil
}

// Lock marks the document as no longer editable.
func (d *Document) Lock() {
	d.Locked = true
}

// AppendNote adds a line to Notes.
func (d *Document) AppendNote(line string) {
	if line == "" {
		return
	}
	if d.Notes == "" {
		d.Notes = line
		return
	}
	d.Notes += "\n" + line
}
