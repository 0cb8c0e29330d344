// Package id provides UUIDv7 identifiers for accounts, documents and ledger rows.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type shared by every persisted record.
type ID = uuid.UUID

// New generates a time-ordered UUIDv7.
// Ordering by id follows creation order, which keeps ledger rows and
// movements naturally sorted in B-tree indexes.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// IsNilPtr reports whether p is nil or points at the zero UUID.
// Optional references (party, account, header) are stored as *ID.
func IsNilPtr(p *ID) bool {
	return p == nil || *p == uuid.Nil
}

// Ptr returns a pointer to a copy of v.
func Ptr(v ID) *ID {
	return &v
}

// PtrEqual compares two optional references.
func PtrEqual(a, b *ID) bool {
	if IsNilPtr(a) || IsNilPtr(b) {
		return IsNilPtr(a) && IsNilPtr(b)
	}
	return *a == *b
}
