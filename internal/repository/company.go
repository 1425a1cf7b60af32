// Package repository contains the data access abstraction for companies.
// Implementations live in subpackages (mongodb, postgres, memory).
package repository

import (
	"context"

	"companydir/internal/model"
	"companydir/internal/query"
)

// Distinct-able fields.
const (
	FieldLocation = "location"
	FieldIndustry = "industry"
)

// CompanyRepository defines data access for companies. No business logic
// here: validation, defaults and error taxonomy decisions belong to the service.
type CompanyRepository interface {
	// Create persists a new company. The store assigns the ID; the returned
	// record is what was stored.
	Create(ctx context.Context, c *model.Company) (*model.Company, error)

	// FindByID returns apperror.ErrNotFound when no record has the id.
	FindByID(ctx context.Context, id string) (*model.Company, error)

	// Find returns the window of records matching q.Filter ordered by q.Sort.
	// Implementations break ties on the record ID so pages are stable.
	Find(ctx context.Context, q query.Query) ([]model.Company, error)

	// Count returns how many records match f, ignoring any window.
	Count(ctx context.Context, f query.Filter) (int64, error)

	// Distinct returns the distinct non-empty values of field (FieldLocation or FieldIndustry).
	Distinct(ctx context.Context, field string) ([]string, error)

	// ValidID reports whether id is well-formed for this store.
	ValidID(id string) bool

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
