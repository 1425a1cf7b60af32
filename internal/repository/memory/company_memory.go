package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/repository"
)

// CompanyMemory is an in-process implementation of repository.CompanyRepository.
// It evaluates query.Filter directly and is safe for concurrent use.
type CompanyMemory struct {
	mu     sync.RWMutex
	byID   map[string]model.Company
	closed bool
}

// NewCompanyMemory returns an empty store.
func NewCompanyMemory() *CompanyMemory {
	return &CompanyMemory{byID: make(map[string]model.Company)}
}

var _ repository.CompanyRepository = (*CompanyMemory)(nil)

// Create stores a copy of c under a new UUID.
func (r *CompanyMemory) Create(ctx context.Context, c *model.Company) (*model.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("memory store closed: %w", apperror.ErrStoreUnavailable)
	}

	out := *c
	out.ID = uuid.NewString()
	if c.Founded != nil {
		founded := *c.Founded
		out.Founded = &founded
	}
	r.byID[out.ID] = out
	return &out, nil
}

// FindByID returns the company with the given id.
func (r *CompanyMemory) FindByID(ctx context.Context, id string) (*model.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return &c, nil
}

// Find filters, sorts and windows the stored companies.
func (r *CompanyMemory) Find(ctx context.Context, q query.Query) ([]model.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := r.matching(q.Filter)
	slices.SortFunc(matched, func(a, b model.Company) int {
		c := compareField(a, b, q.Sort.Field)
		if q.Sort.Descending() {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	offset := q.Window.Offset()
	if offset < 0 || offset >= len(matched) {
		return []model.Company{}, nil
	}
	end := len(matched)
	if q.Window.Limit > 0 && q.Window.Limit < end-offset {
		end = offset + q.Window.Limit
	}
	return matched[offset:end], nil
}

// Count returns the number of companies matching f.
func (r *CompanyMemory) Count(ctx context.Context, f query.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(r.matching(f))), nil
}

// Distinct returns the sorted distinct non-empty values of field.
func (r *CompanyMemory) Distinct(ctx context.Context, field string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var get func(model.Company) string
	switch field {
	case repository.FieldLocation:
		get = func(c model.Company) string { return c.Location }
	case repository.FieldIndustry:
		get = func(c model.Company) string { return c.Industry }
	default:
		return nil, fmt.Errorf("distinct: unsupported field %q", field)
	}

	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.byID))
	for _, c := range r.byID {
		if v := get(c); v != "" {
			seen[v] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// ValidID accepts UUIDs, the format Create assigns.
func (r *CompanyMemory) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *CompanyMemory) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("memory store closed: %w", apperror.ErrStoreUnavailable)
	}
	return ctx.Err()
}

func (r *CompanyMemory) Close(context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *CompanyMemory) matching(f query.Filter) []model.Company {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Company, 0, len(r.byID))
	for _, c := range r.byID {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

func compareField(a, b model.Company, field query.Field) int {
	switch field {
	case query.FieldLocation:
		return strings.Compare(a.Location, b.Location)
	case query.FieldIndustry:
		return strings.Compare(a.Industry, b.Industry)
	case query.FieldEmployees:
		return cmp.Compare(a.Employees, b.Employees)
	case query.FieldFounded:
		// Missing years sort first, as they do in the document store.
		switch {
		case a.Founded == nil && b.Founded == nil:
			return 0
		case a.Founded == nil:
			return -1
		case b.Founded == nil:
			return 1
		}
		return cmp.Compare(*a.Founded, *b.Founded)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}
