// Package query turns raw listing parameters into a store-agnostic Query.
// It performs no I/O; repositories translate the result into their own
// query language.
package query

import (
	"math"
	"strconv"
	"strings"

	"companydir/internal/apperror"
	"companydir/internal/model"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Field is a company attribute that can be sorted on.
type Field string

const (
	FieldName      Field = "name"
	FieldLocation  Field = "location"
	FieldIndustry  Field = "industry"
	FieldEmployees Field = "employees"
	FieldFounded   Field = "founded"
)

// SortFields is the closed set accepted by sortBy.
var SortFields = []Field{FieldName, FieldLocation, FieldIndustry, FieldEmployees, FieldFounded}

// SearchFields are the attributes a free-text search pattern is matched against.
var SearchFields = []string{"name", "location", "industry", "description"}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Params carries listing parameters exactly as received from the caller.
// Empty strings mean "not supplied".
type Params struct {
	Page      string
	Limit     string
	SortBy    string
	SortOrder string
	Name      string
	Location  string
	Industry  string
	Search    string
}

// Filter is the predicate part of a query. An empty pattern imposes no
// constraint. Per-field patterns are AND-ed; Search must match at least one
// of SearchFields and is AND-ed with the per-field patterns.
type Filter struct {
	Name     string
	Location string
	Industry string
	Search   string
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return f.Name == "" && f.Location == "" && f.Industry == "" && f.Search == ""
}

// Matches evaluates the filter against a single record using
// case-insensitive substring semantics.
func (f Filter) Matches(c model.Company) bool {
	if !contains(c.Name, f.Name) || !contains(c.Location, f.Location) || !contains(c.Industry, f.Industry) {
		return false
	}
	if f.Search == "" {
		return true
	}
	return contains(c.Name, f.Search) ||
		contains(c.Location, f.Search) ||
		contains(c.Industry, f.Search) ||
		contains(c.Description, f.Search)
}

func contains(value, pattern string) bool {
	if pattern == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

// Sort specifies the ordering of a listing.
type Sort struct {
	Field Field
	Order Order
}

// Descending reports whether the sort runs from high to low.
func (s Sort) Descending() bool {
	return s.Order == Desc
}

// Window is the slice of the sorted, filtered result set to return.
type Window struct {
	Page  int
	Limit int
}

// Offset is the number of matching records skipped before the window.
func (w Window) Offset() int {
	if w.Page <= 1 {
		return 0
	}
	return (w.Page - 1) * w.Limit
}

// Query is the fully normalized listing request.
type Query struct {
	Filter Filter
	Sort   Sort
	Window Window
}

// Builder normalizes Params into a Query.
type Builder struct {
	DefaultLimit int
	MaxLimit     int
}

// NewBuilder returns a Builder, falling back to package defaults for
// non-positive limits.
func NewBuilder(defaultLimit, maxLimit int) Builder {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return Builder{DefaultLimit: defaultLimit, MaxLimit: maxLimit}
}

// Build validates p and returns the query it describes. Every invalid
// parameter is reported in a single *apperror.ValidationError.
func (b Builder) Build(p Params) (Query, error) {
	if b.DefaultLimit <= 0 || b.MaxLimit <= 0 {
		b = NewBuilder(b.DefaultLimit, b.MaxLimit)
	}
	verr := &apperror.ValidationError{}

	q := Query{
		Filter: Filter{
			Name:     strings.TrimSpace(p.Name),
			Location: strings.TrimSpace(p.Location),
			Industry: strings.TrimSpace(p.Industry),
			Search:   strings.TrimSpace(p.Search),
		},
		Sort: Sort{Field: FieldName, Order: Asc},
		Window: Window{
			Page:  DefaultPage,
			Limit: b.DefaultLimit,
		},
	}

	if sortBy := strings.TrimSpace(p.SortBy); sortBy != "" {
		field, ok := parseField(sortBy)
		if !ok {
			verr.Add("sortBy", "must be one of name, location, industry, employees, founded")
		}
		q.Sort.Field = field
	}
	// Anything other than the exact literal "desc" sorts ascending.
	if p.SortOrder == string(Desc) {
		q.Sort.Order = Desc
	}

	if raw := strings.TrimSpace(p.Page); raw != "" {
		page, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			verr.Add("page", "must be an integer")
		case page < 1:
			q.Window.Page = DefaultPage
		default:
			q.Window.Page = page
		}
	}

	if raw := strings.TrimSpace(p.Limit); raw != "" {
		limit, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			verr.Add("limit", "must be an integer")
		case limit < 1:
			verr.Add("limit", "must be at least 1")
		case limit > b.MaxLimit:
			q.Window.Limit = b.MaxLimit
		default:
			q.Window.Limit = limit
		}
	}

	// (page-1)*limit must fit in an int for every backend's skip/offset.
	if q.Window.Page-1 > math.MaxInt/q.Window.Limit {
		verr.Add("page", "is too large")
	}

	if verr.HasErrors() {
		return Query{}, verr
	}
	return q, nil
}

func parseField(s string) (Field, bool) {
	for _, f := range SortFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Pages returns ceil(total/limit), or 0 when nothing matched or limit is
// not positive.
func Pages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}
