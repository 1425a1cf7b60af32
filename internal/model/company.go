package model

import "time"

// Company is a single directory entry as persisted.
// This is a pure domain model with no database-specific dependencies or tags.
type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Industry    string    `json:"industry"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	Employees   int       `json:"employees"`
	Founded     *int      `json:"founded,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CompanyInput is the create payload: Company minus store-managed fields.
// Employees is a pointer so an omitted value can default to zero while a
// negative one is still rejected.
type CompanyInput struct {
	Name        string `json:"name" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Industry    string `json:"industry" validate:"required"`
	Description string `json:"description" validate:"max=3000"`
	Website     string `json:"website" validate:"omitempty,url"`
	Employees   *int   `json:"employees" validate:"omitempty,gte=0"`
	Founded     *int   `json:"founded" validate:"omitempty,gte=1600,pastyear"`
}

// FilterValues lists the distinct values available to filter selectors.
type FilterValues struct {
	Locations  []string `json:"locations"`
	Industries []string `json:"industries"`
}
