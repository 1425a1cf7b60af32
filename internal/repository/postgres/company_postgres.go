package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/repository"
)

const companyColumns = `id, name, location, industry, description, website, employees, founded, created_at, updated_at`

// sortColumns whitelists ORDER BY targets; user input never reaches SQL text.
var sortColumns = map[query.Field]string{
	query.FieldName:      "name",
	query.FieldLocation:  "location",
	query.FieldIndustry:  "industry",
	query.FieldEmployees: "employees",
	query.FieldFounded:   "founded",
}

var distinctColumns = map[string]string{
	repository.FieldLocation: "location",
	repository.FieldIndustry: "industry",
}

// CompanyPostgres is a PostgreSQL implementation of repository.CompanyRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type CompanyPostgres struct {
	db *sql.DB
}

// NewCompanyPostgres creates a new CompanyPostgres repository.
func NewCompanyPostgres(db *sql.DB) *CompanyPostgres {
	return &CompanyPostgres{db: db}
}

var _ repository.CompanyRepository = (*CompanyPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (model.Company, error) {
	var (
		c           model.Company
		description sql.NullString
		website     sql.NullString
		founded     sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Location,
		&c.Industry,
		&description,
		&website,
		&c.Employees,
		&founded,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return model.Company{}, err
	}
	c.Description = description.String
	c.Website = website.String
	if founded.Valid {
		year := int(founded.Int64)
		c.Founded = &year
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// Create inserts a new company row with a generated UUID and returns the stored record.
func (r *CompanyPostgres) Create(ctx context.Context, c *model.Company) (*model.Company, error) {
	const q = `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + companyColumns
	var founded any
	if c.Founded != nil {
		founded = *c.Founded
	}
	row := r.db.QueryRowContext(ctx, q,
		uuid.NewString(),
		c.Name,
		c.Location,
		c.Industry,
		nullString(c.Description),
		nullString(c.Website),
		c.Employees,
		founded,
		c.CreatedAt,
		c.UpdatedAt,
	)
	out, err := scanCompany(row)
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// FindByID fetches a single company by its ID.
func (r *CompanyPostgres) FindByID(ctx context.Context, id string) (*model.Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	out, err := scanCompany(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// Find returns one LIMIT/OFFSET window of matching rows.
func (r *CompanyPostgres) Find(ctx context.Context, q query.Query) ([]model.Company, error) {
	where, args := BuildWhere(q.Filter)
	n := len(args)
	stmt := `SELECT ` + companyColumns + ` FROM companies` + where +
		` ORDER BY ` + BuildOrderBy(q.Sort) +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, q.Window.Limit, q.Window.Offset())

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	items := make([]model.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, translate(err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return items, nil
}

// Count returns the number of rows matching f.
func (r *CompanyPostgres) Count(ctx context.Context, f query.Filter) (int64, error) {
	where, args := BuildWhere(f)
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`+where, args...).Scan(&total); err != nil {
		return 0, translate(err)
	}
	return total, nil
}

// Distinct returns the sorted distinct non-empty values of field.
func (r *CompanyPostgres) Distinct(ctx context.Context, field string) ([]string, error) {
	col, ok := distinctColumns[field]
	if !ok {
		return nil, fmt.Errorf("distinct: unsupported field %q", field)
	}
	stmt := `SELECT DISTINCT ` + col + ` FROM companies WHERE ` + col + ` <> '' ORDER BY ` + col
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, translate(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// ValidID accepts UUIDs, the primary key type of the companies table.
func (r *CompanyPostgres) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *CompanyPostgres) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return translate(err)
	}
	return nil
}

func (r *CompanyPostgres) Close(context.Context) error {
	return r.db.Close()
}

// BuildWhere renders f as a WHERE clause (with leading space) plus its
// positional arguments. Patterns are matched with ILIKE after escaping
// LIKE metacharacters; the search pattern is bound once and reused.
func BuildWhere(f query.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, c := range []struct {
		col     string
		pattern string
	}{
		{"name", f.Name},
		{"location", f.Location},
		{"industry", f.Industry},
	} {
		if c.pattern == "" {
			continue
		}
		args = append(args, likePattern(c.pattern))
		clauses = append(clauses, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, c.col, len(args)))
	}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		p := len(args)
		ors := make([]string, 0, len(query.SearchFields))
		for _, col := range query.SearchFields {
			ors = append(ors, fmt.Sprintf(`COALESCE(%s, '') ILIKE $%d ESCAPE '\'`, col, p))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// BuildOrderBy renders the ORDER BY list with id as tie-breaker. Missing
// founded years sort first ascending and last descending.
func BuildOrderBy(s query.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = "name"
	}
	dir := "ASC NULLS FIRST"
	if s.Descending() {
		dir = "DESC NULLS LAST"
	}
	return col + " " + dir + ", id ASC"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(p string) string {
	return "%" + likeEscaper.Replace(p) + "%"
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func translate(err error) error {
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperror.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &connErr),
		pgconn.Timeout(err):
		return fmt.Errorf("%w: %v", apperror.ErrStoreUnavailable, err)
	default:
		return err
	}
}
