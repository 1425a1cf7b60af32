package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"companydir/internal/apperror"
	"companydir/internal/events"
	"companydir/internal/logger"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/repository"
)

// Pagination describes the window a list result was cut from.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// CompanyListResult is the service-level DTO for a page of companies.
type CompanyListResult struct {
	Companies  []model.Company `json:"companies"`
	Pagination Pagination      `json:"pagination"`
}

// CompanyService defines the use cases for the company directory.
type CompanyService interface {
	// List builds a query from raw parameters and returns one page plus the
	// total number of matches.
	List(ctx context.Context, p query.Params) (*CompanyListResult, error)

	// Get returns a single company. Malformed ids fail with apperror.ErrInvalidID
	// before the store is consulted.
	Get(ctx context.Context, id string) (*model.Company, error)

	// Create validates, defaults and persists a new company, then publishes
	// a company_created event.
	Create(ctx context.Context, in model.CompanyInput) (*model.Company, error)

	// FilterValues returns the distinct locations and industries.
	FilterValues(ctx context.Context) (*model.FilterValues, error)
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	Builder      query.Builder
	StoreTimeout time.Duration
	// Redis caches filter values when set.
	Redis    *redis.Client
	CacheTTL time.Duration
}

const (
	defaultStoreTimeout = 5 * time.Second
	defaultCacheTTL     = 10 * time.Minute

	// FilterValuesCacheKey holds the JSON encoded filter values together with
	// the generation they were loaded under.
	FilterValuesCacheKey = "companydir:filter_values"
	// FilterValuesGenKey is incremented on every create.
	FilterValuesGenKey = "companydir:filter_values:gen"
)

type companyService struct {
	repo      repository.CompanyRepository
	publisher events.Publisher
	builder   query.Builder
	validate  *validator.Validate
	timeout   time.Duration
	rdb       *redis.Client
	cacheTTL  time.Duration
	sf        *singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// NewCompanyService constructs a new CompanyService. A nil publisher disables events.
func NewCompanyService(repo repository.CompanyRepository, publisher events.Publisher, log *zap.Logger, cfg Config) CompanyService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.Builder.DefaultLimit == 0 || cfg.Builder.MaxLimit == 0 {
		cfg.Builder = query.NewBuilder(cfg.Builder.DefaultLimit, cfg.Builder.MaxLimit)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &companyService{
		repo:      repo,
		publisher: publisher,
		builder:   cfg.Builder,
		validate:  newValidator(time.Now),
		timeout:   cfg.StoreTimeout,
		rdb:       cfg.Redis,
		cacheTTL:  cfg.CacheTTL,
		sf:        &singleflight.Group{},
		logger:    log.Named("company_service"),
		now:       time.Now,
	}
}

func (s *companyService) List(ctx context.Context, p query.Params) (*CompanyListResult, error) {
	q, err := s.builder.Build(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, s.storeError(ctx, "find companies", err)
	}
	total, err := s.repo.Count(ctx, q.Filter)
	if err != nil {
		return nil, s.storeError(ctx, "count companies", err)
	}
	if items == nil {
		items = []model.Company{}
	}

	return &CompanyListResult{
		Companies: items,
		Pagination: Pagination{
			Page:  q.Window.Page,
			Limit: q.Window.Limit,
			Total: total,
			Pages: query.Pages(total, q.Window.Limit),
		},
	}, nil
}

func (s *companyService) Get(ctx context.Context, id string) (*model.Company, error) {
	id = strings.TrimSpace(id)
	if id == "" || !s.repo.ValidID(id) {
		return nil, apperror.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrInvalidID) {
			return nil, err
		}
		return nil, s.storeError(ctx, "find company", err)
	}
	return c, nil
}

func (s *companyService) Create(ctx context.Context, in model.CompanyInput) (*model.Company, error) {
	in = normalize(in)
	if verr := s.validateInput(in); verr.HasErrors() {
		return nil, verr
	}

	now := s.now().UTC()
	c := &model.Company{
		Name:        in.Name,
		Location:    in.Location,
		Industry:    in.Industry,
		Description: in.Description,
		Website:     in.Website,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Employees != nil {
		c.Employees = *in.Employees
	}
	if in.Founded != nil {
		founded := *in.Founded
		c.Founded = &founded
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, s.storeError(ctx, "create company", err)
	}

	logger.For(ctx, s.logger).Info("company created",
		zap.String("company_id", created.ID),
		zap.String("name", created.Name),
	)
	s.invalidateFilterValues(ctx)
	s.publisher.Publish(events.CompanyCreated, created)
	return created, nil
}

func (s *companyService) FilterValues(ctx context.Context) (*model.FilterValues, error) {
	gen, cacheable := "0", false
	if s.rdb != nil {
		var hit *model.FilterValues
		gen, hit, cacheable = s.readFilterValues(ctx)
		if hit != nil {
			return hit, nil
		}
	}

	// The load is shared, so it must not die with whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(FilterValuesCacheKey+":"+gen, func() (interface{}, error) {
		fv, err := s.loadFilterValues(loadCtx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.writeFilterValues(loadCtx, gen, fv)
		}
		return fv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.FilterValues), nil
}

// cachedFilterValues is the Redis payload. Gen is the value of
// FilterValuesGenKey the entry was loaded under.
type cachedFilterValues struct {
	Gen    string             `json:"gen"`
	Values model.FilterValues `json:"values"`
}

// readFilterValues returns the current generation and the cached values when
// they belong to it. cacheable is false when Redis could not be read, since
// the generation is then unknown.
func (s *companyService) readFilterValues(ctx context.Context) (gen string, hit *model.FilterValues, cacheable bool) {
	vals, err := s.rdb.MGet(ctx, FilterValuesGenKey, FilterValuesCacheKey).Result()
	if err != nil {
		logger.For(ctx, s.logger).Warn("filter values cache read failed", zap.Error(err))
		return "0", nil, false
	}
	gen = "0"
	if g, ok := vals[0].(string); ok {
		gen = g
	}
	raw, ok := vals[1].(string)
	if !ok {
		return gen, nil, true
	}
	var entry cachedFilterValues
	if json.Unmarshal([]byte(raw), &entry) != nil || entry.Gen != gen {
		return gen, nil, true
	}
	return gen, &entry.Values, true
}

func (s *companyService) writeFilterValues(ctx context.Context, gen string, fv *model.FilterValues) {
	data, err := json.Marshal(cachedFilterValues{Gen: gen, Values: *fv})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.rdb.Set(ctx, FilterValuesCacheKey, data, s.cacheTTL).Err(); err != nil {
		logger.For(ctx, s.logger).Warn("filter values cache write failed", zap.Error(err))
	}
}

// invalidateFilterValues bumps the generation. Entries written by loads that
// started before the bump no longer match and are ignored on read.
func (s *companyService) invalidateFilterValues(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	// The company is already stored; a caller hanging up must not skip the bump.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.rdb.Incr(ctx, FilterValuesGenKey).Err(); err != nil {
		logger.For(ctx, s.logger).Error("failed to invalidate filter values cache",
			zap.String("key", FilterValuesGenKey),
			zap.Error(err),
		)
	}
}

func (s *companyService) loadFilterValues(ctx context.Context) (*model.FilterValues, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	locations, err := s.repo.Distinct(ctx, repository.FieldLocation)
	if err != nil {
		return nil, s.storeError(ctx, "distinct locations", err)
	}
	industries, err := s.repo.Distinct(ctx, repository.FieldIndustry)
	if err != nil {
		return nil, s.storeError(ctx, "distinct industries", err)
	}
	if locations == nil {
		locations = []string{}
	}
	if industries == nil {
		industries = []string{}
	}
	return &model.FilterValues{Locations: locations, Industries: industries}, nil
}

// storeError wraps a repository failure. Deadline and cancellation errors
// that the backend did not already classify become ErrStoreUnavailable.
func (s *companyService) storeError(ctx context.Context, op string, err error) error {
	if !errors.Is(err, apperror.ErrStoreUnavailable) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = fmt.Errorf("%w: %v", apperror.ErrStoreUnavailable, err)
	}
	if errors.Is(err, apperror.ErrStoreUnavailable) {
		logger.For(ctx, s.logger).Warn("store unavailable", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalize(in model.CompanyInput) model.CompanyInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.Industry = strings.TrimSpace(in.Industry)
	in.Description = strings.TrimSpace(in.Description)
	in.Website = strings.TrimSpace(in.Website)
	return in
}

func newValidator(now func() time.Time) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// pastyear: an integer year no later than the current one.
	_ = v.RegisterValidation("pastyear", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(now().Year())
	})
	return v
}

func (s *companyService) validateInput(in model.CompanyInput) *apperror.ValidationError {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation("body", err.Error())
	}
	out := &apperror.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid absolute URL"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "pastyear":
		return "must not be in the future"
	default:
		return "is invalid"
	}
}
