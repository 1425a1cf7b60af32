// Package seed loads company records into the directory through the
// service layer, so seeded data passes the same validation as the API.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/service"
	"companydir/internal/storage"
)

//go:embed companies.json
var defaultCompanies []byte

// Counter reports how many companies are stored.
type Counter interface {
	Count(ctx context.Context, f query.Filter) (int64, error)
}

// Options controls a seed run.
type Options struct {
	// IfEmpty skips the run when the store already holds companies.
	IfEmpty bool
}

// RowError records a rejected input row. Index is zero-based.
type RowError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Err   string `json:"error"`
}

// Result summarizes a seed run.
type Result struct {
	Created int
	Skipped bool
	Failed  []RowError
}

type Seeder struct {
	svc     service.CompanyService
	counter Counter
	logger  *zap.Logger
}

func New(svc service.CompanyService, counter Counter, logger *zap.Logger) *Seeder {
	return &Seeder{svc: svc, counter: counter, logger: logger.Named("seed")}
}

// Run decodes a JSON array of companies from r and creates each one.
// Rows failing validation are collected in Result.Failed; any other
// error aborts the run.
func (s *Seeder) Run(ctx context.Context, r io.Reader, opts Options) (Result, error) {
	var res Result

	if opts.IfEmpty {
		n, err := s.counter.Count(ctx, query.Filter{})
		if err != nil {
			return res, fmt.Errorf("count existing companies: %w", err)
		}
		if n > 0 {
			s.logger.Info("store not empty, skipping seed", zap.Int64("existing", n))
			res.Skipped = true
			return res, nil
		}
	}

	inputs, err := Decode(r)
	if err != nil {
		return res, err
	}

	for i, in := range inputs {
		c, err := s.svc.Create(ctx, in)
		if err != nil {
			if errors.Is(err, apperror.ErrValidation) {
				s.logger.Warn("seed row rejected", zap.Int("index", i), zap.String("name", in.Name), zap.Error(err))
				res.Failed = append(res.Failed, RowError{Index: i, Name: in.Name, Err: err.Error()})
				continue
			}
			return res, fmt.Errorf("seed row %d: %w", i, err)
		}
		res.Created++
		s.logger.Debug("seeded company", zap.String("company_id", c.ID), zap.String("name", c.Name))
	}

	s.logger.Info("seed finished",
		zap.Int("created", res.Created),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// Decode reads a JSON array of company inputs. Unknown fields are rejected.
func Decode(r io.Reader) ([]model.CompanyInput, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var inputs []model.CompanyInput
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	return inputs, nil
}

// Default returns the bundled sample dataset.
func Default() io.Reader {
	return bytes.NewReader(defaultCompanies)
}

// OpenFile opens a local seed file.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	return f, nil
}

// OpenObject streams a seed file from object storage.
func OpenObject(ctx context.Context, store storage.Storage, key string) (io.ReadCloser, error) {
	rc, _, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open seed object: %w", err)
	}
	return rc, nil
}
