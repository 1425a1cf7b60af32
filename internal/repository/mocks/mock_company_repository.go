package mocks

import (
	"context"

	"companydir/internal/model"
	"companydir/internal/query"
	"github.com/stretchr/testify/mock"
)

type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) Create(ctx context.Context, c *model.Company) (*model.Company, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyRepository) FindByID(ctx context.Context, id string) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyRepository) Find(ctx context.Context, q query.Query) ([]model.Company, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Company), args.Error(1)
}

func (m *MockCompanyRepository) Count(ctx context.Context, f query.Filter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCompanyRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	args := m.Called(ctx, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCompanyRepository) ValidID(id string) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *MockCompanyRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCompanyRepository) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
