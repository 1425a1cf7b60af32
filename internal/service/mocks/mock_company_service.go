package mocks

import (
	"context"

	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockCompanyService struct {
	mock.Mock
}

var _ service.CompanyService = (*MockCompanyService)(nil)

func (m *MockCompanyService) List(ctx context.Context, p query.Params) (*service.CompanyListResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CompanyListResult), args.Error(1)
}

func (m *MockCompanyService) Get(ctx context.Context, id string) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyService) Create(ctx context.Context, in model.CompanyInput) (*model.Company, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyService) FilterValues(ctx context.Context) (*model.FilterValues, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FilterValues), args.Error(1)
}
