package mocks

import (
	"companydir/internal/events"
	"companydir/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

var _ events.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(eventType events.EventType, company *model.Company) {
	m.Called(eventType, company)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
