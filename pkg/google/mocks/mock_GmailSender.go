package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"
)

// MockGmailSender is a mock type for the GmailSender interface.
type MockGmailSender struct {
	mock.Mock
}

// SendRaw provides a mock function with given fields: ctx, userID, raw
func (_m *MockGmailSender) SendRaw(ctx context.Context, userID string, raw string) (string, error) {
	ret := _m.Called(ctx, userID, raw)

	if len(ret) == 0 {
		panic("no return value specified for SendRaw")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, string) (string, error)); ok {
		return rf(ctx, userID, raw)
	}
	return ret.String(0), ret.Error(1)
}

// NewMockGmailSender creates a new instance of MockGmailSender. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockGmailSender(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGmailSender {
	m := &MockGmailSender{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
