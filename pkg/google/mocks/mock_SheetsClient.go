// Package mocks provides test doubles for the google adapters.
package mocks

import (
	"context"

	google "github.com/sells-group/leadflow/pkg/google"
	mock "github.com/stretchr/testify/mock"
)

// MockSheetsClient is a mock type for the SheetsClient interface.
type MockSheetsClient struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, spreadsheetID, rng
func (_m *MockSheetsClient) Get(ctx context.Context, spreadsheetID string, rng string) ([][]string, error) {
	ret := _m.Called(ctx, spreadsheetID, rng)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 [][]string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) ([][]string, error)); ok {
		return rf(ctx, spreadsheetID, rng)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([][]string)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// BatchUpdate provides a mock function with given fields: ctx, spreadsheetID, cells
func (_m *MockSheetsClient) BatchUpdate(ctx context.Context, spreadsheetID string, cells []google.CellValue) error {
	ret := _m.Called(ctx, spreadsheetID, cells)

	if len(ret) == 0 {
		panic("no return value specified for BatchUpdate")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, []google.CellValue) error); ok {
		return rf(ctx, spreadsheetID, cells)
	}
	return ret.Error(0)
}

// NewMockSheetsClient creates a new instance of MockSheetsClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSheetsClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSheetsClient {
	m := &MockSheetsClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
