// Package mocks provides testify mocks of the workflow interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rigor.dev/pkg/rigor/internal/workflow"
)

// MockWorkflow is a mock type for the Workflow type.
type MockWorkflow struct {
	mock.Mock
}

// NewMockWorkflow creates a new instance of MockWorkflow. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	mockWorkflow := &MockWorkflow{}
	mockWorkflow.Mock.Test(t)

	t.Cleanup(func() { mockWorkflow.AssertExpectations(t) })

	return mockWorkflow
}

// Discover provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) Discover(ctx context.Context, args workflow.DiscoverArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, workflow.DiscoverArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

// Run provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) Run(ctx context.Context, args workflow.RunArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, workflow.RunArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

// CheckHash provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) CheckHash(ctx context.Context, args workflow.HashArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, workflow.HashArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

// Call provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) Call(ctx context.Context, args workflow.CallArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, workflow.CallArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

// View provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) View(ctx context.Context, args workflow.ViewArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, workflow.ViewArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

var _ workflow.Workflow = (*MockWorkflow)(nil)
