package dockermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/envctl/internal/environment/docker"
)

// Invoker is a mock of docker.Invoker.
type Invoker struct {
	mock.Mock
}

var _ docker.Invoker = (*Invoker)(nil)

func (m *Invoker) Invoke(ctx context.Context, r docker.Request) (*docker.Response, error) {
	args := m.Called(ctx, r)

	var resp *docker.Response
	if rf, ok := args.Get(0).(func(context.Context, docker.Request) *docker.Response); ok {
		resp = rf(ctx, r)
	} else if args.Get(0) != nil {
		resp = args.Get(0).(*docker.Response)
	}

	return resp, args.Error(1)
}

// NewInvoker returns a new mock that asserts its expectations on test cleanup.
func NewInvoker(t interface {
	mock.TestingT
	Cleanup(func())
}) *Invoker {
	m := &Invoker{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
