package storage

import (
	"context"

	"github.com/slok/envctl/internal/model"
)

// InstanceRepository persists the specs of the created environment instances,
// so an instance created by one process can be rebuilt by another.
type InstanceRepository interface {
	CreateInstance(ctx context.Context, s model.InstanceSpec) error
	GetInstance(ctx context.Context, name string) (*model.InstanceSpec, error)
	ListInstances(ctx context.Context) ([]model.InstanceSpec, error)
	DeleteInstance(ctx context.Context, name string) error
}
