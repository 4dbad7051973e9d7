package model

import (
	"fmt"
	"time"
)

// InstanceInfo is a display snapshot of a registered environment instance.
type InstanceInfo struct {
	Name     string         `json:"name"`
	Type     EnvType        `json:"type"`
	Metadata map[string]any `json:"metadata"`
	Owned    bool           `json:"owned"`
	// Backend holds the backend's own diagnostic fields.
	Backend map[string]any `json:"backend"`
}

// Fields returns the flattened view of the instance, backend fields merged
// with the registry fields (registry fields win on conflict).
func (i InstanceInfo) Fields() map[string]any {
	fields := make(map[string]any, len(i.Backend)+4)
	for k, v := range i.Backend {
		fields[k] = v
	}
	fields["name"] = i.Name
	fields["type"] = string(i.Type)
	fields["metadata"] = i.Metadata
	fields["owned"] = i.Owned
	return fields
}

// InstanceSpec is the static configuration needed to (re)build an environment instance.
type InstanceSpec struct {
	Name      string
	Type      EnvType
	EnvPolicy EnvVarPolicy
	// Wrappers are the wrapper names to apply (logging, readonly).
	Wrappers   []string
	Persistent bool
	CreatedAt  time.Time

	Local  *LocalEnvConfig
	Docker *DockerEnvConfig
	SSH    *SSHEnvConfig
}

// LocalEnvConfig is the local backend specific configuration.
type LocalEnvConfig struct {
	WorkingDir string
}

// DockerEnvConfig is the docker backend specific configuration.
type DockerEnvConfig struct {
	// Image is used when a new container is created.
	Image string
	// ContainerID is the container the backend talks to, set once created.
	ContainerID string
	// AttachTo is an existing container (or compose service) to attach to
	// instead of creating one, attached containers are never owned.
	AttachTo       string
	ComposeProject string
	WorkingDir     string
}

// SSHEnvConfig is the ssh backend specific configuration.
type SSHEnvConfig struct {
	Host    string
	Port    int
	User    string
	KeyFile string
}

// Validate validates the instance spec.
func (s InstanceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}

	if err := s.Type.Validate(); err != nil {
		return err
	}

	if s.EnvPolicy != "" {
		if err := s.EnvPolicy.Validate(); err != nil {
			return err
		}
	}

	for _, w := range s.Wrappers {
		switch w {
		case WrapperLogging, WrapperReadOnly:
		default:
			return fmt.Errorf("unknown wrapper %q (must be logging or readonly): %w", w, ErrNotValid)
		}
	}

	switch s.Type {
	case EnvTypeDocker:
		if s.Docker == nil {
			return fmt.Errorf("docker configuration is required: %w", ErrNotValid)
		}
		if s.Docker.Image == "" && s.Docker.AttachTo == "" && s.Docker.ContainerID == "" {
			return fmt.Errorf("docker image or container to attach to is required: %w", ErrNotValid)
		}
	case EnvTypeSSH:
		if s.SSH == nil || s.SSH.Host == "" {
			return fmt.Errorf("ssh host is required: %w", ErrNotValid)
		}
	}

	return nil
}

// Wrapper names.
const (
	WrapperLogging  = "logging"
	WrapperReadOnly = "readonly"
)
