package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/model"
)

// EnvironmentsYAMLRepository loads the declared environment instances from YAML files.
type EnvironmentsYAMLRepository struct {
	fs fs.FS
}

// NewEnvironmentsYAMLRepository creates a new YAML environments repository.
func NewEnvironmentsYAMLRepository(filesystem fs.FS) *EnvironmentsYAMLRepository {
	return &EnvironmentsYAMLRepository{fs: filesystem}
}

// GetEnvironments loads the environments file and returns validated instance specs
// in declaration order.
func (r *EnvironmentsYAMLRepository) GetEnvironments(ctx context.Context, path string) ([]model.InstanceSpec, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading environments file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var file EnvironmentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	specs := make([]model.InstanceSpec, 0, len(file.Environments))
	seen := map[string]bool{}
	for i, e := range file.Environments {
		s := e.toModel()
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid environment %d (%q): %w", i, e.Name, err)
		}
		if s.Name == conventions.LocalInstanceName {
			return nil, fmt.Errorf("environment name %q is reserved: %w", s.Name, model.ErrNotValid)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("environment %q declared more than once: %w", s.Name, model.ErrAlreadyExists)
		}
		seen[s.Name] = true
		specs = append(specs, s)
	}

	return specs, nil
}

// EnvironmentsFile represents the YAML structure of the environments file.
type EnvironmentsFile struct {
	Environments []EnvironmentConfig `yaml:"environments"`
}

// EnvironmentConfig represents the YAML structure of one environment instance.
type EnvironmentConfig struct {
	Name       string        `yaml:"name"`
	Type       string        `yaml:"type"`
	EnvPolicy  string        `yaml:"env_policy"`
	Wrappers   []string      `yaml:"wrappers"`
	Persistent bool          `yaml:"persistent"`
	WorkingDir string        `yaml:"working_dir"`
	Docker     *DockerConfig `yaml:"docker,omitempty"`
	SSH        *SSHConfig    `yaml:"ssh,omitempty"`
}

// DockerConfig represents the YAML structure for docker environments.
type DockerConfig struct {
	Image          string `yaml:"image"`
	AttachTo       string `yaml:"attach_to"`
	ComposeProject string `yaml:"compose_project"`
	WorkingDir     string `yaml:"working_dir"`
}

// SSHConfig represents the YAML structure for ssh environments.
type SSHConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	KeyFile string `yaml:"key_file"`
}

func (c EnvironmentConfig) toModel() model.InstanceSpec {
	s := model.InstanceSpec{
		Name:       c.Name,
		Type:       model.EnvType(c.Type),
		EnvPolicy:  model.EnvVarPolicy(c.EnvPolicy),
		Wrappers:   c.Wrappers,
		Persistent: c.Persistent,
	}

	switch s.Type {
	case model.EnvTypeLocal:
		s.Local = &model.LocalEnvConfig{WorkingDir: c.WorkingDir}
	case model.EnvTypeDocker:
		if c.Docker != nil {
			workDir := c.Docker.WorkingDir
			if workDir == "" {
				workDir = c.WorkingDir
			}
			s.Docker = &model.DockerEnvConfig{
				Image:          c.Docker.Image,
				AttachTo:       c.Docker.AttachTo,
				ComposeProject: c.Docker.ComposeProject,
				WorkingDir:     workDir,
			}
		}
	case model.EnvTypeSSH:
		if c.SSH != nil {
			s.SSH = &model.SSHEnvConfig{
				Host:    c.SSH.Host,
				Port:    c.SSH.Port,
				User:    c.SSH.User,
				KeyFile: c.SSH.KeyFile,
			}
		}
	}

	return s
}
