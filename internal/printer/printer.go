package printer

import (
	"fmt"

	"github.com/slok/envctl/internal/model"
)

// Printer knows how to print instance information in different formats.
type Printer interface {
	PrintSpecs(specs []model.InstanceSpec) error
	PrintInstances(instances []model.InstanceInfo) error
	PrintInstance(instance model.InstanceInfo) error
	PrintEntries(entries []model.FileEntry) error
	PrintExecResult(res model.ExecResult) error
	PrintMessage(msg string) error
}

// specTarget returns where an instance runs in a short form.
func specTarget(s model.InstanceSpec) string {
	switch {
	case s.Local != nil:
		return s.Local.WorkingDir
	case s.Docker != nil && s.Docker.AttachTo != "":
		return "attach:" + s.Docker.AttachTo
	case s.Docker != nil && s.Docker.ContainerID != "":
		return shortID(s.Docker.ContainerID)
	case s.Docker != nil:
		return s.Docker.Image
	case s.SSH != nil && s.SSH.User != "":
		return s.SSH.User + "@" + s.SSH.Host
	case s.SSH != nil:
		return s.SSH.Host
	}
	return ""
}

// infoTarget returns where a live instance runs from its backend fields.
func infoTarget(i model.InstanceInfo) string {
	for _, k := range []string{"host", "working_dir"} {
		if v, ok := i.Backend[k]; ok {
			return fmt.Sprint(v)
		}
	}
	return "-"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func specPolicy(s model.InstanceSpec) model.EnvVarPolicy {
	if s.EnvPolicy == "" {
		return model.DefaultEnvVarPolicy
	}
	return s.EnvPolicy
}
