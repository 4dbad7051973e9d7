package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/envctl/internal/model"
)

// JSONPrinter prints instance information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// specItem represents a stored instance in the list output.
type specItem struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Target    string     `json:"target"`
	EnvPolicy string     `json:"env_policy"`
	Wrappers  []string   `json:"wrappers"`
	CreatedAt *time.Time `json:"created_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSpecs prints stored instances in JSON format.
func (j *JSONPrinter) PrintSpecs(specs []model.InstanceSpec) error {
	items := make([]specItem, len(specs))
	for i, s := range specs {
		items[i] = specItem{
			Name:      s.Name,
			Type:      string(s.Type),
			Target:    specTarget(s),
			EnvPolicy: string(specPolicy(s)),
			Wrappers:  s.Wrappers,
		}
		if items[i].Wrappers == nil {
			items[i].Wrappers = []string{}
		}
		if !s.CreatedAt.IsZero() {
			utcTime := s.CreatedAt.UTC()
			items[i].CreatedAt = &utcTime
		}
	}

	return j.encode(items)
}

// PrintInstances prints live instances in JSON format.
func (j *JSONPrinter) PrintInstances(instances []model.InstanceInfo) error {
	if instances == nil {
		instances = []model.InstanceInfo{}
	}
	return j.encode(instances)
}

// PrintInstance prints the flattened instance fields in JSON format.
func (j *JSONPrinter) PrintInstance(instance model.InstanceInfo) error {
	return j.encode(instance.Fields())
}

// PrintEntries prints a directory listing in JSON format.
func (j *JSONPrinter) PrintEntries(entries []model.FileEntry) error {
	if entries == nil {
		entries = []model.FileEntry{}
	}
	return j.encode(entries)
}

// PrintExecResult prints a command result in JSON format.
func (j *JSONPrinter) PrintExecResult(res model.ExecResult) error {
	return j.encode(res)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}
