package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/printer"
)

func specsFixture() []model.InstanceSpec {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return []model.InstanceSpec{
		{
			Name:      "box",
			Type:      model.EnvTypeDocker,
			Wrappers:  []string{"logging", "readonly"},
			CreatedAt: createdAt,
			Docker:    &model.DockerEnvConfig{Image: "python:3.12", ContainerID: "0123456789abcdef0123"},
		},
		{
			Name:      "pi",
			Type:      model.EnvTypeSSH,
			EnvPolicy: model.EnvVarPolicyInheritNone,
			SSH:       &model.SSHEnvConfig{Host: "voicebox", User: "pi"},
		},
	}
}

func TestTablePrinterPrintSpecs(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintSpecs(specsFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "TYPE", "TARGET", "ENV", "POLICY", "WRAPPERS", "CREATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"box", "docker", "0123456789ab", "core_only", "logging,readonly"}, strings.Fields(lines[1])[:5])
	assert.Equal(t, []string{"pi", "ssh", "pi@voicebox", "inherit_none", "-", "-"}, strings.Fields(lines[2]))
}

func TestJSONPrinterPrintSpecs(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintSpecs(specsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"target": "0123456789ab"`)
	assert.Contains(t, out, `"created_at": "2026-01-30T10:00:00Z"`)
	assert.Contains(t, out, `"created_at": null`)
	assert.Contains(t, out, `"wrappers": []`)
}

func TestTablePrinterPrintInstance(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintInstance(model.InstanceInfo{
		Name:    "box",
		Type:    model.EnvTypeDocker,
		Owned:   true,
		Backend: map[string]any{"container_id": "c1", "working_dir": "/workspace"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"name:", "box"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"type:", "docker"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"container_id:", "c1"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"owned:", "true"}, strings.Fields(lines[4]))
}

func TestTablePrinterPrintInstances(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintInstances([]model.InstanceInfo{
		{Name: "local", Type: model.EnvTypeLocal, Owned: true, Backend: map[string]any{"working_dir": "/src"}},
		{Name: "pi", Type: model.EnvTypeSSH, Backend: map[string]any{"host": "voicebox"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"local", "local", "yes", "/src"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"pi", "ssh", "no", "voicebox"}, strings.Fields(lines[2]))
}

func TestTablePrinterPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	size := int64(1536)
	err := p.PrintEntries([]model.FileEntry{
		{Name: "main.go", Type: model.EntryTypeFile, Size: &size},
		{Name: "pkg", Type: model.EntryTypeDir},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"1.5", "KB", "main.go"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"-", "pkg/"}, strings.Fields(lines[1]))
}

func TestJSONPrinterPrintExecResult(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintExecResult(model.ExecResult{Stderr: "boom", ExitCode: model.ExitCodeTimeout, TimedOut: true, DurationMS: 100})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"exit_code": -1`)
	assert.Contains(t, out, `"timed_out": true`)
	assert.Contains(t, out, `"duration_ms": 100`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
