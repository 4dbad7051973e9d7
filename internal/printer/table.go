package printer

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/slok/envctl/internal/model"
)

// TablePrinter prints instance information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintSpecs prints stored instances in a table format.
func (t *TablePrinter) PrintSpecs(specs []model.InstanceSpec) error {
	if len(specs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "NAME\tTYPE\tTARGET\tENV POLICY\tWRAPPERS\tCREATED")

	// Print rows
	for _, s := range specs {
		wrappers := strings.Join(s.Wrappers, ",")
		if wrappers == "" {
			wrappers = "-"
		}
		created := "-"
		if !s.CreatedAt.IsZero() {
			created = TimeAgo(s.CreatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, s.Type, specTarget(s), specPolicy(s), wrappers, created)
	}

	return nil
}

// PrintInstances prints live instances in a table format.
func (t *TablePrinter) PrintInstances(instances []model.InstanceInfo) error {
	if len(instances) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tTYPE\tOWNED\tTARGET")
	for _, i := range instances {
		owned := "no"
		if i.Owned {
			owned = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.Name, i.Type, owned, infoTarget(i))
	}

	return nil
}

// PrintInstance prints detailed instance information.
func (t *TablePrinter) PrintInstance(instance model.InstanceInfo) error {
	fields := instance.Fields()
	keys := slices.Sorted(maps.Keys(fields))

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Name and type first, the rest sorted.
	fmt.Fprintf(tw, "name:\t%v\n", fields["name"])
	fmt.Fprintf(tw, "type:\t%v\n", fields["type"])
	for _, k := range keys {
		if k == "name" || k == "type" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%v\n", k, fields[k])
	}

	return nil
}

// PrintEntries prints a directory listing, directories end with a slash.
func (t *TablePrinter) PrintEntries(entries []model.FileEntry) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	for _, e := range entries {
		size := "-"
		name := e.Name
		if e.IsDir() {
			name += "/"
		} else if e.Size != nil {
			size = FormatBytes(*e.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\n", size, name)
	}

	return nil
}

// PrintExecResult prints the command output as is, stderr is printed after stdout.
func (t *TablePrinter) PrintExecResult(res model.ExecResult) error {
	fmt.Fprint(t.writer, res.Stdout)
	fmt.Fprint(t.writer, res.Stderr)
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
