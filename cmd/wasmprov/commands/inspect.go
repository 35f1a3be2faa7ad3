package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
	"github.com/Sumatoshi-tech/wasmprov/pkg/source"
	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm"
)

const fallbackRuleLabel = "(fallback)"

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the symbol tables of one module and the rule that classifies it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInspect(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	if strings.HasSuffix(path, source.Lz4Ext) {
		data, err = source.Decompress(data, 0)
		if err != nil {
			return err
		}
	}

	mod, err := wasm.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	imports := newPlainTable()
	imports.AppendHeader(table.Row{"Module", "Name", "Kind"})

	for _, imp := range mod.Imports {
		imports.AppendRow(table.Row{imp.Module, imp.Name, imp.Kind.String()})
	}

	exports := newPlainTable()
	exports.AppendHeader(table.Row{"Name", "Kind"})

	for _, exp := range mod.Exports {
		exports.AppendRow(table.Row{exp.Name, exp.Kind.String()})
	}

	verdict := classify.Default().Explain(mod)

	rule := verdict.Rule
	if rule == "" {
		rule = fallbackRuleLabel
	}

	_, err = fmt.Fprintf(w, "Imports (%d):\n%s\n\nExports (%d):\n%s\n\nCategory: %s\nRule: %s\n",
		len(mod.Imports), imports.Render(), len(mod.Exports), exports.Render(), verdict.Category, rule)
	if err != nil {
		return fmt.Errorf("write inspect output: %w", err)
	}

	return nil
}

func newPlainTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}
