package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the classification rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl := newPlainTable()
			tbl.AppendHeader(table.Row{"#", "Rule", "Category"})

			rules := classify.Default().Rules()
			for idx, rule := range rules {
				tbl.AppendRow(table.Row{idx + 1, rule.Name, rule.Category.String()})
			}

			tbl.AppendRow(table.Row{len(rules) + 1, fallbackRuleLabel, classify.Unknown.String()})

			_, err := fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
			if err != nil {
				return fmt.Errorf("write rules: %w", err)
			}

			return nil
		},
	}
}
