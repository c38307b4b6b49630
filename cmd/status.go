package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spend against budget and what each stage has produced",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Ledger.Summary()
		if err != nil {
			return err
		}
		counts, err := env.Store.Counts(ctx)
		if err != nil {
			return err
		}

		printStatus(cmd.OutOrStdout(), sum, counts)
		return nil
	},
}

func printStatus(w io.Writer, sum *cost.Summary, counts store.Counts) {
	fmt.Fprintf(w, "Budget:    $%.2f\n", sum.TotalBudgetUSD)
	fmt.Fprintf(w, "Spent:     $%.4f (%.1f%%) over %d calls\n", sum.TotalCostUSD, sum.BudgetUsedPct, sum.TotalCalls)
	fmt.Fprintf(w, "Remaining: $%.4f\n\n", sum.BudgetRemainingUSD)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("MODULE", "ALLOCATED", "SPENT", "REMAINING", "USED")
	for _, m := range sum.Modules() {
		a := sum.Allocation[m]
		t.Row(m,
			fmt.Sprintf("$%.2f", a.AllocatedUSD),
			fmt.Sprintf("$%.4f", a.SpentUSD),
			fmt.Sprintf("$%.4f", a.RemainingUSD),
			fmt.Sprintf("%.1f%%", a.UtilizationPct),
		)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gatherings:   %d\n", counts.Gatherings)
	fmt.Fprintf(w, "Companies:    %d (%d usable)\n", counts.Companies, counts.UsableCompanies)
	fmt.Fprintf(w, "Stakeholders: %d (%d usable)\n", counts.Stakeholders, counts.UsableStakeholders)
	fmt.Fprintf(w, "Outreach:     %d\n\n", counts.Outreach)

	if next := nextStage(counts); next != "" {
		fmt.Fprintf(w, "Next: leadgen-cli %s\n", next)
	} else {
		fmt.Fprintln(w, "All stages have output. Next: leadgen-cli export")
	}
}

// nextStage names the first stage without usable output.
func nextStage(c store.Counts) string {
	switch {
	case c.Gatherings == 0:
		return pipeline.StageGather
	case c.UsableCompanies == 0:
		return pipeline.StageCompanies
	case c.UsableStakeholders == 0:
		return pipeline.StageStakeholders
	case c.Outreach == 0:
		return pipeline.StageOutreach
	default:
		return ""
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
