package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: "Runs gather, companies, stakeholders and outreach in sequence, writing a usage " +
		"report after each. Stops cleanly at the first stage with nothing to work on.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := runOptions()

		out := cmd.OutOrStdout()
		err = env.Pipeline.Run(ctx, opts, func(stage string) error {
			zap.L().Info("stage complete", zap.String("stage", stage))
			fmt.Fprintf(out, "%s done\n", stage)
			return env.afterStage(ctx, stage)
		})
		if err != nil {
			return stageOutcome(out, err)
		}

		sum, err := env.Ledger.Summary()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pipeline complete: $%.2f spent, $%.2f remaining\n",
			sum.TotalCostUSD, sum.BudgetRemainingUSD)
		return nil
	},
}

// runOptions collects the per-stage limits bound to the run flags.
func runOptions() pipeline.RunOptions {
	return pipeline.RunOptions{
		Gather: pipeline.GatherOptions{Limit: gatherLimit},
		Companies: pipeline.CompanyOptions{
			LimitGatherings: companiesLimitGatherings,
			LimitCompanies:  companiesLimitCompanies,
		},
		Stakeholders: pipeline.StakeholderOptions{
			LimitCompanies:    stakeholdersLimitCompanies,
			LimitStakeholders: stakeholdersLimitStakeholders,
		},
		Outreach: pipeline.OutreachOptions{Limit: outreachLimit},
	}
}

func init() {
	runCmd.Flags().IntVar(&gatherLimit, "limit-gatherings-analyzed", 0, "max gatherings to analyze (0 = all)")
	runCmd.Flags().IntVar(&companiesLimitGatherings, "limit-gatherings", 0, "max gatherings to search for companies (0 = all)")
	runCmd.Flags().IntVar(&companiesLimitCompanies, "limit-companies", 0, "max companies to qualify (0 = all)")
	runCmd.Flags().IntVar(&stakeholdersLimitCompanies, "limit-stakeholder-companies", 0, "max companies to identify stakeholders at (0 = all)")
	runCmd.Flags().IntVar(&stakeholdersLimitStakeholders, "limit-stakeholders", 0, "max stakeholders per company (0 = all)")
	runCmd.Flags().IntVar(&outreachLimit, "limit-outreach", 0, "max stakeholders to draft for (0 = all)")
	rootCmd.AddCommand(runCmd)
}
