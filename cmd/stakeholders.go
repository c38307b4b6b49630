package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	stakeholdersLimitCompanies    int
	stakeholdersLimitStakeholders int
)

var stakeholdersCmd = &cobra.Command{
	Use:   "stakeholders",
	Short: "Identify decision-makers at the qualified companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Stakeholders(ctx, pipeline.StakeholderOptions{
			LimitCompanies:    stakeholdersLimitCompanies,
			LimitStakeholders: stakeholdersLimitStakeholders,
		})
		if err != nil {
			return stageOutcome(cmd.OutOrStdout(), err)
		}
		if err := env.afterStage(ctx, pipeline.StageStakeholders); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Saved %d stakeholders across %d companies (%d segment fallbacks, %d search queries)\n",
			len(res.Stakeholders), res.Companies, res.Fallbacks, res.Queries)
		return nil
	},
}

func init() {
	stakeholdersCmd.Flags().IntVar(&stakeholdersLimitCompanies, "limit-companies", 0, "max companies to process (0 = all)")
	stakeholdersCmd.Flags().IntVar(&stakeholdersLimitStakeholders, "limit-stakeholders", 0, "max stakeholders per company (0 = all)")
	rootCmd.AddCommand(stakeholdersCmd)
}
