package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	companiesLimitGatherings int
	companiesLimitCompanies  int
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Find and qualify companies connected to the saved gatherings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Companies(ctx, pipeline.CompanyOptions{
			LimitGatherings: companiesLimitGatherings,
			LimitCompanies:  companiesLimitCompanies,
		})
		if err != nil {
			return stageOutcome(cmd.OutOrStdout(), err)
		}
		if err := env.afterStage(ctx, pipeline.StageCompanies); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %d companies from %d candidates (%d qualified)\n",
			len(res.Companies), res.Candidates, res.Qualified)
		for _, c := range res.Companies {
			if !c.Usable() {
				continue
			}
			fmt.Fprintf(out, "  %-13s %4.1f  %s\n", c.LeadPriority, c.QualificationScore, c.Name)
		}
		return nil
	},
}

func init() {
	companiesCmd.Flags().IntVar(&companiesLimitGatherings, "limit-gatherings", 0, "max gatherings to search (0 = all)")
	companiesCmd.Flags().IntVar(&companiesLimitCompanies, "limit-companies", 0, "max companies to qualify (0 = all)")
	rootCmd.AddCommand(companiesCmd)
}
