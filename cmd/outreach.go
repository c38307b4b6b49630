package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var outreachLimit int

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Draft personalized first-touch messages for the saved stakeholders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Outreach(ctx, pipeline.OutreachOptions{Limit: outreachLimit})
		if err != nil {
			return stageOutcome(cmd.OutOrStdout(), err)
		}
		if err := env.afterStage(ctx, pipeline.StageOutreach); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Drafted %d messages for %d eligible stakeholders (%d skipped)\n",
			len(res.Messages), res.Eligible, res.Skipped)
		return nil
	},
}

func init() {
	outreachCmd.Flags().IntVar(&outreachLimit, "limit", 0, "max stakeholders to draft for (0 = all)")
	rootCmd.AddCommand(outreachCmd)
}
