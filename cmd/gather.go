package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var gatherLimit int

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Discover and rank industry events and associations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Gather(ctx, pipeline.GatherOptions{Limit: gatherLimit})
		if err != nil {
			return stageOutcome(cmd.OutOrStdout(), err)
		}
		if err := env.afterStage(ctx, pipeline.StageGather); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %d gatherings (%d discovered, %d analyzed)\n",
			len(res.Gatherings), res.Discovered, res.Analyzed)
		for i, g := range res.Gatherings {
			if i == 5 {
				break
			}
			fmt.Fprintf(out, "  %-6s %4.1f  %s\n", g.Priority, g.RelevanceScore, g.Name)
		}
		return nil
	},
}

func init() {
	gatherCmd.Flags().IntVar(&gatherLimit, "limit", 0, "max gatherings to analyze (0 = all)")
	rootCmd.AddCommand(gatherCmd)
}
