package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/export"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write usable companies, stakeholders and outreach drafts to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		path := exportPath
		if path == "" {
			path = filepath.Join(cfg.Data.Dir, "leads.xlsx")
		}

		res, err := export.Workbook(ctx, env.Store, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d companies, %d stakeholders, %d messages\n",
			res.Path, res.Companies, res.Stakeholders, res.Outreach)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "workbook path (default <data.dir>/leads.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
