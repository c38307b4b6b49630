package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directories and an empty usage ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := []string{cfg.Data.ReportDir()}
		for _, k := range store.Kinds {
			dirs = append(dirs, filepath.Join(cfg.Data.Dir, string(k)))
		}
		for _, d := range dirs {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return eris.Wrapf(err, "create %s", d)
			}
		}

		ledger := newLedger(cfg)
		if err := ledger.Init(); err != nil {
			return err
		}

		if cfg.Store.Driver == "sqlite" {
			st, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return eris.Wrap(err, "open store")
			}
			_ = st.Close()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Initialized %s (ledger %s)\n", cfg.Data.Dir, ledger.Path())
		fmt.Fprintf(out, "Budget: $%.2f. Next: leadgen-cli gather\n", cfg.Budget.TotalUSD)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
