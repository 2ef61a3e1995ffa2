package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// WhereCmd prints the directory sessions are kept in.
var WhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Find where your webauth data folder resides on your machine",
	Long:  paragraph("Find the absolute path to the " + keyword("session store") + " of the current scheme."),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		path, err := cfg.DataPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
