package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/protonlink/webauth/proto"
	"github.com/spf13/cobra"
)

// SignCmd has the session's wallet sign a transaction.
var SignCmd = &cobra.Command{
	Use:   "sign FILE",
	Short: "Sign a transaction with the wallet of your session",
	Long: paragraph("Read a resolved transaction as JSON from " + code("FILE") + " (or standard input with " + code("-") + ") " +
		"and ask the wallet you logged in with to sign it. The signatures are printed as JSON."),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := readTransaction(cmd, args[0])
		if err != nil {
			return err
		}
		cc, done, err := initClient(cmd)
		if err != nil {
			return err
		}
		defer done()

		res, err := cc.Sign(cmd.Context(), rt)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func readTransaction(cmd *cobra.Command, path string) (proto.ResolvedTransaction, error) {
	var rt proto.ResolvedTransaction
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return rt, err
		}
		defer f.Close() // nolint:errcheck
		r = f
	}
	if err := json.NewDecoder(r).Decode(&rt); err != nil {
		return rt, fmt.Errorf("could not read transaction: %w", err)
	}
	if rt.ChainID == "" {
		return rt, fmt.Errorf("transaction has no chain_id")
	}
	return rt, nil
}
