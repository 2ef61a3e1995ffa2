package cmd

import (
	"errors"
	"fmt"

	"github.com/protonlink/webauth/proto"
	"github.com/spf13/cobra"
)

var sessionJSON bool

// SessionCmd prints the stored session.
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, done, err := initClient(cmd)
		if err != nil {
			return err
		}
		defer done()

		s, err := cc.Session()
		if errors.Is(err, proto.ErrMissingSession) {
			printFormatted(cmd.OutOrStdout(), "You're not logged in. Run "+code("webauth login")+" to get started.")
			return nil
		}
		if err != nil {
			return err
		}
		if sessionJSON {
			// Keys stay on this machine.
			s.PrivateKey = ""
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sessionView(s))
		return nil
	},
}

// LogoutCmd forgets the stored session.
var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, done, err := initClient(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := cc.Logout(); err != nil {
			return err
		}
		printFormatted(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	SessionCmd.Flags().BoolVar(&sessionJSON, "json", false, "Print the session as JSON")
}
