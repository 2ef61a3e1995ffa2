package main

import (
	"context"
	"fmt"
	"os"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/protonlink/webauth/cmd"
	"github.com/protonlink/webauth/ui/common"
	"github.com/spf13/cobra"
)

var (
	Version   = ""
	CommitSHA = ""

	rootCmd = &cobra.Command{
		Use:   "webauth",
		Short: "Log in and sign with your WebAuth wallet",
		Long: indent.String(wordwrap.String(fmt.Sprintf("\nLog in with a %s wallet on another device or this one, "+
			"then have it sign transactions. Run %s to host your own relay.", common.Keyword("WebAuth"), common.Code("webauth serve")), 78), 2),
		DisableFlagsInUseLine: true,
	}
)

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.AddCommand(
		cmd.LoginCmd,
		cmd.SignCmd,
		cmd.SessionCmd,
		cmd.LogoutCmd,
		cmd.WhereCmd,
		cmd.ServeCmd,
		cmd.CompletionCmd,
		cmd.ManCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
