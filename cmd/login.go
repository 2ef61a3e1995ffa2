package cmd

import (
	"errors"
	"fmt"

	"github.com/protonlink/webauth/client"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/ui/common"
	"github.com/spf13/cobra"
)

// Default chain of the login command.
const (
	DefaultChainID  = "384da888112027f0321850a169f737c33e53b388aad48b5adace4bab97f437e0"
	DefaultChainURL = "https://proton.greymass.com"
)

var (
	loginChains     []string
	loginNodeURL    string
	loginApp        string
	loginPermission string
	loginJSON       bool

	// LoginCmd logs in with a wallet and stores the session.
	LoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in with your WebAuth wallet",
		Long: paragraph("Show a " + keyword("QR code") + " to scan with WebAuth on another device, or a link to open it on this one. " +
			"The session is stored so " + code("webauth sign") + " can reach the same wallet later."),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := loginContext()
			if err != nil {
				return err
			}
			cc, done, err := initClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			res, err := cc.Login(cmd.Context(), lc)
			if err != nil {
				return err
			}
			if loginJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			s, err := cc.Session()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sessionView(s))
			return nil
		},
	}
)

func loginContext() (proto.LoginContext, error) {
	lc := proto.LoginContext{AppName: loginApp}
	switch len(loginChains) {
	case 0:
		return lc, errors.New("at least one chain id is required")
	case 1:
		lc.Chain = &proto.ChainDefinition{ID: loginChains[0], URL: loginNodeURL}
	default:
		for _, id := range loginChains {
			lc.Chains = append(lc.Chains, proto.ChainDefinition{ID: id})
		}
	}
	if loginPermission != "" {
		p, err := proto.ParsePermissionLevel(loginPermission)
		if err != nil {
			return lc, err
		}
		lc.Permission = &p
	}
	return lc, nil
}

func init() {
	LoginCmd.Flags().StringSliceVarP(&loginChains, "chain", "c", []string{DefaultChainID}, "Chain id to log in to; repeat for a multi-chain login")
	LoginCmd.Flags().StringVar(&loginNodeURL, "node-url", DefaultChainURL, "API node of a single chain login")
	LoginCmd.Flags().StringVarP(&loginApp, "app", "a", "webauth", "Application name shown in the wallet")
	LoginCmd.Flags().StringVarP(&loginPermission, "permission", "p", "", "Only accept this actor@permission")
	LoginCmd.Flags().BoolVar(&loginJSON, "json", false, "Print the login result as JSON")
}

func sessionView(s *client.SessionData) string {
	rows := []string{
		"Account", s.Auth.String(),
		"Chain", s.Chain,
	}
	switch {
	case s.InBrowser:
		rows = append(rows, "Wallet", "browser")
	case s.ChannelName != "":
		rows = append(rows, "Wallet", s.ChannelName)
	}
	if s.SameDevice {
		rows = append(rows, "Same device", "yes")
	}
	return common.KeyValueView(rows...)
}
