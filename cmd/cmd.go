// Package cmd implements the Cobra commands for the webauth CLI.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/protonlink/webauth/client"
	"github.com/protonlink/webauth/kv"
	"github.com/protonlink/webauth/proto"
	"github.com/protonlink/webauth/ui/common"
	"github.com/protonlink/webauth/ui/prompt"
	"github.com/spf13/cobra"
)

const (
	wrapAt   = 78
	indentBy = 2
)

var (
	styles    = common.DefaultStyles()
	paragraph = styles.Paragraph.Render
	keyword   = styles.Keyword.Render
	code      = styles.Code.Render
)

func formatLong(s string) string {
	return indent.String(wordwrap.String("\n"+s, wrapAt), indentBy)
}

func printFormatted(w io.Writer, s string) {
	fmt.Fprintln(w, paragraph(s)+"\n")
}

func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getConfig() (*client.Config, error) {
	cfg, err := client.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}
	return cfg, nil
}

// setupLogging applies the log level and destination of cfg. The returned
// func closes the log file, if any.
func setupLogging(cfg *client.Config) (func(), error) {
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.Logfile == "" {
		return func() {}, nil
	}
	f, err := tea.LogToFile(cfg.Logfile, "webauth")
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }, nil
}

// printNavigator shows same-device URLs instead of opening them; a terminal
// has nowhere to navigate to.
type printNavigator struct {
	w io.Writer
}

func (n printNavigator) Navigate(url string) error {
	_, err := fmt.Fprintf(n.w, "Open in WebAuth: %s\n", url)
	return err
}

func newPrompter(cmd *cobra.Command) proto.Prompter {
	if isTTY() {
		return prompt.NewPrompter(tea.WithOutput(cmd.ErrOrStderr()))
	}
	return prompt.NewText(cmd.ErrOrStderr())
}

// initClient opens the session store and returns a client using it. The
// returned func releases the store.
func initClient(cmd *cobra.Command) (*client.Client, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := kv.OpenWithDefaults(cfg)
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("could not open session store: %w", err)
	}
	cc := client.NewClient(cfg,
		client.WithSessionStore(store),
		client.WithPrompter(newPrompter(cmd)),
		client.WithNavigator(printNavigator{cmd.ErrOrStderr()}),
	)
	return cc, func() {
		if err := store.Close(); err != nil {
			log.Warn("could not close session store", "err", err)
		}
		closeLog()
	}, nil
}
