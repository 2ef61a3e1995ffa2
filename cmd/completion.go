package cmd

import (
	"github.com/spf13/cobra"
)

func completionInstructions() string {
	return paragraph(`webauth supports ` + keyword("shell completion") + ` for bash, zsh, fish and powershell.

` + keyword("Bash") + `

To install completions:

Linux (as root):
$ webauth completion bash > /etc/bash_completion.d/webauth

MacOS:
$ webauth completion bash > /usr/local/etc/bash_completion.d/webauth

Note that on macOS you'll need to have bash completion installed. The easiest
way to do this is with Homewbrew. For more info run: brew info bash-completion.

Or, to just load webauth completion for the current session:
$ source <(webauth completion bash)

` + keyword("Zsh") + `

If shell completion is not already enabled in your environment you will need to enable it. You can execute the following once:
$ echo "autoload -U compinit; compinit" >> ~/.zshrc

Then, to install completions:
$ webauth completion zsh > "${fpath[1]}/_webauth"

You will need to start a new shell for this setup to take effect.

` + keyword("Fish") + `

To load completions for each session:
$ webauth completion fish > ~/.config/fish/completions/webauth.fish

Or to just load in the current session:
$ webauth completion fish | source`)
}

// CompletionCmd is the cobra.Command to generate shell completion.
var CompletionCmd = &cobra.Command{
	Use:                   "completion [bash|zsh|fish|powershell]",
	Short:                 "Generate shell completion",
	Long:                  completionInstructions(),
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(cmd.OutOrStdout()) // nolint: errcheck
		case "zsh":
			cmd.Root().GenZshCompletion(cmd.OutOrStdout()) // nolint: errcheck
		case "fish":
			cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true) // nolint: errcheck
		case "powershell":
			cmd.Root().GenPowerShellCompletion(cmd.OutOrStdout()) // nolint: errcheck
		}
	},
}
