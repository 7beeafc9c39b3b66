package app

import (
	"github.com/spf13/cobra"
)

func newRootCmd(rt *runtime) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ticketdesk",
		Short: "Ticket ingestion, classification and per-domain ticket stores",
		Long: "ticketdesk loads IT Operations, Cybersecurity and Data Science tickets from\n" +
			"delimited source files, classifies them, and manages each domain's store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(configPath, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: CONFIG_PATH or ./config.yaml)")

	root.AddCommand(newIngestCmd(rt))
	root.AddCommand(newWatchCmd(rt))
	root.AddCommand(newTicketsCmd(rt))
	root.AddCommand(newUsersCmd(rt))
	root.AddCommand(newAskCmd(rt))
	root.AddCommand(newChatCmd(rt))
	root.Version = version
	return root
}
