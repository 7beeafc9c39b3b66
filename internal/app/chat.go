package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ticketdesk/internal/domain"
)

func newAskCmd(rt *runtime) *cobra.Command {
	var (
		c          credentials
		domainFlag string
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the domain assistant about the stored tickets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := parseDomainFlag(domainFlag)
			if err != nil {
				return err
			}
			if err := rt.open(ctx, false); err != nil {
				return err
			}
			u, err := rt.authenticate(ctx, c.username, c.password)
			if err != nil {
				return err
			}
			assistant, err := rt.assistant()
			if err != nil {
				return err
			}
			reply, err := assistant.Ask(ctx, u.Username, d.Module(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVarP(&domainFlag, "domain", "d", "", "Domain: IT, CYBER or DATASCI (required)")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func newChatCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Show or clear assistant conversations",
	}
	cmd.AddCommand(newChatHistoryCmd(rt))
	cmd.AddCommand(newChatClearCmd(rt))
	return cmd
}

// chatTarget authenticates and resolves the module of a chat subcommand.
func (rt *runtime) chatTarget(cmd *cobra.Command, c credentials, domainFlag string) (*domain.User, domain.Domain, error) {
	d, err := parseDomainFlag(domainFlag)
	if err != nil {
		return nil, "", err
	}
	if err := rt.open(cmd.Context(), false); err != nil {
		return nil, "", err
	}
	u, err := rt.authenticate(cmd.Context(), c.username, c.password)
	if err != nil {
		return nil, "", err
	}
	return u, d, nil
}

func newChatHistoryCmd(rt *runtime) *cobra.Command {
	var (
		c          credentials
		domainFlag string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, d, err := rt.chatTarget(cmd, c, domainFlag)
			if err != nil {
				return err
			}
			history, err := rt.transcripts().History(cmd.Context(), u.Username, d.Module())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintln(out, "No messages.")
				return nil
			}
			for _, m := range history {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Sender, m.Message)
			}
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVarP(&domainFlag, "domain", "d", "", "Domain: IT, CYBER or DATASCI (required)")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func newChatClearCmd(rt *runtime) *cobra.Command {
	var (
		c          credentials
		domainFlag string
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored conversation of one domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, d, err := rt.chatTarget(cmd, c, domainFlag)
			if err != nil {
				return err
			}
			n, err := rt.transcripts().ClearHistory(cmd.Context(), u.Username, d.Module())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages\n", n)
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVarP(&domainFlag, "domain", "d", "", "Domain: IT, CYBER or DATASCI (required)")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}
