package app

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/storage/sqlite"
)

const descriptionWidth = 60

type ticketFields struct {
	issueType   string
	description string
	priority    string
	status      string
}

func newTicketsCmd(rt *runtime) *cobra.Command {
	var domainFlag string

	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List, create, update, delete and summarize tickets of one domain",
	}
	cmd.PersistentFlags().StringVarP(&domainFlag, "domain", "d", "", "Domain: IT, CYBER or DATASCI (required)")
	_ = cmd.MarkPersistentFlagRequired("domain")

	cmd.AddCommand(newTicketsListCmd(rt, &domainFlag))
	cmd.AddCommand(newTicketsCreateCmd(rt, &domainFlag))
	cmd.AddCommand(newTicketsUpdateCmd(rt, &domainFlag))
	cmd.AddCommand(newTicketsDeleteCmd(rt, &domainFlag))
	cmd.AddCommand(newTicketsStatsCmd(rt, &domainFlag))
	return cmd
}

func (rt *runtime) openStore(cmd *cobra.Command, domainFlag string) (*sqlite.DomainStore, error) {
	if err := rt.open(cmd.Context(), false); err != nil {
		return nil, err
	}
	return rt.store(domainFlag)
}

func newTicketsListCmd(rt *runtime, domainFlag *string) *cobra.Command {
	var (
		format string
		last   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the tickets of a domain in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, ok := parseTableMode(format)
			if !ok {
				return fmt.Errorf("unknown format %q (want ascii or markdown)", format)
			}
			store, err := rt.openStore(cmd, *domainFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var tickets []domain.Ticket
			if last > 0 {
				tickets, err = store.Tail(ctx, last)
			} else {
				tickets, err = store.ReadAll(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tickets) == 0 {
				fmt.Fprintf(out, "No %s tickets found.\n", store.Domain())
				return nil
			}
			t := newTable(mode)
			t.Header("Ticket ID", "Date", "Issue Type", "Description", "Priority", "Status")
			for _, tk := range tickets {
				t.Row(tk.TicketID, tk.Date, tk.IssueType, tk.Description, tk.Priority, tk.Status)
			}
			t.MaxWidth(4, descriptionWidth)
			fmt.Fprintln(out, t.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "ascii", "Output format: ascii or markdown")
	cmd.Flags().IntVar(&last, "last", 0, "Only show the last N tickets")
	return cmd
}

func newTicketsCreateCmd(rt *runtime, domainFlag *string) *cobra.Command {
	var f ticketFields
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket with the next TICK- identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.openStore(cmd, *domainFlag)
			if err != nil {
				return err
			}
			if err := rt.validateFields(store.Domain(), f, allFields); err != nil {
				return err
			}
			id, err := store.Create(cmd.Context(), f.issueType, f.description, f.priority, f.status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", id)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.issueType, "issue-type", domain.OtherIssueType, "Issue type from the domain vocabulary")
	fl.StringVar(&f.description, "description", "", "Free-text description")
	fl.StringVar(&f.priority, "priority", "Medium", "Low, Medium, High or Critical")
	fl.StringVar(&f.status, "status", "Open", "Open, In Progress or Resolved")
	return cmd
}

func newTicketsUpdateCmd(rt *runtime, domainFlag *string) *cobra.Command {
	var (
		id string
		f  ticketFields
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of an existing ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.openStore(cmd, *domainFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			current, err := store.Get(ctx, id)
			if errors.Is(err, sqlite.ErrTicketNotFound) {
				fmt.Fprintf(out, "Ticket %s not found\n", id)
				return nil
			}
			if err != nil {
				return err
			}

			// Unset flags keep the stored value. Only changed values are validated.
			fl := cmd.Flags()
			if !fl.Changed("issue-type") {
				f.issueType = current.IssueType
			}
			if !fl.Changed("description") {
				f.description = current.Description
			}
			if !fl.Changed("priority") {
				f.priority = current.Priority
			}
			if !fl.Changed("status") {
				f.status = current.Status
			}
			if err := rt.validateFields(store.Domain(), f, fl.Changed); err != nil {
				return err
			}

			ok, err := store.Update(ctx, id, f.issueType, f.description, f.priority, f.status)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "Ticket %s not found\n", id)
				return nil
			}
			fmt.Fprintf(out, "Updated %s\n", id)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&id, "id", "", "Ticket ID (required)")
	fl.StringVar(&f.issueType, "issue-type", "", "New issue type")
	fl.StringVar(&f.description, "description", "", "New description")
	fl.StringVar(&f.priority, "priority", "", "New priority")
	fl.StringVar(&f.status, "status", "", "New status")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTicketsDeleteCmd(rt *runtime, domainFlag *string) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.openStore(cmd, *domainFlag)
			if err != nil {
				return err
			}
			ok, err := store.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Ticket %s not found\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Ticket ID (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTicketsStatsCmd(rt *runtime, domainFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals and breakdowns by issue type and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.openStore(cmd, *domainFlag)
			if err != nil {
				return err
			}
			tickets, err := store.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			next, err := store.NextID(cmd.Context())
			if err != nil {
				return err
			}
			s := domain.Summarize(tickets)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s\n", store.Domain())
			fmt.Fprintf(out, "Total:            %d\n", s.Total)
			fmt.Fprintf(out, "High or Critical: %d\n", s.HighOrCritical)
			fmt.Fprintf(out, "Resolved:         %d\n", s.Resolved)
			fmt.Fprintf(out, "Next ID:          %s\n", next)
			if s.Total == 0 {
				return nil
			}
			fmt.Fprintln(out, countTable("Issue Type", s.ByIssueType))
			fmt.Fprintln(out, countTable("Status", s.ByStatus))
			return nil
		},
	}
}

// countTable renders counts sorted by descending count, then name.
func countTable(label string, counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	t := newTable(tableASCII)
	t.Header(label, "Count")
	for _, k := range keys {
		t.Row(k, counts[k])
	}
	return t.String()
}

func allFields(string) bool { return true }

func (rt *runtime) validateFields(d domain.Domain, f ticketFields, check func(flag string) bool) error {
	vocab := rt.classifier.Vocabulary()
	if check("issue-type") && !vocab.ValidIssueType(d, f.issueType) {
		return fmt.Errorf("invalid issue type %q for %s (want one of %v)", f.issueType, d, vocab.IssueTypes(d))
	}
	if check("priority") && !domain.ValidPriority(f.priority) {
		return fmt.Errorf("invalid priority %q (want one of %v)", f.priority, domain.Priorities)
	}
	if check("status") && !domain.ValidStatus(f.status) {
		return fmt.Errorf("invalid status %q (want one of %v)", f.status, domain.Statuses)
	}
	return nil
}
