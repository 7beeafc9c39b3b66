package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/ingest"
)

func newIngestCmd(rt *runtime) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the per-domain source files into the domain stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := rt.open(ctx, reset || rt.cfg.ResetOnStart); err != nil {
				return err
			}
			report, err := rt.orchestrator().Run(ctx)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the domain tables before loading")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest once, then re-ingest on reload_schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(rt.cfg.ReloadSchedule) == "" {
				return fmt.Errorf("reload_schedule is not set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.open(ctx, rt.cfg.ResetOnStart); err != nil {
				return err
			}
			orch := rt.orchestrator()
			out := cmd.OutOrStdout()
			report, err := orch.Run(ctx)
			if err != nil {
				return err
			}
			printReport(out, report)

			return ingest.RunReloadScheduler(ctx, rt.cfg.ReloadSchedule, rt.cfg.Location, func(ctx context.Context) {
				report, err := orch.Run(ctx)
				if err != nil {
					slog.Error("scheduled reload failed", "run_id", report.RunID, "err", err)
					return
				}
				printReport(out, report)
			})
		},
	}
}

func printReport(w io.Writer, r ingest.Report) {
	t := newTable(tableASCII)
	t.Header("Domain", "Loaded", "Stored")
	stored := 0
	for _, d := range domain.Domains {
		t.Row(string(d), r.Loaded[d], r.Stored[d])
		stored += r.Stored[d]
	}
	t.Footer("Total", r.Total(), stored)
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "Run:      %s (%s)\n", r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Skipped:  %d\n", r.Skipped)
	fmt.Fprintf(w, "Unrouted: %d\n", r.Unrouted)
	if len(r.Missing) > 0 {
		fmt.Fprintf(w, "Missing:  %s\n", strings.Join(r.Missing, ", "))
	}
	for module, msg := range r.Failed {
		fmt.Fprintf(w, "Failed:   %s: %s\n", module, msg)
	}
}
