package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docshare/internal/audit"
	"docshare/internal/model"
	"docshare/internal/notify"
	"docshare/internal/repository"
	"docshare/internal/service"
	"docshare/internal/watcher"
)

func listCmd(e *env) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shares, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := service.ListFilter{Status: model.ShareStatus(status)}
			switch filter.Status {
			case "", model.StatusPending, model.StatusCompleted:
			default:
				return fmt.Errorf("invalid --status %q: want pending or completed", status)
			}

			return e.withService(cmd.Context(), func(_ repository.KeyValueStore, svc service.SharingService) error {
				items, err := svc.ListShares(cmd.Context(), filter)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tCREATED")
				for _, s := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ShareID, s.DocumentType, s.Status, s.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show pending or completed shares")

	return cmd
}

func statusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status <share-id>",
		Short: "Show which roles have signed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(cmd.Context(), func(_ repository.KeyValueStore, svc service.SharingService) error {
				st, err := svc.GetStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if st == nil {
					return fmt.Errorf("share %s not found", args[0])
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			})
		},
	}
}

func deleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <share-id>",
		Short: "Delete a share and its notification mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(cmd.Context(), func(_ repository.KeyValueStore, svc service.SharingService) error {
				if err := svc.DeleteShare(cmd.Context(), args[0]); err != nil {
					if errors.Is(err, service.ErrShareNotFound) {
						return fmt.Errorf("share %s not found", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func watchCmd(e *env) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print completion events as JSON lines",
		Long: `watch polls the share store and prints one JSON line per share that
reached completed status. It runs until interrupted unless --once is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := e.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open share store: %w", err)
			}
			defer closeStore()

			enc := json.NewEncoder(cmd.OutOrStdout())
			printer := notify.Func(func(_ context.Context, ev model.CompletionEvent) error {
				return enc.Encode(ev)
			})

			w := watcher.New(store, printer,
				watcher.WithInterval(interval),
				watcher.WithPersistedMarks(e.cfg.Sharing.PersistNotified),
				watcher.WithLogger(e.log),
			)

			if once {
				_, err := w.Poll(cmd.Context())
				return err
			}

			h := w.Start(cmd.Context())
			<-h.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", watcher.DefaultInterval, "Polling interval")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")

	return cmd
}

func auditCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent audit entries as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := e.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open share store: %w", err)
			}
			defer closeStore()

			entries, err := audit.New(store).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, a := range entries {
				if err := enc.Encode(a); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries, 0 for all")

	return cmd
}
