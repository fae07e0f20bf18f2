package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"platter/internal/ipc"
	"platter/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				stats := map[string]int{}
				if client != nil {
					status, err := client.Status(cmd.Context())
					if err != nil {
						return err
					}
					stats = status.Workflow.QueueStats
				} else {
					storeStats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					for status, count := range storeStats {
						stats[string(status)] = count
					}
				}

				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				var payloads []ipc.QueueItemPayload
				if client != nil {
					resp, err := client.QueueList(cmd.Context(), listStatuses...)
					if err != nil {
						return err
					}
					payloads = resp.Items
				} else {
					statuses := make([]queue.Status, 0, len(listStatuses))
					for _, value := range listStatuses {
						parsed, ok := queue.ParseStatus(value)
						if !ok {
							return fmt.Errorf("unknown status %q", value)
						}
						statuses = append(statuses, parsed)
					}
					items, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					payloads = make([]ipc.QueueItemPayload, 0, len(items))
					for _, item := range items {
						payloads = append(payloads, ipc.ItemPayload(item))
					}
				}

				if len(payloads) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Created"},
					buildQueueListRows(payloads),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				var (
					removed int64
					err     error
					label   = "queue items"
				)
				switch {
				case clearCompleted:
					label = "completed items"
					if client != nil {
						removed, err = client.QueueClear(cmd.Context(), "completed")
					} else {
						removed, err = store.ClearCompleted(cmd.Context())
					}
				case clearFailed:
					label = "failed items"
					if client != nil {
						removed, err = client.QueueClear(cmd.Context(), "failed")
					} else {
						removed, err = store.ClearFailed(cmd.Context())
					}
				default:
					if client != nil {
						removed, err = client.QueueClear(cmd.Context(), "all")
					} else {
						removed, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				// Reset always goes through the store; the daemon reclaims
				// its own stale items via heartbeats.
				if store == nil {
					return errors.New("stop the daemon before resetting stuck items")
				}
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed queue items",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				var (
					updated int64
					err     error
				)
				if client != nil {
					updated, err = client.QueueRetry(cmd.Context(), ids)
				} else {
					updated, err = store.RetryFailed(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed items\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					health, err := client.Health(cmd.Context())
					if err != nil {
						return err
					}
					printQueueHealth(out, health.Total, health.Pending, health.Processing, health.Failed, health.Review, health.Completed)
					for _, stage := range health.Stages {
						state := "ready"
						if !stage.Ready {
							state = "not ready"
							if stage.Detail != "" {
								state = fmt.Sprintf("not ready (%s)", stage.Detail)
							}
						}
						fmt.Fprintf(out, "Stage %s: %s\n", stage.Name, state)
					}
					if db := health.Database; db != nil {
						state := "ok"
						switch {
						case db.Error != "":
							state = db.Error
						case !db.Readable:
							state = "not readable"
						case !db.IntegrityCheck:
							state = "integrity check failed"
						}
						fmt.Fprintf(out, "Database: %s\n", state)
					}
					return nil
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				printQueueHealth(out, health.Total, health.Pending, health.Processing, health.Failed, health.Review, health.Completed)
				return nil
			})
		},
	}
}

func printQueueHealth(out io.Writer, total, pending, processing, failed, review, completed int) {
	fmt.Fprintf(out, "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
		total, pending, processing, failed, review, completed)
}
