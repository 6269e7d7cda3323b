package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"thorn/internal/api"
	"thorn/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var body string
	var at string
	var recipients []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Schedule a one-shot delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fireAt, err := parseFireAt(at, time.Now())
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EntryAdd(ipc.EntryAddRequest{Entry: api.AddEntryRequest{
					Title:      args[0],
					Body:       body,
					Kind:       "one_shot",
					Recipients: recipients,
					FireAt:     fireAt,
				}})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s for %s\n",
					shortID(resp.Entry.ID), formatTimestamp(resp.Entry.FireAt))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&body, "body", "b", "", "Message body")
	cmd.Flags().StringVar(&at, "at", "", "When to deliver (RFC 3339, \"2006-01-02 15:04\", or +2h)")
	cmd.Flags().StringSliceVar(&recipients, "to", nil, "Recipient contact IDs (repeatable)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newSwitchCommand(ctx *commandContext) *cobra.Command {
	var body string
	var every time.Duration
	var word string
	var warns []time.Duration
	var recipients []string

	cmd := &cobra.Command{
		Use:   "switch <title>",
		Short: "Arm a dead-man's switch that fires unless it is reset",
		Long: `Arm a dead-man's switch. The message is delivered every time the interval
elapses without a reset; resetting with the right word pushes the deadline out
by one interval. Warning deliveries go to the same recipients ahead of the
deadline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warnSeconds := make([]int64, 0, len(warns))
			for _, warn := range warns {
				warnSeconds = append(warnSeconds, int64(warn/time.Second))
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EntryAdd(ipc.EntryAddRequest{Entry: api.AddEntryRequest{
					Title:             args[0],
					Body:              body,
					Kind:              "dead_mans_switch",
					Recipients:        recipients,
					IntervalSeconds:   int64(every / time.Second),
					ResetWord:         word,
					WarnBeforeSeconds: warnSeconds,
				}})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Armed %s; fires %s unless reset\n",
					shortID(resp.Entry.ID), formatTimestamp(resp.Entry.FireAt))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&body, "body", "b", "", "Message body")
	cmd.Flags().DurationVar(&every, "every", 0, "Check-in interval (for example 48h)")
	cmd.Flags().StringVar(&word, "word", "", "Reset word required to push the deadline out")
	cmd.Flags().DurationSliceVar(&warns, "warn", nil, "Warn this long before the deadline (repeatable)")
	cmd.Flags().StringSliceVar(&recipients, "to", nil, "Recipient contact IDs (repeatable)")
	_ = cmd.MarkFlagRequired("every")
	_ = cmd.MarkFlagRequired("word")
	return cmd
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id> <word>",
		Short: "Reset a dead-man's switch with its reset word",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EntryReset(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset accepted; next deadline %s (%s)\n",
					formatTimestamp(resp.Entry.FireAt), formatUntil(resp.Entry.FireAt, time.Now()))
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.EntryCancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", shortID(args[0]))
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EntryList(statuses)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "No entries")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				now := time.Now()
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						shortID(entry.ID),
						kindLabel(entry.Kind),
						statusLabel(entry.Status),
						formatTimestamp(entry.FireAt),
						formatUntil(entry.FireAt, now),
						entry.Title,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Kind", "Status", "Fires At", "Due", "Title"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, sent, cancelled)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a single entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EntryDescribe(args[0])
				if err != nil {
					return err
				}
				printEntryDetails(cmd, resp.Entry)
				return nil
			})
		},
	}
}

func printEntryDetails(cmd *cobra.Command, entry api.Entry) {
	stdout := cmd.OutOrStdout()
	now := time.Now()

	fmt.Fprintf(stdout, "ID:         %s\n", entry.ID)
	fmt.Fprintf(stdout, "Title:      %s\n", entry.Title)
	fmt.Fprintf(stdout, "Kind:       %s\n", kindLabel(entry.Kind))
	fmt.Fprintf(stdout, "Status:     %s\n", statusLabel(entry.Status))
	fmt.Fprintf(stdout, "Fires at:   %s (%s)\n", formatTimestamp(entry.FireAt), formatUntil(entry.FireAt, now))
	if entry.IntervalSeconds > 0 {
		fmt.Fprintf(stdout, "Interval:   %s\n", time.Duration(entry.IntervalSeconds)*time.Second)
	}
	for _, warn := range entry.WarnBeforeSeconds {
		fmt.Fprintf(stdout, "Warn:       %s before deadline\n", time.Duration(warn)*time.Second)
	}
	if len(entry.Recipients) > 0 {
		fmt.Fprintf(stdout, "Recipients: %v\n", entry.Recipients)
	}
	if entry.DispatchAttempts > 0 {
		fmt.Fprintf(stdout, "Attempts:   %d\n", entry.DispatchAttempts)
	}
	if entry.LastError != "" {
		fmt.Fprintf(stdout, "Last error: %s\n", entry.LastError)
	}
	if entry.SentAt != nil {
		fmt.Fprintf(stdout, "Sent at:    %s\n", formatTimestamp(*entry.SentAt))
	}
	fmt.Fprintf(stdout, "Created:    %s\n", formatTimestamp(entry.CreatedAt))
}
