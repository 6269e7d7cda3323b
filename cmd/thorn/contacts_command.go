package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thorn/internal/ipc"
)

func newContactsCommand(ctx *commandContext) *cobra.Command {
	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "List recipients known to the messaging daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Contacts()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Contacts) == 0 {
					fmt.Fprintln(stdout, "No contacts; pair one with `thorn contacts link`")
					return nil
				}
				rows := make([][]string, 0, len(resp.Contacts))
				for _, contact := range resp.Contacts {
					rows = append(rows, []string{
						fmt.Sprintf("%d", contact.ID),
						contact.Name,
						yesNo(contact.Connected),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Name", "Connected"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Show this identity's pairing link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ContactLink()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Link)
				return nil
			})
		},
	}

	contactsCmd.AddCommand(linkCmd)
	return contactsCmd
}
