package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "get <path-or-url>",
		Short: "Fetch a repository path and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Get(cmd.Context(), args[0], skipAuth)
			if err != nil {
				return err
			}
			return writeJSON(cmd, resp.Data)
		},
	}

	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var portalType string
	var path string
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List content items by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			items, err := client.Items(cmd.Context(), portalType, path, skipAuth)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, items)
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.Title,
					item.ReviewState,
					strings.Join(item.Subjects, ", "),
					item.ID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]tableColumn{textColumn("Title"), textColumn("State"), wideColumn("Tags"), textColumn("URL")},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&portalType, "type", "t", "Document", "Portal type to list")
	cmd.Flags().StringVar(&path, "path", "", "Restrict the listing to a subtree")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}
