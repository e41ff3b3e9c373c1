package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded tag operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			events, err := client.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, events)
			}

			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded operations.")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, event := range events {
				detail := ""
				if len(event.Detail) > 0 {
					if encoded, err := json.Marshal(event.Detail); err == nil {
						detail = string(encoded)
					}
				}
				rows = append(rows, []string{
					event.CreatedAt.Local().Format(time.DateTime),
					event.Kind,
					strconv.Itoa(event.Items),
					strconv.Itoa(event.Updated),
					strconv.Itoa(event.Errors),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]tableColumn{
					textColumn("When"), textColumn("Kind"),
					numColumn("Items"), numColumn("Updated"), numColumn("Errors"),
					wideColumn("Detail"),
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")
	return cmd
}
