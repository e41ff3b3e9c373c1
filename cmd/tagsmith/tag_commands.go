package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tagsmith/internal/api"
	"tagsmith/internal/tags"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	var path string
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Show tag frequencies for the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			counts, err := client.TagCounts(cmd.Context(), path, skipAuth)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, counts)
			}

			if len(counts.Tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tags found.")
				return nil
			}

			rows := make([][]string, 0, len(counts.Tags))
			for _, entry := range counts.Tags {
				rows = append(rows, []string{entry.Name, strconv.Itoa(entry.Count)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]tableColumn{textColumn("Tag"), numColumn("Count")},
				rows,
			))
			fmt.Fprintf(cmd.OutOrStdout(), "%d distinct tags, %d occurrences\n", len(counts.Tags), counts.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Restrict the scan to a subtree")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var tag string
	var threshold int
	var path string
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Find near-duplicate tags",
		Long:  "Find near-duplicate tags. With --tag, compare one tag against the rest; without it, compare every pair.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Similar(cmd.Context(), tag, threshold, path, skipAuth)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}

			if len(resp.Matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No similar tags found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMatchTable(resp.Matches))
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Compare this tag against all others instead of scanning every pair")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Similarity threshold 0-100 (defaults to the configured value)")
	cmd.Flags().StringVar(&path, "path", "", "Restrict the scan to a subtree")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func renderMatchTable(matches []tags.Match) string {
	rows := make([][]string, 0, len(matches))
	for _, match := range matches {
		rows = append(rows, []string{
			match.Tag,
			match.MatchedAgainst,
			strconv.Itoa(match.Score),
			strconv.Itoa(match.Count),
		})
	}
	return renderTable(
		[]tableColumn{textColumn("Tag"), textColumn("Similar To"), numColumn("Score"), numColumn("Count")},
		rows,
	)
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var target string
	var path string
	var apply bool
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "merge <source-tag>...",
		Short: "Merge one or more tags into a target tag",
		Long:  "Merge one or more tags into a target tag. Runs as a preview unless --apply is given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("--into is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Merge(cmd.Context(), api.MergeRequest{
				Sources:  args,
				Target:   target,
				Path:     path,
				DryRun:   !apply,
				SkipAuth: skipAuth,
			})
			if err != nil {
				return err
			}
			return printMutationResult(cmd, ctx, &result)
		},
	}

	cmd.Flags().StringVar(&target, "into", "", "Target tag the sources are folded into")
	cmd.Flags().StringVar(&path, "path", "", "Restrict the mutation to a subtree")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the changes (default is a dry-run preview)")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var path string
	var apply bool
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "rename <old-tag> <new-tag>",
		Short: "Rename a tag everywhere it appears",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Rename(cmd.Context(), api.RenameRequest{
				Old:      args[0],
				New:      args[1],
				Path:     path,
				DryRun:   !apply,
				SkipAuth: skipAuth,
			})
			if err != nil {
				return err
			}
			return printMutationResult(cmd, ctx, &result)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Restrict the mutation to a subtree")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the changes (default is a dry-run preview)")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var path string
	var apply bool
	var skipAuth bool

	cmd := &cobra.Command{
		Use:   "remove <tag>",
		Short: "Remove a tag everywhere it appears",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Remove(cmd.Context(), api.RemoveRequest{
				Tag:      args[0],
				Path:     path,
				DryRun:   !apply,
				SkipAuth: skipAuth,
			})
			if err != nil {
				return err
			}
			return printMutationResult(cmd, ctx, &result)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Restrict the mutation to a subtree")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the changes (default is a dry-run preview)")
	cmd.Flags().BoolVar(&skipAuth, "no-auth", false, "Send the request without credentials")
	return cmd
}

func printMutationResult(cmd *cobra.Command, ctx *commandContext, result *tags.Result) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	stdout := cmd.OutOrStdout()

	if result.Message != "" {
		fmt.Fprintln(stdout, result.Message)
		return nil
	}

	if len(result.Preview) > 0 {
		rows := make([][]string, 0, len(result.Preview))
		for _, entry := range result.Preview {
			rows = append(rows, []string{
				entry.Title,
				strings.Join(entry.Current, ", "),
				strings.Join(entry.Proposed, ", "),
			})
		}
		fmt.Fprintln(stdout, renderTable(
			[]tableColumn{textColumn("Item"), wideColumn("Current Tags"), wideColumn("Proposed Tags")},
			rows,
		))
	}

	if result.DryRun {
		fmt.Fprintf(stdout, "Dry run: %d items would be updated. Re-run with --apply to commit.\n", result.Items)
		return nil
	}
	fmt.Fprintf(stdout, "Updated %d of %d items", result.Updated, result.Items)
	if result.Errors > 0 {
		fmt.Fprintf(stdout, " (%d failed)", result.Errors)
	}
	fmt.Fprintln(stdout)
	return nil
}
