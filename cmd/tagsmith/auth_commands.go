package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var base string
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the remote repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			if strings.TrimSpace(username) == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Username: ")
				username = readLine(cmd)
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				password = readLine(cmd)
			}

			session, err := client.Login(cmd.Context(), base, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, session)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", session.Base, session.Username)
			if session.TokenExpiry != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Token expires %s\n",
					time.Unix(*session.TokenExpiry, 0).Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&base, "base", "b", "", "Repository API base URL (defaults to the configured endpoint)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newEndpointCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoint <base-url>",
		Short: "Switch the remote repository endpoint",
		Long:  "Switch the remote repository endpoint. Any stored session is dropped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			session, err := client.SetEndpoint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, session)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Endpoint set to %s\n", session.Base)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			health, healthErr := client.Health(cmd.Context())
			if ctx.jsonOutput() {
				if healthErr != nil {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				session, err := client.Session(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"running": true, "pid": health.PID, "session": session})
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if healthErr != nil {
				fmt.Fprintf(stdout, "  %s (start it with `tagsmith daemon start`)\n",
					renderFlag(false, "running", "not running", colorize))
				return nil
			}
			fmt.Fprintf(stdout, "  %s (pid %d)\n", renderFlag(true, "running", "not running", colorize), health.PID)
			fmt.Fprintln(stdout)

			session, err := client.Session(cmd.Context())
			if err != nil {
				return err
			}
			for _, line := range renderSectionHeader("Session", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintf(stdout, "  Endpoint:  %s\n", session.Base)
			fmt.Fprintf(stdout, "  Auth:      %s\n",
				renderFlag(session.Authenticated, "authenticated", "anonymous", colorize))
			if session.Username != "" {
				fmt.Fprintf(stdout, "  User:      %s\n", session.Username)
			}
			if session.TokenExpiry != nil {
				fmt.Fprintf(stdout, "  Token exp: %s\n",
					time.Unix(*session.TokenExpiry, 0).Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func readLine(cmd *cobra.Command) string {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
