package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leadvault/chatimport-cli/internal/importer"
	"github.com/leadvault/chatimport-cli/internal/session"
)

var sessionOrgID string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or invalidate stored automation sessions",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a session artifact is stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sessionOrgID == "" {
			return eris.New("--organization-id is required")
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		mgr := session.NewManager(st, cfg.Session.StagingDir)
		exists, err := mgr.Exists(ctx, sessionOrgID)
		if err != nil {
			return &importer.SessionIOError{Op: "status", Err: err}
		}

		if exists {
			fmt.Printf("organization %s has an active session artifact\n", sessionOrgID)
		} else {
			fmt.Printf("organization %s has no session artifact; interactive login required\n", sessionOrgID)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Invalidate the stored session artifact",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sessionOrgID == "" {
			return eris.New("--organization-id is required")
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		mgr := session.NewManager(st, cfg.Session.StagingDir)
		if err := mgr.Delete(ctx, sessionOrgID); err != nil {
			return &importer.SessionIOError{Op: "clear", Err: err}
		}
		if err := mgr.CleanStaging(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}

		fmt.Printf("session artifact for organization %s invalidated\n", sessionOrgID)
		return nil
	},
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionOrgID, "organization-id", "", "organization whose session to inspect (required)")
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
