/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reports.go
Description: Report management commands for the CrashGuard CLI. Implements listing
stored reports with their lifecycle status, draining pending reports through the
configured senders, approving pending reports, and purging the report directory.
*/

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/crashguard/pkg/store"
)

// RunList prints the stored reports with their lifecycle status
func RunList(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logger.Close()

	cfg, err := createEngineConfig()
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.ReportDir, logger.GetLogger())
	if err != nil {
		return err
	}

	names, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No stored reports.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPORT\tSTATUS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, store.StatusOf(name))
	}
	return w.Flush()
}

// RunSend drains pending reports through the configured senders
func RunSend(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logger.Close()

	cfg, err := createEngineConfig()
	if err != nil {
		return err
	}
	reporter, err := buildReporter(cfg, logger.GetLogger())
	if err != nil {
		return err
	}

	reporter.Pipeline().SendPending(cmd.Context(), viper.GetBool("only_silent"))
	fmt.Println("Send cycle completed.")
	return nil
}

// RunApprove flags every pending report as approved, optionally draining
// them immediately
func RunApprove(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logger.Close()

	cfg, err := createEngineConfig()
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.ReportDir, logger.GetLogger())
	if err != nil {
		return err
	}

	if err := st.ApproveAll(); err != nil {
		return fmt.Errorf("failed to approve reports: %w", err)
	}
	fmt.Println("All pending reports approved.")

	if viper.GetBool("send_after_approve") {
		reporter, err := buildReporter(cfg, logger.GetLogger())
		if err != nil {
			return err
		}
		reporter.Pipeline().SendPending(cmd.Context(), false)
		fmt.Println("Send cycle completed.")
	}
	return nil
}

// RunPurge deletes stored reports
func RunPurge(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logger.Close()

	cfg, err := createEngineConfig()
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.ReportDir, logger.GetLogger())
	if err != nil {
		return err
	}

	unapprovedOnly := viper.GetBool("unapproved_only")
	removed, err := st.Purge(!unapprovedOnly, true)
	if err != nil {
		return fmt.Errorf("failed to purge reports: %w", err)
	}
	fmt.Printf("Removed %d report(s).\n", removed)
	return nil
}
