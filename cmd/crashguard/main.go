/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the CrashGuard engine. Provides
report directory inspection, manual send cycles, approval and purge maintenance,
and an end-to-end simulation command for validating deployments, with
comprehensive configuration management.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/crashguard/cmd/crashguard/commands"
)

var (
	// Configuration
	configFile      string
	logLevel        string
	logDir          string
	logFormat       string
	mode            string
	reportDir       string
	preferencesPath string

	// Delivery configuration
	maxSendReports       int
	senderTimeout        time.Duration
	shutdownFlushTimeout time.Duration
	collectorURL         string
	archivePath          string

	// Interaction configuration
	toastText               string
	deleteUnapprovedOnStart bool
	appVersion              string
	reportFields            []string

	// Command flags
	onlySilent       bool
	sendAfterApprove bool
	unapprovedOnly   bool
	simulateMessage  string
	simulatePanic    bool
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "crashguard",
		Short: "CrashGuard - Durable crash report lifecycle engine",
		Long: `CrashGuard is an embeddable crash reporting engine with a durable,
at-least-once delivery pipeline. It captures uncaught failures, persists a
diagnostic report to a private directory, and drains pending reports through
pluggable senders under a bounded per-cycle budget. This CLI inspects and
manages a report directory and exercises a configured deployment end to end.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "./logs", "Log output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "silent", "Interaction mode (silent, toast, notification, dialog)")
	rootCmd.PersistentFlags().StringVar(&reportDir, "report-dir", "./crash-reports", "Directory holding persisted reports")
	rootCmd.PersistentFlags().StringVar(&preferencesPath, "preferences", "", "Path of the mutable preferences file")
	rootCmd.PersistentFlags().IntVar(&maxSendReports, "max-send-reports", 5, "Maximum delivery attempts per send cycle")
	rootCmd.PersistentFlags().DurationVar(&senderTimeout, "sender-timeout", 20*time.Second, "Timeout per sender invocation")
	rootCmd.PersistentFlags().DurationVar(&shutdownFlushTimeout, "flush-timeout", 15*time.Second, "Maximum wait for the delivery worker before shutdown")
	rootCmd.PersistentFlags().StringVar(&collectorURL, "collector-url", "", "HTTP collector endpoint (enables the HTTP sender)")
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive", "", "Local sqlite archive path (enables the archive sender)")
	rootCmd.PersistentFlags().StringVar(&toastText, "toast-text", "", "Crash acknowledgment text")
	rootCmd.PersistentFlags().BoolVar(&deleteUnapprovedOnStart, "delete-unapproved-on-start", false, "Purge unapproved reports at startup")
	rootCmd.PersistentFlags().StringVar(&appVersion, "app-version", "", "Host application version reported in APP_VERSION")
	rootCmd.PersistentFlags().StringSliceVar(&reportFields, "report-fields", []string{}, "Explicit report field list (empty = defaults)")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
	viper.BindPFlag("report_dir", rootCmd.PersistentFlags().Lookup("report-dir"))
	viper.BindPFlag("preferences_path", rootCmd.PersistentFlags().Lookup("preferences"))
	viper.BindPFlag("max_send_reports", rootCmd.PersistentFlags().Lookup("max-send-reports"))
	viper.BindPFlag("sender_timeout", rootCmd.PersistentFlags().Lookup("sender-timeout"))
	viper.BindPFlag("shutdown_flush_timeout", rootCmd.PersistentFlags().Lookup("flush-timeout"))
	viper.BindPFlag("collector_url", rootCmd.PersistentFlags().Lookup("collector-url"))
	viper.BindPFlag("archive_path", rootCmd.PersistentFlags().Lookup("archive"))
	viper.BindPFlag("toast_text", rootCmd.PersistentFlags().Lookup("toast-text"))
	viper.BindPFlag("delete_unapproved_on_start", rootCmd.PersistentFlags().Lookup("delete-unapproved-on-start"))
	viper.BindPFlag("app_version", rootCmd.PersistentFlags().Lookup("app-version"))
	viper.BindPFlag("report_fields", rootCmd.PersistentFlags().Lookup("report-fields"))

	// Add list command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored reports and their lifecycle status",
		Long: `List every report persisted in the report directory together with its
lifecycle status (pending, approved, silent), in the oldest-first order the
delivery pipeline uses.`,
		RunE: commands.RunList,
	})

	// Add send command
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Run one bounded send cycle over pending reports",
		Long: `Drain pending reports through the configured senders, oldest first,
respecting the per-cycle send budget and the approval gating of the configured
interaction mode. Reports that fail to deliver stay queued.`,
		RunE: commands.RunSend,
	}
	sendCmd.Flags().BoolVar(&onlySilent, "only-silent", false, "Send only explicitly silent reports")
	viper.BindPFlag("only_silent", sendCmd.Flags().Lookup("only-silent"))
	rootCmd.AddCommand(sendCmd)

	// Add approve command
	approveCmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve all pending reports",
		Long: `Flag every pending report as user-approved, making it delivery-eligible
in gated interaction modes. Optionally run a send cycle immediately after.`,
		RunE: commands.RunApprove,
	}
	approveCmd.Flags().BoolVar(&sendAfterApprove, "send", false, "Run a send cycle after approving")
	viper.BindPFlag("send_after_approve", approveCmd.Flags().Lookup("send"))
	rootCmd.AddCommand(approveCmd)

	// Add purge command
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete stored reports",
		Long: `Delete reports from the report directory. By default every report is
removed; with --unapproved-only, approved and silent reports are kept.`,
		RunE: commands.RunPurge,
	}
	purgeCmd.Flags().BoolVar(&unapprovedOnly, "unapproved-only", false, "Delete only reports pending approval")
	viper.BindPFlag("unapproved_only", purgeCmd.Flags().Lookup("unapproved-only"))
	rootCmd.AddCommand(purgeCmd)

	// Add simulate command
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Raise a synthetic failure through the full engine",
		Long: `Capture a synthetic failure end to end: collectors run, a report is
persisted, and a send cycle drains it through the configured senders. Useful
for validating a collector endpoint or archive before shipping.`,
		RunE: commands.RunSimulate,
	}
	simulateCmd.Flags().StringVar(&simulateMessage, "message", "", "Failure message for the synthetic report")
	simulateCmd.Flags().BoolVar(&simulatePanic, "panic", false, "Simulate a recovered panic instead of a plain error")
	viper.BindPFlag("simulate_message", simulateCmd.Flags().Lookup("message"))
	viper.BindPFlag("simulate_panic", simulateCmd.Flags().Lookup("panic"))
	rootCmd.AddCommand(simulateCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
