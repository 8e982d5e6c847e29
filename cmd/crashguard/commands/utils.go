/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the CrashGuard commands. Provides common
configuration loading, logging setup, and construction of the crash reporting
engine used across all command implementations.
*/

package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interceptor"
	"github.com/kleascm/crashguard/pkg/logging"
	"github.com/kleascm/crashguard/pkg/report"
	"github.com/kleascm/crashguard/pkg/senders"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("CRASHGUARD")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system from the loaded configuration
func SetupLogging() (*logging.Logger, error) {
	loggerConfig := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    logging.LogFormat(viper.GetString("log_format")),
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  10,
		Timestamp: true,
		Caller:    true,
		Colors:    true,
	}
	if err := loggerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	logger, err := logging.NewLogger(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// createEngineConfig builds the engine configuration from viper values
func createEngineConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	mode, err := config.ParseMode(viper.GetString("mode"))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode

	if dir := viper.GetString("report_dir"); dir != "" {
		cfg.ReportDir = dir
	}
	if path := viper.GetString("preferences_path"); path != "" {
		cfg.PreferencesPath = path
	}
	if max := viper.GetInt("max_send_reports"); max > 0 {
		cfg.MaxSendReports = max
	}
	if timeout := viper.GetDuration("sender_timeout"); timeout > 0 {
		cfg.SenderTimeout = timeout
	}
	if timeout := viper.GetDuration("shutdown_flush_timeout"); timeout > 0 {
		cfg.ShutdownFlushTimeout = timeout
	}
	cfg.ToastText = viper.GetString("toast_text")
	cfg.DeleteUnapprovedOnStart = viper.GetBool("delete_unapproved_on_start")
	cfg.AppVersion = viper.GetString("app_version")
	cfg.CollectorURL = viper.GetString("collector_url")
	cfg.ArchivePath = viper.GetString("archive_path")
	cfg.LogLevel = viper.GetString("log_level")
	cfg.LogDir = viper.GetString("log_dir")
	cfg.LogFormat = viper.GetString("log_format")

	for _, name := range viper.GetStringSlice("report_fields") {
		cfg.ReportFields = append(cfg.ReportFields, report.Field(name))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildReporter constructs the full engine with the senders the
// configuration enables
func buildReporter(cfg *config.Config, logger *logrus.Logger) (*interceptor.Reporter, error) {
	reporter, err := interceptor.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if cfg.CollectorURL != "" {
		reporter.AddSender(senders.NewHTTPSender(cfg.CollectorURL))
	}
	if cfg.ArchivePath != "" {
		archive, err := senders.NewArchiveSender(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open report archive: %w", err)
		}
		reporter.AddSender(archive)
	}
	if cfg.CollectorURL == "" && cfg.ArchivePath == "" {
		// Without a configured sink, fall back to the log sender so send
		// cycles still drain the queue.
		reporter.AddSender(senders.NewLogSender(logger))
	}
	return reporter, nil
}
