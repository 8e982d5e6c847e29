/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Configuration types for the CrashGuard engine. Defines the interaction
mode enumeration and the resolved configuration values consumed by the store,
collection factory, delivery pipeline and interceptor. Values are typically loaded
from flags and config files via viper in the CLI layer.
*/

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kleascm/crashguard/pkg/report"
)

// Mode is the user interaction mode governing when a report may be sent.
type Mode string

const (
	// ModeSilent sends reports immediately with no user-visible interaction.
	ModeSilent Mode = "silent"
	// ModeToast sends immediately but shows a short-lived acknowledgment.
	ModeToast Mode = "toast"
	// ModeNotification holds reports until the user approves them from a
	// notification surface.
	ModeNotification Mode = "notification"
	// ModeDialog holds reports until the user approves them from a dialog.
	ModeDialog Mode = "dialog"
)

// ParseMode resolves a mode name case-insensitively.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeSilent:
		return ModeSilent, nil
	case ModeToast:
		return ModeToast, nil
	case ModeNotification:
		return ModeNotification, nil
	case ModeDialog:
		return ModeDialog, nil
	default:
		return "", fmt.Errorf("unsupported interaction mode: %s", value)
	}
}

// NeedsApproval reports whether this mode gates delivery on user consent.
func (m Mode) NeedsApproval() bool {
	return m == ModeNotification || m == ModeDialog
}

// SendsImmediately reports whether this mode dispatches a send cycle as
// soon as a report is persisted.
func (m Mode) SendsImmediately() bool {
	return m == ModeSilent || m == ModeToast
}

// Config carries every tunable the lifecycle engine consumes. It is
// resolved once at construction time and read-only afterwards.
type Config struct {
	// Mode is the configured interaction mode.
	Mode Mode `json:"mode"`

	// ReportDir is the private directory holding persisted reports.
	ReportDir string `json:"report_dir"`

	// PreferencesPath locates the mutable preferences file. Empty disables
	// persisted preferences.
	PreferencesPath string `json:"preferences_path"`

	// MaxSendReports caps the number of delivery attempts per send cycle,
	// bounding per-start network cost.
	MaxSendReports int `json:"max_send_reports"`

	// SenderTimeout bounds each individual sender invocation.
	SenderTimeout time.Duration `json:"sender_timeout"`

	// ShutdownFlushTimeout bounds how long a crashing goroutine waits for
	// the delivery worker before the process dies.
	ShutdownFlushTimeout time.Duration `json:"shutdown_flush_timeout"`

	// AcknowledgmentDelay is how long the interceptor pauses so an
	// on-screen acknowledgment can render before process death.
	AcknowledgmentDelay time.Duration `json:"acknowledgment_delay"`

	// ToastText is the acknowledgment text. In notification mode a
	// non-empty value additionally shows the acknowledgment on crash.
	ToastText string `json:"toast_text"`

	// DeleteUnapprovedOnStart purges pending reports at startup instead of
	// re-surfacing them to the user.
	DeleteUnapprovedOnStart bool `json:"delete_unapproved_on_start"`

	// ReportFields is the explicit enabled field set. Empty selects the
	// mode-independent default set.
	ReportFields []report.Field `json:"report_fields"`

	// AppVersion is reported verbatim in the APP_VERSION field.
	AppVersion string `json:"app_version"`

	// CollectorURL is the HTTP sender destination. Empty disables it.
	CollectorURL string `json:"collector_url"`

	// ArchivePath is the local sqlite archive location. Empty disables it.
	ArchivePath string `json:"archive_path"`

	// Logging configuration.
	LogLevel  string `json:"log_level"`
	LogDir    string `json:"log_dir"`
	LogFormat string `json:"log_format"`
}

// DefaultConfig returns the engine defaults. The send budget of five per
// cycle matches the cap this engine has always used to keep application
// start cheap.
func DefaultConfig() *Config {
	return &Config{
		Mode:                 ModeSilent,
		ReportDir:            "./crash-reports",
		MaxSendReports:       5,
		SenderTimeout:        20 * time.Second,
		ShutdownFlushTimeout: 15 * time.Second,
		AcknowledgmentDelay:  4 * time.Second,
		LogLevel:             "info",
		LogDir:               "./logs",
		LogFormat:            "text",
	}
}

// Validate checks the Config for invalid or missing values.
// Returns an error if the config is invalid, or nil if valid.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.ReportDir == "" {
		return fmt.Errorf("report_dir must not be empty")
	}
	if c.MaxSendReports <= 0 {
		return fmt.Errorf("max_send_reports must be positive")
	}
	if c.SenderTimeout <= 0 {
		return fmt.Errorf("sender_timeout must be positive")
	}
	if c.ShutdownFlushTimeout <= 0 {
		return fmt.Errorf("shutdown_flush_timeout must be positive")
	}
	if c.AcknowledgmentDelay < 0 {
		return fmt.Errorf("acknowledgment_delay must not be negative")
	}
	return nil
}

// EnabledFields resolves the report field set: the explicit configured
// list when present, else the default list.
func (c *Config) EnabledFields() []report.Field {
	if len(c.ReportFields) > 0 {
		return c.ReportFields
	}
	return DefaultReportFields()
}

// DefaultReportFields is the field set collected when no custom list is
// configured.
func DefaultReportFields() []report.Field {
	return []report.Field{
		report.FieldReportID,
		report.FieldAppVersion,
		report.FieldExecutablePath,
		report.FieldHostname,
		report.FieldOS,
		report.FieldArch,
		report.FieldGoVersion,
		report.FieldNumCPU,
		report.FieldPID,
		report.FieldTotalMemSize,
		report.FieldAvailableMemSize,
		report.FieldAppStartDate,
		report.FieldCrashDate,
		report.FieldUserEmail,
		report.FieldCustomData,
		report.FieldStackTrace,
	}
}
