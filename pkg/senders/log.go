/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: log.go
Description: Log sender for the CrashGuard engine. Emits the report through the
structured logger, one field per log entry field. Primarily a development and
last-resort sink; it never fails.
*/

package senders

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/crashguard/pkg/report"
)

// LogSender writes reports to the structured logger.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a sender over the given logger.
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string {
	return "log"
}

// Send logs the report fields at error level. Always succeeds.
func (s *LogSender) Send(ctx context.Context, record *report.Record) error {
	fields := logrus.Fields{}
	for _, field := range record.Fields() {
		fields[string(field)] = record.Get(field)
	}
	s.logger.WithFields(fields).Error("Crash report")
	return nil
}
