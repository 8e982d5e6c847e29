/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: factory_test.go
Description: Tests for report assembly. Covers collector fault isolation, enabled
field filtering, custom data flattening, silent tagging, and failure chain
rendering with wrapped errors and recovered panics.
*/

package collect_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/crashguard/pkg/collect"
	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/report"
)

func newTestFactory(t *testing.T, cfg *config.Config, extra ...interfaces.Collector) *collect.Factory {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	prefs, err := config.LoadPreferences("")
	require.NoError(t, err)
	return collect.NewFactory(cfg, prefs, logger, extra...)
}

func TestCreatePopulatesDefaultFields(t *testing.T) {
	cfg := config.DefaultConfig()
	factory := newTestFactory(t, cfg)

	record := factory.Create(errors.New("boom"), false)
	require.NotNil(t, record)

	assert.True(t, record.Has(report.FieldReportID))
	assert.True(t, record.Has(report.FieldStackTrace))
	assert.True(t, record.Has(report.FieldOS))
	assert.True(t, record.Has(report.FieldGoVersion))
	assert.True(t, record.Has(report.FieldCrashDate))
	assert.False(t, record.IsSilent())
	assert.Contains(t, record.Get(report.FieldStackTrace), "boom")
}

func TestCreateSilent(t *testing.T) {
	factory := newTestFactory(t, config.DefaultConfig())
	record := factory.Create(errors.New("tracked"), true)
	assert.True(t, record.IsSilent())
}

func TestCollectorFailureIsIsolated(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ReportFields = []report.Field{
		report.FieldStackTrace,
		report.FieldOS,
		report.FieldProcessLog,
	}

	factory := newTestFactory(t, cfg,
		collect.FieldCollector{ReportField: report.FieldProcessLog, Fn: func() (string, error) {
			return "", fmt.Errorf("diagnostic source unavailable")
		}},
	)

	record := factory.Create(errors.New("boom"), false)

	// The broken collector costs only its own field.
	assert.False(t, record.Has(report.FieldProcessLog))
	assert.True(t, record.Has(report.FieldOS))
	assert.True(t, record.Has(report.FieldStackTrace))
}

func TestEnabledFieldFiltering(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ReportFields = []report.Field{report.FieldStackTrace, report.FieldReportID}

	factory := newTestFactory(t, cfg)
	record := factory.Create(errors.New("boom"), false)

	assert.True(t, record.Has(report.FieldStackTrace))
	assert.True(t, record.Has(report.FieldReportID))
	assert.False(t, record.Has(report.FieldOS))
	assert.False(t, record.Has(report.FieldHostname))
	assert.False(t, record.Has(report.FieldCustomData))
}

func TestCustomDataFlattening(t *testing.T) {
	factory := newTestFactory(t, config.DefaultConfig())

	require.Equal(t, "", factory.PutCustomData("screen", "settings"))
	require.Equal(t, "", factory.PutCustomData("attempt", "1"))
	// Last write wins per key.
	require.Equal(t, "1", factory.PutCustomData("attempt", "2"))

	record := factory.Create(errors.New("boom"), false)
	custom := record.Get(report.FieldCustomData)
	assert.Equal(t, "attempt = 2\nscreen = settings\n", custom)

	assert.Equal(t, "2", factory.GetCustomData("attempt"))
	assert.Equal(t, "2", factory.RemoveCustomData("attempt"))
	assert.Equal(t, "", factory.GetCustomData("attempt"))
}

func TestFormatErrorChainOrder(t *testing.T) {
	root := errors.New("root cause")
	middle := fmt.Errorf("middle: %w", root)
	outer := fmt.Errorf("outer: %w", middle)

	text := collect.FormatErrorChain(outer)

	outerIdx := strings.Index(text, "outer")
	rootIdx := strings.Index(text, "caused by: root cause")
	require.GreaterOrEqual(t, outerIdx, 0)
	require.Greater(t, rootIdx, outerIdx, "root cause renders last")
	assert.Contains(t, text, "caused by: middle: root cause")
	// A goroutine stack is always appended.
	assert.Contains(t, text, "goroutine")
}

func TestFormatErrorChainNil(t *testing.T) {
	text := collect.FormatErrorChain(nil)
	assert.Contains(t, text, "report requested with no failure")
}

func TestRecoveredPanic(t *testing.T) {
	var failure error
	func() {
		defer func() {
			if value := recover(); value != nil {
				failure = collect.RecoveredPanic(value)
			}
		}()
		panic("lost invariant")
	}()

	require.Error(t, failure)
	assert.Contains(t, failure.Error(), "lost invariant")

	text := collect.FormatErrorChain(failure)
	assert.Contains(t, text, "panic: lost invariant")
	assert.Contains(t, text, "goroutine")
}

func TestRecoveredPanicUnwrapsErrors(t *testing.T) {
	root := errors.New("root cause")
	failure := collect.RecoveredPanic(fmt.Errorf("wrapped: %w", root))

	assert.True(t, errors.Is(failure, root))
	text := collect.FormatErrorChain(failure)
	assert.Contains(t, text, "caused by: root cause")
}
