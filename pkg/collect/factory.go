/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: factory.go
Description: Report assembly for the CrashGuard engine. The Factory gathers one
report record representing process and environment state at the moment of a
failure, fanning out to independent collectors with per-collector fault isolation
so a single broken diagnostic source never costs the rest of the report.
*/

package collect

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/report"
)

// Factory assembles report records. It holds the resolved enabled field
// set, the registered collectors, and the in-memory custom data map
// mutated by application code between failures.
type Factory struct {
	enabledFields map[report.Field]bool
	collectors    []interfaces.Collector
	prefs         *config.Preferences
	appVersion    string
	startDate     time.Time
	logger        *logrus.Logger

	mu         sync.RWMutex
	customData map[string]string
}

// NewFactory creates a factory with the engine's built-in collectors plus
// any extras. The enabled field set is resolved once here, not re-derived
// per report.
func NewFactory(cfg *config.Config, prefs *config.Preferences, logger *logrus.Logger, extra ...interfaces.Collector) *Factory {
	enabled := make(map[report.Field]bool)
	for _, field := range cfg.EnabledFields() {
		enabled[field] = true
	}
	return &Factory{
		enabledFields: enabled,
		collectors:    append(DefaultCollectors(), extra...),
		prefs:         prefs,
		appVersion:    cfg.AppVersion,
		startDate:     time.Now(),
		logger:        logger,
		customData:    make(map[string]string),
	}
}

// PutCustomData stores an application-provided key/value pair reported in
// the custom data field. Only the latest value per key is kept. Returns
// the previous value for the key, if any.
func (f *Factory) PutCustomData(key, value string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous := f.customData[key]
	f.customData[key] = value
	return previous
}

// RemoveCustomData removes a custom data key. Returns the removed value.
func (f *Factory) RemoveCustomData(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous := f.customData[key]
	delete(f.customData, key)
	return previous
}

// GetCustomData returns the current value for a custom data key.
func (f *Factory) GetCustomData(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.customData[key]
}

// customDataString flattens the custom data map into one field value with
// a 'key = value' pair per line, keys sorted for stable output.
func (f *Factory) customDataString() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.customData) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.customData))
	for key := range f.customData {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(" = ")
		b.WriteString(f.customData[key])
		b.WriteByte('\n')
	}
	return b.String()
}

// Create assembles one report record for the given failure. Assembly is
// best-effort: every entry is collected independently and a failing
// collector only costs its own field. Create never writes storage and
// never returns nil.
func (f *Factory) Create(failure error, silent bool) *report.Record {
	record := report.NewRecord()

	// The stack trace is the one field worth collecting before anything
	// else: if collection itself goes wrong later, the trace is already in.
	if f.enabled(report.FieldStackTrace) {
		record.Put(report.FieldStackTrace, FormatErrorChain(failure))
	}
	if silent {
		record.MarkSilent()
	}
	if f.enabled(report.FieldReportID) {
		record.Put(report.FieldReportID, uuid.NewString())
	}
	if f.enabled(report.FieldAppVersion) && f.appVersion != "" {
		record.Put(report.FieldAppVersion, f.appVersion)
	}
	if f.enabled(report.FieldAppStartDate) {
		record.Put(report.FieldAppStartDate, f.startDate.Format(time.RFC3339))
	}
	if f.enabled(report.FieldCrashDate) {
		record.Put(report.FieldCrashDate, time.Now().Format(time.RFC3339))
	}
	if f.enabled(report.FieldCustomData) {
		record.Put(report.FieldCustomData, f.customDataString())
	}
	if f.enabled(report.FieldUserEmail) {
		if email := f.prefs.UserEmail(); email != "" {
			record.Put(report.FieldUserEmail, email)
		}
	}

	for _, collector := range f.collectors {
		field := collector.Field()
		if !f.enabled(field) || record.Has(field) {
			continue
		}
		value, err := collector.Collect()
		if err != nil {
			f.logger.WithFields(logrus.Fields{
				"field": string(field),
				"error": err,
			}).Warn("Collector failed, omitting field")
			continue
		}
		record.Put(field, value)
	}

	return record
}

// enabled reports whether a field belongs to the resolved field set.
func (f *Factory) enabled(field report.Field) bool {
	return f.enabledFields[field]
}
