/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: record.go
Description: Report record data model for the CrashGuard engine. Defines the enumerated
report field set and the Record type holding one crash report's key/value content,
with helpers for silent tagging and custom application data.
*/

package report

import "sort"

// Field is an enumerated tag naming one piece of report content.
// Fields are persisted as plain keys, so their values must stay stable
// across releases.
type Field string

const (
	FieldReportID         Field = "REPORT_ID"          // Unique identifier for this report
	FieldIsSilent         Field = "IS_SILENT"          // "true" when the report was raised silently
	FieldStackTrace       Field = "STACK_TRACE"        // Full failure chain and goroutine stack
	FieldAppVersion       Field = "APP_VERSION"        // Host application version
	FieldExecutablePath   Field = "FILE_PATH"          // Path of the running executable
	FieldHostname         Field = "HOSTNAME"           // Machine hostname
	FieldOS               Field = "OS"                 // Operating system (GOOS)
	FieldArch             Field = "ARCH"               // CPU architecture (GOARCH)
	FieldGoVersion        Field = "GO_VERSION"         // Runtime version that built the host
	FieldNumCPU           Field = "NUM_CPU"            // Logical CPU count
	FieldPID              Field = "PID"                // Process id
	FieldTotalMemSize     Field = "TOTAL_MEM_SIZE"     // Memory obtained from the system (bytes)
	FieldAvailableMemSize Field = "AVAILABLE_MEM_SIZE" // Memory not currently in use (bytes)
	FieldEnvironment      Field = "ENVIRONMENT"        // Selected environment details
	FieldProcessLog       Field = "PROCESS_LOG"        // Tail of the host process log
	FieldAppStartDate     Field = "USER_APP_START_DATE" // When the host process started
	FieldCrashDate        Field = "USER_CRASH_DATE"    // When the failure occurred
	FieldUserComment      Field = "USER_COMMENT"       // Comment attached by the user after the fact
	FieldUserEmail        Field = "USER_EMAIL"         // Contact address from preferences
	FieldCustomData       Field = "CUSTOM_DATA"        // Application-provided key/value pairs
)

// fieldOrder is the canonical serialization order. Records are written in
// this order so persisted files stay human-diffable across occurrences.
var fieldOrder = []Field{
	FieldReportID,
	FieldIsSilent,
	FieldAppVersion,
	FieldExecutablePath,
	FieldHostname,
	FieldOS,
	FieldArch,
	FieldGoVersion,
	FieldNumCPU,
	FieldPID,
	FieldTotalMemSize,
	FieldAvailableMemSize,
	FieldEnvironment,
	FieldAppStartDate,
	FieldCrashDate,
	FieldUserEmail,
	FieldCustomData,
	FieldUserComment,
	FieldProcessLog,
	FieldStackTrace,
}

// Record holds the content of a single crash report as a field/value map.
// Keys are unique; the map itself is unordered and ordering is applied
// at serialization time.
type Record struct {
	values map[Field]string
}

// NewRecord creates an empty report record.
func NewRecord() *Record {
	return &Record{values: make(map[Field]string)}
}

// Put stores a value for the given field, replacing any previous value.
func (r *Record) Put(field Field, value string) {
	r.values[field] = value
}

// Get returns the value stored for the given field, or the empty string.
func (r *Record) Get(field Field) string {
	return r.values[field]
}

// Has reports whether a value is present for the given field.
func (r *Record) Has(field Field) bool {
	_, ok := r.values[field]
	return ok
}

// Delete removes the value stored for the given field.
func (r *Record) Delete(field Field) {
	delete(r.values, field)
}

// Len returns the number of populated fields.
func (r *Record) Len() int {
	return len(r.values)
}

// MarkSilent tags the record as explicitly silent. Silent reports are
// delivered without any user-visible interaction regardless of the
// configured interaction mode.
func (r *Record) MarkSilent() {
	r.values[FieldIsSilent] = "true"
}

// IsSilent reports whether the record carries the silent tag.
func (r *Record) IsSilent() bool {
	return r.values[FieldIsSilent] == "true"
}

// Fields returns the populated fields in canonical order: known fields in
// their serialization order first, then any unknown keys sorted, so that
// files read back from older or newer versions round-trip deterministically.
func (r *Record) Fields() []Field {
	known := make(map[Field]bool, len(fieldOrder))
	fields := make([]Field, 0, len(r.values))
	for _, f := range fieldOrder {
		known[f] = true
		if _, ok := r.values[f]; ok {
			fields = append(fields, f)
		}
	}
	var extra []Field
	for f := range r.values {
		if !known[f] {
			extra = append(extra, f)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(fields, extra...)
}
