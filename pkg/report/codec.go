/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: codec.go
Description: Textual serialization for report records. Writes one key=value pair per
line in canonical field order with escaped newlines, so a persisted report is an
ordered, human-diffable text map that both the writer and reader of this engine own.
*/

package report

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Marshal renders the record as ordered key=value lines. Values may span
// multiple lines in memory; newlines and backslashes are escaped so each
// pair occupies exactly one line on disk.
func (r *Record) Marshal() []byte {
	var buf bytes.Buffer
	for _, field := range r.Fields() {
		buf.WriteString(string(field))
		buf.WriteByte('=')
		buf.WriteString(escapeValue(r.values[field]))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Unmarshal parses serialized report content into a new record. Blank lines
// are skipped. A line without a key/value separator makes the whole record
// unreadable; callers treat that the same as a missing report.
func Unmarshal(data []byte) (*Record, error) {
	record := NewRecord()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed report line %d", lineNo)
		}
		record.values[Field(key)] = unescapeValue(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report content: %w", err)
	}
	return record, nil
}

// escapeValue folds a value onto one line: backslash first, then newlines.
func escapeValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "\r", `\r`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}

// unescapeValue is the inverse of escapeValue.
func unescapeValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	escaped := false
	for _, c := range value {
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteRune(c)
			}
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(c)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}
