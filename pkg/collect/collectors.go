/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: collectors.go
Description: Built-in diagnostic collectors for the CrashGuard engine. Each collector
populates one optional report field from ambient process state: runtime identity,
memory statistics, executable path and environment details. All are independent and
safe to run on a crashing goroutine.
*/

package collect

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/report"
)

// FieldCollector adapts a plain function into a Collector. Most built-in
// collectors are one-liners over the runtime and os packages.
type FieldCollector struct {
	ReportField report.Field
	Fn          func() (string, error)
}

func (c FieldCollector) Field() report.Field {
	return c.ReportField
}

func (c FieldCollector) Collect() (string, error) {
	return c.Fn()
}

// DefaultCollectors returns the engine's built-in collector set. The
// factory filters these against the enabled field set, so registering a
// collector for a disabled field costs nothing.
func DefaultCollectors() []interfaces.Collector {
	return []interfaces.Collector{
		FieldCollector{report.FieldOS, func() (string, error) {
			return runtime.GOOS, nil
		}},
		FieldCollector{report.FieldArch, func() (string, error) {
			return runtime.GOARCH, nil
		}},
		FieldCollector{report.FieldGoVersion, func() (string, error) {
			return runtime.Version(), nil
		}},
		FieldCollector{report.FieldNumCPU, func() (string, error) {
			return strconv.Itoa(runtime.NumCPU()), nil
		}},
		FieldCollector{report.FieldPID, func() (string, error) {
			return strconv.Itoa(os.Getpid()), nil
		}},
		FieldCollector{report.FieldHostname, collectHostname},
		FieldCollector{report.FieldExecutablePath, collectExecutablePath},
		FieldCollector{report.FieldTotalMemSize, collectTotalMem},
		FieldCollector{report.FieldAvailableMemSize, collectAvailableMem},
		FieldCollector{report.FieldEnvironment, collectEnvironment},
	}
}

func collectHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname unavailable: %w", err)
	}
	return hostname, nil
}

func collectExecutablePath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("executable path unavailable: %w", err)
	}
	return path, nil
}

// collectTotalMem reports the memory obtained from the system by the Go
// runtime, the closest process-local analog of total device memory.
func collectTotalMem() (string, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return strconv.FormatUint(stats.Sys, 10), nil
}

// collectAvailableMem reports memory held by the runtime but not in use.
func collectAvailableMem() (string, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return strconv.FormatUint(stats.HeapIdle-stats.HeapReleased, 10), nil
}

// environmentKeys is the allow-list of environment variables worth
// reporting. Everything else stays out of reports: environments routinely
// carry credentials.
var environmentKeys = []string{
	"HOME", "LANG", "PATH", "PWD", "SHELL", "TERM", "TZ", "USER",
}

func collectEnvironment() (string, error) {
	keys := append([]string(nil), environmentKeys...)
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(value)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
