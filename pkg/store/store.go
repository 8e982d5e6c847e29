/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Durable file-backed report store for the CrashGuard engine. Persists one
report per file in a private directory, encodes lifecycle status in the file name,
and provides listing, approval and purge operations used by the delivery pipeline.
*/

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/crashguard/pkg/report"
)

const (
	// Extension identifies report files in the report directory.
	Extension = ".stacktrace"

	// silentSuffix tags reports raised explicitly via the silent API.
	silentSuffix = "-" + string(report.FieldIsSilent)

	// approvedSuffix tags reports the user consented to send.
	approvedSuffix = "-approved"
)

// ErrNotFound is returned when a report file is missing or unreadable.
// Corrupt files are deliberately treated the same as missing ones: a
// damaged report must never destabilize the host.
var ErrNotFound = errors.New("report not found")

// Status is the lifecycle state of a stored report, derived from its name.
type Status int

const (
	// StatusPending reports are held until the user approves them in
	// gated interaction modes.
	StatusPending Status = iota
	// StatusApproved reports carry explicit user consent.
	StatusApproved
	// StatusSilent reports were raised via the silent API and are always
	// delivery-eligible.
	StatusSilent
)

func (s Status) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusSilent:
		return "silent"
	default:
		return "pending"
	}
}

// Store persists report records as named files in a private directory.
// One process instance owns the directory; no cross-process locking is
// attempted.
type Store struct {
	dir    string
	logger *logrus.Logger
}

// NewStore creates the report directory if needed and returns a store
// bound to it.
func NewStore(dir string, logger *logrus.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the report directory path.
func (s *Store) Dir() string {
	return s.dir
}

// newReportName synthesizes a unique report file name. The leading
// millisecond timestamp keeps lexical order equal to creation order; the
// uuid fragment guards against collisions under rapid repeated failures
// and clock rollback.
func newReportName(isSilent bool) string {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	if isSilent {
		name += silentSuffix
	}
	return name + Extension
}

// Write serializes the record to the report directory. When existingName is
// empty a new name is synthesized, with the silent suffix if the record is
// tagged silent; otherwise the named file is overwritten in place, which is
// how a user comment is merged into an already persisted report.
func (s *Store) Write(record *report.Record, existingName string) (string, error) {
	name := existingName
	if name == "" {
		name = newReportName(record.IsSilent())
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, record.Marshal(), 0600); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to place report file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"report": name,
		"fields": record.Len(),
	}).Debug("Report file written")
	return name, nil
}

// List returns the names of all stored reports sorted ascending, which is
// timestamp order given the naming scheme. The listing is a snapshot;
// callers re-list whenever directory state may have changed.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list report directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads and parses one stored report. Missing and corrupt files both
// yield ErrNotFound.
func (s *Store) Read(name string) (*report.Record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read report %s: %w", name, err)
	}
	record, err := report.Unmarshal(data)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"report": name,
			"error":  err,
		}).Warn("Report file is corrupt, treating as unreadable")
		return nil, ErrNotFound
	}
	return record, nil
}

// Delete removes one stored report. A missing file is not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report %s: %w", name, err)
	}
	return nil
}

// Approve renames the report to carry the approved suffix, making it
// delivery-eligible in gated interaction modes. Approving an already
// approved or silent report is a no-op. Returns the report's current name.
func (s *Store) Approve(name string) (string, error) {
	if IsApproved(name) {
		return name, nil
	}
	base := strings.TrimSuffix(name, Extension)
	approved := base + approvedSuffix + Extension
	if err := os.Rename(filepath.Join(s.dir, name), filepath.Join(s.dir, approved)); err != nil {
		return "", fmt.Errorf("failed to approve report %s: %w", name, err)
	}
	s.logger.WithFields(logrus.Fields{"report": approved}).Debug("Report approved")
	return approved, nil
}

// ApproveAll flags every pending report as approved.
func (s *Store) ApproveAll() error {
	names, err := s.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := s.Approve(name); err != nil {
			return err
		}
	}
	return nil
}

// Purge deletes stored reports by approval state. Set deleteApproved to
// remove approved and silent reports, deleteUnapproved to remove pending
// ones. Returns the number of reports removed.
func (s *Store) Purge(deleteApproved, deleteUnapproved bool) (int, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		approved := IsApproved(name)
		if (approved && deleteApproved) || (!approved && deleteUnapproved) {
			if err := s.Delete(name); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// LatestNonSilent returns the most recently created report that was not
// raised silently, used to pick the report surfaced to the user. Falls back
// to the newest report when every stored report is silent.
func LatestNonSilent(names []string) string {
	if len(names) == 0 {
		return ""
	}
	for i := len(names) - 1; i >= 0; i-- {
		if !IsSilent(names[i]) {
			return names[i]
		}
	}
	return names[len(names)-1]
}

// IsSilent reports whether the name carries the silent suffix.
func IsSilent(name string) bool {
	return strings.Contains(name, silentSuffix)
}

// IsApproved reports whether the report is delivery-eligible in gated
// modes: explicitly approved by the user, or explicitly silent.
func IsApproved(name string) bool {
	return IsSilent(name) || strings.Contains(name, approvedSuffix)
}

// StatusOf derives the lifecycle status encoded in a report name.
func StatusOf(name string) Status {
	switch {
	case IsSilent(name):
		return StatusSilent
	case strings.Contains(name, approvedSuffix):
		return StatusApproved
	default:
		return StatusPending
	}
}

// OnlyApprovedOrSilent reports whether every listed report is
// delivery-eligible without further user interaction.
func OnlyApprovedOrSilent(names []string) bool {
	for _, name := range names {
		if !IsApproved(name) {
			return false
		}
	}
	return true
}
