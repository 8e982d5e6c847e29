/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store_test.go
Description: Tests for the file-backed report store. Covers name synthesis and
status suffixes, ordered listing, approval renames and their idempotence, corrupt
file handling, purging by approval state, and selection of the latest non-silent
report.
*/

package store_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/crashguard/pkg/report"
	"github.com/kleascm/crashguard/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st, err := store.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return st
}

func newTestRecord(id string) *report.Record {
	record := report.NewRecord()
	record.Put(report.FieldReportID, id)
	record.Put(report.FieldStackTrace, "trace for "+id)
	return record
}

func TestWriteReadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	name, err := st.Write(newTestRecord("r1"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, store.Extension))
	assert.Equal(t, store.StatusPending, store.StatusOf(name))

	record, err := st.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "r1", record.Get(report.FieldReportID))
}

func TestSilentNaming(t *testing.T) {
	st := newTestStore(t)

	record := newTestRecord("r1")
	record.MarkSilent()
	name, err := st.Write(record, "")
	require.NoError(t, err)

	assert.True(t, store.IsSilent(name))
	assert.True(t, store.IsApproved(name), "silent reports are implicitly approved")
	assert.Equal(t, store.StatusSilent, store.StatusOf(name))

	loaded, err := st.Read(name)
	require.NoError(t, err)
	assert.True(t, loaded.IsSilent())
}

func TestUniqueNamesUnderRapidWrites(t *testing.T) {
	st := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := st.Write(newTestRecord("r"), "")
		require.NoError(t, err)
		assert.False(t, seen[name], "name %s synthesized twice", name)
		seen[name] = true
	}
}

func TestListSortedAscending(t *testing.T) {
	st := newTestStore(t)

	for _, base := range []string{"1000000000100-aa", "1000000000050-bb", "1000000000200-cc"} {
		path := filepath.Join(st.Dir(), base+store.Extension)
		require.NoError(t, os.WriteFile(path, newTestRecord(base).Marshal(), 0600))
	}
	// Non-report files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), []byte("x"), 0600))

	names, err := st.List()
	require.NoError(t, err)
	require.Equal(t, []string{
		"1000000000050-bb" + store.Extension,
		"1000000000100-aa" + store.Extension,
		"1000000000200-cc" + store.Extension,
	}, names)
}

func TestApproveRenamesAndIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	name, err := st.Write(newTestRecord("r1"), "")
	require.NoError(t, err)
	require.False(t, store.IsApproved(name))

	approved, err := st.Approve(name)
	require.NoError(t, err)
	assert.True(t, store.IsApproved(approved))
	assert.Equal(t, store.StatusApproved, store.StatusOf(approved))
	assert.True(t, strings.HasSuffix(approved, store.Extension))

	// Original name is gone, content moved with the rename.
	_, err = st.Read(name)
	assert.ErrorIs(t, err, store.ErrNotFound)
	record, err := st.Read(approved)
	require.NoError(t, err)
	assert.Equal(t, "r1", record.Get(report.FieldReportID))

	// Approving again is a no-op.
	again, err := st.Approve(approved)
	require.NoError(t, err)
	assert.Equal(t, approved, again)
}

func TestOverwriteKeepsName(t *testing.T) {
	st := newTestStore(t)

	name, err := st.Write(newTestRecord("r1"), "")
	require.NoError(t, err)

	record, err := st.Read(name)
	require.NoError(t, err)
	record.Put(report.FieldUserComment, "it broke while saving")

	rewritten, err := st.Write(record, name)
	require.NoError(t, err)
	assert.Equal(t, name, rewritten)

	names, err := st.List()
	require.NoError(t, err)
	assert.Len(t, names, 1)

	loaded, err := st.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "it broke while saving", loaded.Get(report.FieldUserComment))
	assert.Equal(t, "r1", loaded.Get(report.FieldReportID))
}

func TestReadMissingAndCorrupt(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Read("1000000000000-zz" + store.Extension)
	assert.ErrorIs(t, err, store.ErrNotFound)

	corrupt := "1000000000000-cc" + store.Extension
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), corrupt), []byte("no separator here"), 0600))
	_, err = st.Read(corrupt)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	st := newTestStore(t)
	assert.NoError(t, st.Delete("1000000000000-zz"+store.Extension))
}

func TestPurge(t *testing.T) {
	st := newTestStore(t)

	pending, err := st.Write(newTestRecord("pending"), "")
	require.NoError(t, err)

	silentRecord := newTestRecord("silent")
	silentRecord.MarkSilent()
	silentName, err := st.Write(silentRecord, "")
	require.NoError(t, err)

	approvedName, err := st.Write(newTestRecord("approved"), "")
	require.NoError(t, err)
	approvedName, err = st.Approve(approvedName)
	require.NoError(t, err)

	// Purge unapproved only: the pending report goes, the rest stay.
	removed, err := st.Purge(false, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	names, err := st.List()
	require.NoError(t, err)
	assert.NotContains(t, names, pending)
	assert.Contains(t, names, silentName)
	assert.Contains(t, names, approvedName)

	// Purge everything.
	removed, err = st.Purge(true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	names, err = st.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestApproveAll(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := st.Write(newTestRecord("r"), "")
		require.NoError(t, err)
	}

	require.NoError(t, st.ApproveAll())

	names, err := st.List()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, store.OnlyApprovedOrSilent(names))
}

func TestLatestNonSilent(t *testing.T) {
	silent := "1000000000300-aa-IS_SILENT" + store.Extension
	testCases := []struct {
		name     string
		names    []string
		expected string
	}{
		{
			name:     "empty",
			names:    nil,
			expected: "",
		},
		{
			name:     "newest non-silent wins",
			names:    []string{"1000000000100-aa" + store.Extension, "1000000000200-bb" + store.Extension, silent},
			expected: "1000000000200-bb" + store.Extension,
		},
		{
			name:     "all silent falls back to newest",
			names:    []string{silent},
			expected: silent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, store.LatestNonSilent(tc.names))
		})
	}
}
