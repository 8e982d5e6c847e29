/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: pipeline_test.go
Description: Tests for the delivery pipeline. Covers oldest-first send order, the
per-cycle send budget, first-sender-authoritative delivery across multiple senders,
approval gating in notification mode, silent-only cycles, comment merging and the
background send worker.
*/

package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/pipeline"
	"github.com/kleascm/crashguard/pkg/report"
	"github.com/kleascm/crashguard/pkg/store"
)

// fakeSender records every report it is handed and fails on demand.
type fakeSender struct {
	name string
	fail bool

	mu   sync.Mutex
	sent []*report.Record
}

func (s *fakeSender) Name() string { return s.name }

func (s *fakeSender) Send(_ context.Context, record *report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("transport down")
	}
	s.sent = append(s.sent, record)
	return nil
}

func (s *fakeSender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sent))
	for _, record := range s.sent {
		ids = append(ids, record.Get(report.FieldReportID))
	}
	return ids
}

func newTestPipeline(t *testing.T, cfg *config.Config, senders ...interfaces.ReportSender) (*pipeline.Pipeline, *store.Store, *config.Preferences) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st, err := store.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	prefs, err := config.LoadPreferences("")
	require.NoError(t, err)
	return pipeline.NewPipeline(st, senders, cfg, prefs, logger), st, prefs
}

// writeReport persists a record under a crafted name so tests control the
// listing order.
func writeReport(t *testing.T, st *store.Store, name, id string) {
	t.Helper()
	record := report.NewRecord()
	record.Put(report.FieldReportID, id)
	record.Put(report.FieldStackTrace, "boom")
	_, err := st.Write(record, name)
	require.NoError(t, err)
}

func TestSendPendingOldestFirst(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	p, st, _ := newTestPipeline(t, config.DefaultConfig(), sender)

	// Written newest-first on purpose; delivery must re-sort.
	writeReport(t, st, "200-cc"+store.Extension, "third")
	writeReport(t, st, "50-aa"+store.Extension, "first")
	writeReport(t, st, "100-bb"+store.Extension, "second")

	p.SendPending(context.Background(), false)

	assert.Equal(t, []string{"first", "second", "third"}, sender.sentIDs())
	names, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, names, "delivered reports are deleted")
}

func TestSendPendingBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxSendReports = 5
	sender := &fakeSender{name: "fake"}
	p, st, _ := newTestPipeline(t, cfg, sender)

	for i := 0; i < 7; i++ {
		writeReport(t, st, fmt.Sprintf("%03d-aa%s", i, store.Extension), fmt.Sprintf("r%d", i))
	}

	p.SendPending(context.Background(), false)

	assert.Len(t, sender.sentIDs(), 5)
	names, err := st.List()
	require.NoError(t, err)
	require.Len(t, names, 2, "reports beyond the budget stay queued")
	assert.Equal(t, []string{"005-aa" + store.Extension, "006-aa" + store.Extension}, names)
}

func TestSendPendingKeepsReportOnFailure(t *testing.T) {
	sender := &fakeSender{name: "fake", fail: true}
	p, st, _ := newTestPipeline(t, config.DefaultConfig(), sender)

	writeReport(t, st, "100-aa"+store.Extension, "r1")
	p.SendPending(context.Background(), false)

	names, err := st.List()
	require.NoError(t, err)
	assert.Len(t, names, 1, "failed delivery keeps the report queued")

	// Transport recovers, the next cycle drains it.
	sender.fail = false
	p.SendPending(context.Background(), false)
	names, err = st.List()
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, []string{"r1"}, sender.sentIDs())
}

func TestSendReportFirstSenderAuthoritative(t *testing.T) {
	first := &fakeSender{name: "first", fail: true}
	second := &fakeSender{name: "second"}
	p, _, _ := newTestPipeline(t, config.DefaultConfig(), first, second)

	record := report.NewRecord()
	record.Put(report.FieldReportID, "r1")

	err := p.SendReport(context.Background(), record)
	require.Error(t, err)

	var deliveryErr *interfaces.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, "first", deliveryErr.Sender)
}

func TestSendReportLaterSenderFailureIsForgiven(t *testing.T) {
	first := &fakeSender{name: "first"}
	second := &fakeSender{name: "second", fail: true}
	p, _, _ := newTestPipeline(t, config.DefaultConfig(), first, second)

	record := report.NewRecord()
	record.Put(report.FieldReportID, "r1")

	err := p.SendReport(context.Background(), record)
	assert.NoError(t, err, "delivery counts once any sender succeeded")
	assert.Equal(t, []string{"r1"}, first.sentIDs())
}

func TestSendReportNoSenders(t *testing.T) {
	p, _, _ := newTestPipeline(t, config.DefaultConfig())
	err := p.SendReport(context.Background(), report.NewRecord())
	assert.Error(t, err)
}

func TestApprovalGatingInNotificationMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeNotification
	sender := &fakeSender{name: "fake"}
	p, st, _ := newTestPipeline(t, cfg, sender)

	writeReport(t, st, "100-aa"+store.Extension, "pending")
	writeReport(t, st, "200-bb-approved"+store.Extension, "approved")
	writeReport(t, st, "300-cc-IS_SILENT"+store.Extension, "silent")

	p.SendPending(context.Background(), false)

	// Approved and silent reports go out; the pending one stays.
	assert.ElementsMatch(t, []string{"approved", "silent"}, sender.sentIDs())
	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"100-aa" + store.Extension}, names)

	// User consent makes it eligible on the next cycle.
	_, err = st.Approve("100-aa" + store.Extension)
	require.NoError(t, err)
	p.SendPending(context.Background(), false)
	names, err = st.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAlwaysAcceptBypassesGating(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeDialog
	sender := &fakeSender{name: "fake"}
	p, st, prefs := newTestPipeline(t, cfg, sender)

	writeReport(t, st, "100-aa"+store.Extension, "pending")
	require.NoError(t, prefs.SetAlwaysAccept(true))

	p.SendPending(context.Background(), false)
	assert.Equal(t, []string{"pending"}, sender.sentIDs())
}

func TestSilentOnlyCycle(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	p, st, _ := newTestPipeline(t, config.DefaultConfig(), sender)

	writeReport(t, st, "100-aa"+store.Extension, "loud")
	writeReport(t, st, "200-bb-IS_SILENT"+store.Extension, "quiet")

	p.SendPending(context.Background(), true)

	assert.Equal(t, []string{"quiet"}, sender.sentIDs())
	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"100-aa" + store.Extension}, names)
}

func TestAttachComment(t *testing.T) {
	p, st, _ := newTestPipeline(t, config.DefaultConfig(), &fakeSender{name: "fake"})

	name := "100-aa" + store.Extension
	writeReport(t, st, name, "r1")

	require.NoError(t, p.AttachComment(name, "it crashed while saving"))

	record, err := st.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "it crashed while saving", record.Get(report.FieldUserComment))
	assert.Equal(t, "r1", record.Get(report.FieldReportID), "other fields survive the merge")

	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names, "comment merge keeps the same file name")
}

func TestAttachCommentEmptyArgsAreNoops(t *testing.T) {
	p, _, _ := newTestPipeline(t, config.DefaultConfig(), &fakeSender{name: "fake"})
	assert.NoError(t, p.AttachComment("", "comment"))
	assert.NoError(t, p.AttachComment("100-aa"+store.Extension, ""))
}

func TestWorkerApprovesCommentsAndSends(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeDialog
	sender := &fakeSender{name: "fake"}
	p, st, _ := newTestPipeline(t, cfg, sender)

	name := "100-aa" + store.Extension
	writeReport(t, st, name, "r1")

	worker := pipeline.NewWorker(p, false)
	worker.SetApprovePending()
	worker.SetComment(name, "steps to reproduce")
	worker.Start(context.Background())
	require.True(t, worker.Wait(5*time.Second))

	ids := sender.sentIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "r1", ids[0])

	sender.mu.Lock()
	comment := sender.sent[0].Get(report.FieldUserComment)
	sender.mu.Unlock()
	assert.Equal(t, "steps to reproduce", comment)

	names, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWorkerWaitTimesOut(t *testing.T) {
	p, _, _ := newTestPipeline(t, config.DefaultConfig(), &fakeSender{name: "fake"})
	worker := pipeline.NewWorker(p, false)
	// Never started: Wait must come back on its own deadline.
	assert.False(t, worker.Wait(20*time.Millisecond))
}
