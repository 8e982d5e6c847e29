/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interceptor.go
Description: Global failure interceptor for the CrashGuard engine. Glues the data
factory, report store and delivery pipeline together: on an uncaught failure it
builds and persists a report, dispatches delivery according to the configured
interaction mode, flushes the send worker under a hard deadline, and then either
delegates to the previously installed failure handler or terminates the process.
*/

package interceptor

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/crashguard/pkg/collect"
	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/pipeline"
	"github.com/kleascm/crashguard/pkg/store"
)

// exitCodeCrash is the status the process exits with after handling a
// fatal failure in a non-silent mode.
const exitCodeCrash = 10

// Reporter is the process-scoped crash reporting engine. Construct one at
// startup with New, register senders, then install it on the host's
// failure path (typically via Recover in deferred functions). There is no
// package-level singleton; the host owns the lifecycle and tears it down
// with Disable.
type Reporter struct {
	cfg      *config.Config
	prefs    *config.Preferences
	store    *store.Store
	factory  *collect.Factory
	pipeline *pipeline.Pipeline

	interaction interfaces.UserInteraction
	previous    func(error)
	terminate   func(code int)
	logger      *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// handling serializes failure processing: one failure in flight per
	// process. A concurrent second failure blocks here until the first
	// either terminates the process or falls through.
	handling sync.Mutex
	disabled atomic.Bool
}

// New constructs the engine: preferences, store, data factory and delivery
// pipeline, wired per the given configuration. Senders are registered
// afterwards with AddSender; collectors beyond the built-in set are passed
// here.
func New(cfg *config.Config, logger *logrus.Logger, extraCollectors ...interfaces.Collector) (*Reporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prefs, err := config.LoadPreferences(cfg.PreferencesPath)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(cfg.ReportDir, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		cfg:         cfg,
		prefs:       prefs,
		store:       st,
		factory:     collect.NewFactory(cfg, prefs, logger, extraCollectors...),
		pipeline:    pipeline.NewPipeline(st, nil, cfg, prefs, logger),
		interaction: interfaces.NopInteraction{},
		terminate:   os.Exit,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	r.disabled.Store(prefs.Disabled())
	return r, nil
}

// AddSender registers a report sender. Order is significant.
func (r *Reporter) AddSender(sender interfaces.ReportSender) {
	r.pipeline.AddSender(sender)
}

// SetInteraction installs the presentation collaborator for user-gated
// modes. The default is a no-op for headless hosts.
func (r *Reporter) SetInteraction(interaction interfaces.UserInteraction) {
	if interaction != nil {
		r.interaction = interaction
	}
}

// SetPreviousHandler records the failure handler that was installed before
// this engine. Silent mode delegates to it after handling so the platform's
// own crash behavior is preserved.
func (r *Reporter) SetPreviousHandler(handler func(error)) {
	r.previous = handler
}

// SetTerminator overrides the process termination function. Tests inject a
// recorder here; production keeps os.Exit.
func (r *Reporter) SetTerminator(terminate func(code int)) {
	if terminate != nil {
		r.terminate = terminate
	}
}

// Store exposes the underlying report store.
func (r *Reporter) Store() *store.Store {
	return r.store
}

// Pipeline exposes the delivery pipeline.
func (r *Reporter) Pipeline() *pipeline.Pipeline {
	return r.pipeline
}

// Preferences exposes the mutable user preferences.
func (r *Reporter) Preferences() *config.Preferences {
	return r.prefs
}

// PutCustomData stores an application key/value pair included in the next
// report. Returns the previous value for the key, if any.
func (r *Reporter) PutCustomData(key, value string) string {
	return r.factory.PutCustomData(key, value)
}

// RemoveCustomData removes an application key/value pair.
func (r *Reporter) RemoveCustomData(key string) string {
	return r.factory.RemoveCustomData(key)
}

// GetCustomData returns the current value for an application key.
func (r *Reporter) GetCustomData(key string) string {
	return r.factory.GetCustomData(key)
}

// Recover is the panic hook. Use it in a deferred call on every goroutine
// the engine should cover:
//
//	defer reporter.Recover()
//
// A recovered panic runs the full uncaught-failure path, which in
// non-silent modes does not return.
func (r *Reporter) Recover() {
	if value := recover(); value != nil {
		r.HandleUncaught(collect.RecoveredPanic(value))
	}
}

// HandleUncaught processes a fatal uncaught failure: build, persist and
// dispatch the report, wait (bounded) for delivery to flush, then perform
// the terminal action. In silent mode the previously installed handler
// runs and HandleUncaught returns; in every other mode the process is
// terminated and this method never returns.
func (r *Reporter) HandleUncaught(failure error) {
	r.handling.Lock()
	defer r.handling.Unlock()

	if r.disabled.Load() {
		r.delegate(failure)
		return
	}

	r.logger.WithFields(logrus.Fields{
		"failure": failure,
	}).Error("Caught an uncaught failure, building report")

	worker, _ := r.dispatch(failure, r.cfg.Mode, false)

	if r.cfg.Mode == config.ModeToast {
		// Give the acknowledgment time to render before the process dies.
		time.Sleep(r.cfg.AcknowledgmentDelay)
	}
	if worker != nil {
		if !worker.Wait(r.cfg.ShutdownFlushTimeout) {
			r.logger.Warn("Delivery worker did not finish before shutdown deadline, report stays queued")
		}
	}

	if r.cfg.Mode == config.ModeSilent {
		// Let the platform's own handler produce its crash surface.
		r.delegate(failure)
		return
	}

	// A default crash dialog stacking on top of our own notification or
	// toast is one crash surface too many; close the process ourselves.
	r.logger.WithFields(logrus.Fields{
		"failure": failure,
	}).Error("Fatal failure handled, terminating process")
	r.terminate(exitCodeCrash)
}

// HandleError builds and dispatches a report for a non-fatal failure with
// the globally configured interaction mode. Returns the send worker when
// one was started, so callers can flush before a planned shutdown. A nil
// failure produces a developer-requested placeholder report.
func (r *Reporter) HandleError(failure error) *pipeline.Worker {
	if r.disabled.Load() {
		return nil
	}
	worker, _ := r.dispatch(failure, r.cfg.Mode, false)
	return worker
}

// HandleSilentError reports a failure silently regardless of the
// configured mode, the channel for tracked non-fatal events. The record is
// tagged silent, and when the global mode is user-facing the triggered
// cycle is restricted to silent reports so pending user-gated reports are
// not smuggled out.
func (r *Reporter) HandleSilentError(failure error) *pipeline.Worker {
	if r.disabled.Load() {
		return nil
	}
	worker, _ := r.dispatch(failure, config.ModeSilent, true)
	return worker
}

// dispatch is the shared report path: assemble, persist, then either start
// a send worker or surface the report for approval, per mode policy.
func (r *Reporter) dispatch(failure error, mode config.Mode, forceSilent bool) (*pipeline.Worker, string) {
	if failure == nil {
		failure = errors.New("report requested by developer")
	}

	// Restrict the cycle to silent reports when a silent report is raised
	// inside a host configured for user-gated reporting.
	onlySilent := mode == config.ModeSilent && r.cfg.Mode != config.ModeSilent

	if mode == config.ModeToast || (mode.NeedsApproval() && r.cfg.ToastText != "") {
		// Fire the acknowledgment without blocking report assembly.
		go r.interaction.ShowAcknowledgment(r.cfg.ToastText)
	}

	record := r.factory.Create(failure, forceSilent)
	name, err := r.store.Write(record, "")
	if err != nil {
		// A lost report must never crash the host; delivery of whatever is
		// already stored can still proceed.
		r.logger.WithError(err).Error("Failed to persist crash report")
	}

	if mode.SendsImmediately() || r.prefs.AlwaysAccept() {
		worker := pipeline.NewWorker(r.pipeline, onlySilent)
		worker.Start(r.ctx)
		return worker, name
	}
	if mode.NeedsApproval() && name != "" {
		r.interaction.Notify(name)
	}
	return nil, name
}

// CheckOnStart resolves reports left over from a previous run. Immediate
// modes drain right away; gated modes drain only when every stored report
// is already approved or silent, otherwise the newest non-silent report is
// surfaced to the user, or pending reports are purged when so configured.
// Returns the send worker when a cycle was started.
func (r *Reporter) CheckOnStart() *pipeline.Worker {
	if r.disabled.Load() {
		return nil
	}

	names, err := r.store.List()
	if err != nil {
		r.logger.WithError(err).Error("Failed to inspect stored reports on start")
		return nil
	}
	if len(names) == 0 {
		return nil
	}

	allApproved := store.OnlyApprovedOrSilent(names)
	switch {
	case r.cfg.Mode.SendsImmediately() || (r.cfg.Mode.NeedsApproval() && allApproved):
		if r.cfg.Mode == config.ModeToast && !allApproved {
			r.interaction.ShowAcknowledgment(r.cfg.ToastText)
		}
		worker := pipeline.NewWorker(r.pipeline, false)
		worker.Start(r.ctx)
		return worker

	case r.cfg.DeleteUnapprovedOnStart:
		// The user ignored the last prompt; honor the configured cleanup.
		if _, err := r.store.Purge(false, true); err != nil {
			r.logger.WithError(err).Error("Failed to purge unapproved reports")
		}

	default:
		r.interaction.Notify(store.LatestNonSilent(names))
	}
	return nil
}

// ApprovePending flags every stored report as user-approved and starts a
// send cycle, optionally merging a user comment into the named report
// first. This is the action behind the user accepting a report prompt.
func (r *Reporter) ApprovePending(commentReportName, comment string) *pipeline.Worker {
	worker := pipeline.NewWorker(r.pipeline, false)
	worker.SetApprovePending()
	if commentReportName != "" {
		worker.SetComment(commentReportName, comment)
	}
	worker.Start(r.ctx)
	return worker
}

// DeletePendingReports removes every stored report.
func (r *Reporter) DeletePendingReports() error {
	_, err := r.store.Purge(true, true)
	return err
}

// DeletePendingNonApprovedReports removes reports still awaiting user
// approval.
func (r *Reporter) DeletePendingNonApprovedReports() error {
	_, err := r.store.Purge(false, true)
	return err
}

// delegate hands the failure to the previously installed handler, if any.
func (r *Reporter) delegate(failure error) {
	if r.previous != nil {
		r.previous(failure)
	}
}

// Disable turns the engine off: subsequent failures flow straight to the
// previous handler and background work is cancelled. The stored reports
// are left untouched.
func (r *Reporter) Disable() {
	r.logger.Info("Crash reporting disabled")
	r.disabled.Store(true)
	r.cancel()
}

// Enable turns a disabled engine back on.
func (r *Reporter) Enable() {
	if r.ctx.Err() != nil {
		r.ctx, r.cancel = context.WithCancel(context.Background())
	}
	r.disabled.Store(false)
	r.logger.Info("Crash reporting enabled")
}
