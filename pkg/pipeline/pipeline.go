/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: pipeline.go
Description: Delivery pipeline for the CrashGuard engine. Decides per stored report
whether it may be sent under the configured interaction mode, drains pending reports
oldest-first under a bounded per-cycle send budget, and applies the
first-sender-authoritative delivery policy across the configured senders.
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/crashguard/pkg/config"
	"github.com/kleascm/crashguard/pkg/interfaces"
	"github.com/kleascm/crashguard/pkg/report"
	"github.com/kleascm/crashguard/pkg/store"
)

// Pipeline transmits stored reports through the configured senders. It
// never propagates failure to its caller: every error in a send cycle is
// absorbed and logged, and undelivered reports simply stay queued.
type Pipeline struct {
	store   *store.Store
	senders []interfaces.ReportSender
	cfg     *config.Config
	prefs   *config.Preferences
	logger  *logrus.Logger
}

// NewPipeline creates a delivery pipeline over the given store and senders.
// Sender order is significant: the first sender is authoritative for the
// retry decision, later senders are best-effort.
func NewPipeline(st *store.Store, senders []interfaces.ReportSender, cfg *config.Config, prefs *config.Preferences, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:   st,
		senders: senders,
		cfg:     cfg,
		prefs:   prefs,
		logger:  logger,
	}
}

// AddSender appends a sender to the delivery chain. Senders registered
// first stay authoritative for the retry decision.
func (p *Pipeline) AddSender(sender interfaces.ReportSender) {
	p.senders = append(p.senders, sender)
}

// eligible decides whether a stored report may be sent in this cycle.
// Silent and toast modes send everything; gated modes require the approved
// or silent tag unless the user granted blanket approval.
func (p *Pipeline) eligible(name string, onlySilent bool) bool {
	if onlySilent && !store.IsSilent(name) {
		return false
	}
	if p.prefs.AlwaysAccept() {
		return true
	}
	if p.cfg.Mode.NeedsApproval() {
		return store.IsApproved(name)
	}
	return true
}

// SendPending runs one bounded send cycle over the stored reports in
// ascending (oldest-first) name order. At most MaxSendReports deliveries
// are attempted; reports beyond the budget stay queued for the next cycle.
// With onlySilent set, only explicitly silent reports are considered.
func (p *Pipeline) SendPending(ctx context.Context, onlySilent bool) {
	names, err := p.store.List()
	if err != nil {
		p.logger.WithError(err).Error("Failed to list pending reports")
		return
	}

	attempted := 0
	for _, name := range names {
		if !p.eligible(name, onlySilent) {
			continue
		}
		if attempted >= p.cfg.MaxSendReports {
			p.logger.WithFields(logrus.Fields{
				"budget": p.cfg.MaxSendReports,
			}).Debug("Send budget exhausted, leaving remaining reports queued")
			break
		}
		attempted++

		record, err := p.store.Read(name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Unreadable reports can never be delivered; drop them so
				// they stop consuming budget every cycle.
				p.logger.WithFields(logrus.Fields{"report": name}).Warn("Dropping unreadable report")
				if err := p.store.Delete(name); err != nil {
					p.logger.WithError(err).Warn("Failed to drop unreadable report")
				}
				continue
			}
			p.logger.WithError(err).WithFields(logrus.Fields{"report": name}).Error("Failed to read report")
			continue
		}

		p.logger.WithFields(logrus.Fields{"report": name}).Info("Sending report")
		if err := p.SendReport(ctx, record); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"report": name,
			}).Warn("Report delivery failed, keeping report queued")
			continue
		}
		if err := p.store.Delete(name); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{"report": name}).Warn("Failed to delete delivered report")
		}
	}
}

// SendReport invokes every configured sender in order. The report counts as
// delivered once any sender succeeds: a later sender failing after that is
// logged and forgiven, since some sink already holds the report and
// retrying forever against a permanently broken secondary would loop. Only
// a first-sender failure returns an error, which keeps the report queued
// for a full retry later.
func (p *Pipeline) SendReport(ctx context.Context, record *report.Record) error {
	if len(p.senders) == 0 {
		return fmt.Errorf("no report senders configured")
	}

	sentAtLeastOnce := false
	for _, sender := range p.senders {
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SenderTimeout)
		err := sender.Send(sendCtx, record)
		cancel()
		if err == nil {
			sentAtLeastOnce = true
			continue
		}
		if !sentAtLeastOnce {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"sender": sender.Name(),
			}).Error("First sender failed, all senders will be retried later")
			return interfaces.NewDeliveryError(sender.Name(), err)
		}
		p.logger.WithError(err).WithFields(logrus.Fields{
			"sender": sender.Name(),
		}).Warn("Sender failed after another sender succeeded, report will not be re-sent")
	}
	return nil
}

// AttachComment merges a user comment into an already persisted report,
// rewriting the same file in place. All other fields are preserved.
func (p *Pipeline) AttachComment(name, comment string) error {
	if name == "" || comment == "" {
		return nil
	}
	record, err := p.store.Read(name)
	if err != nil {
		return fmt.Errorf("failed to load report for comment: %w", err)
	}
	record.Put(report.FieldUserComment, comment)
	if _, err := p.store.Write(record, name); err != nil {
		return fmt.Errorf("failed to rewrite commented report: %w", err)
	}
	return nil
}

// Store exposes the underlying report store.
func (p *Pipeline) Store() *store.Store {
	return p.store
}
