/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: worker.go
Description: Background send worker for the CrashGuard engine. Runs one short-lived
goroutine that optionally approves pending reports, merges a queued user comment
into its report, then drains pending reports, so the failure-handling path never
blocks on transport. The interceptor waits on the worker with a hard deadline
before letting the process die.
*/

package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Worker performs one asynchronous pass of comment attachment, approval
// and report sending. A Worker is single-use: configure it, Start it once,
// then Wait for it.
type Worker struct {
	pipeline   *Pipeline
	onlySilent bool
	approveAll bool

	commentName string
	commentText string

	done chan struct{}
}

// NewWorker creates a send worker. With onlySilent set the cycle only
// considers explicitly silent reports.
func NewWorker(p *Pipeline, onlySilent bool) *Worker {
	return &Worker{
		pipeline:   p,
		onlySilent: onlySilent,
		done:       make(chan struct{}),
	}
}

// SetApprovePending makes the worker flag every stored report as approved
// before sending, the action behind the user's "send" consent.
func (w *Worker) SetApprovePending() {
	w.approveAll = true
}

// SetComment queues a user comment to merge into a specific report before
// the send cycle runs.
func (w *Worker) SetComment(reportName, comment string) {
	w.commentName = reportName
	w.commentText = comment
}

// Start launches the worker goroutine. Any failure inside the cycle is
// logged and absorbed; the worker always finishes.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		// The comment merges first: approval renames report files, which
		// would strand a comment queued against the pre-approval name.
		if w.commentName != "" {
			if err := w.pipeline.AttachComment(w.commentName, w.commentText); err != nil {
				w.pipeline.logger.WithError(err).WithFields(logrus.Fields{
					"report": w.commentName,
				}).Warn("User comment not added")
			}
		}
		if w.approveAll {
			if err := w.pipeline.Store().ApproveAll(); err != nil {
				w.pipeline.logger.WithError(err).Error("Failed to approve pending reports")
			}
		}
		w.pipeline.SendPending(ctx, w.onlySilent)
	}()
}

// Wait blocks until the worker finishes or the timeout elapses. Returns
// true when the worker completed in time.
func (w *Worker) Wait(timeout time.Duration) bool {
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done exposes the completion channel for select-based callers.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
