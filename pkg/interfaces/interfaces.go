/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the CrashGuard engine. Defines the pluggable
collaborator contracts used across all packages to break import cycles and enable
proper modular design: diagnostic collectors, report senders, and the user
interaction surface. Transport and presentation internals live behind these
interfaces so the lifecycle engine itself stays platform-agnostic.
*/

package interfaces

import (
	"context"
	"fmt"

	"github.com/kleascm/crashguard/pkg/report"
)

// Collector produces the value of one optional report field. Collectors are
// independent: a failing collector never prevents the remaining fields from
// being gathered.
type Collector interface {
	// Field returns the report field this collector populates.
	Field() report.Field

	// Collect gathers the field value from ambient process or system state.
	Collect() (string, error)
}

// ReportSender delivers one report to one external sink. Senders are
// stateless across calls except for their own destination configuration,
// and are invoked sequentially in registration order.
type ReportSender interface {
	// Name identifies the sender in logs and delivery errors.
	Name() string

	// Send transmits the report. It must honor the context deadline; a hung
	// transport otherwise blocks the whole send cycle.
	Send(ctx context.Context, record *report.Record) error
}

// UserInteraction is the presentation surface for user-gated reporting
// modes. Implementations are expected to return quickly; the engine never
// blocks a crashing goroutine on user input.
type UserInteraction interface {
	// Notify surfaces a pending report to the user for an approve/discard
	// decision. The report name is passed so an eventual comment can be
	// associated with that specific file.
	Notify(reportName string)

	// ShowAcknowledgment displays a short-lived crash acknowledgment.
	ShowAcknowledgment(text string)
}

// NopInteraction is the default UserInteraction for headless hosts.
type NopInteraction struct{}

func (NopInteraction) Notify(string)             {}
func (NopInteraction) ShowAcknowledgment(string) {}

// DeliveryError reports a sender failure. The pipeline uses it to decide
// between retrying the whole cycle later and accepting partial delivery.
type DeliveryError struct {
	Sender string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sender %s failed: %v", e.Sender, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError wraps a transport failure with the sender's name.
func NewDeliveryError(sender string, err error) *DeliveryError {
	return &DeliveryError{Sender: sender, Err: err}
}
