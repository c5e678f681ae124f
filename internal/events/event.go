// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadbot_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Qualification Domain Events
// =============================================================================

// FakeMismatchDetected is published when a contact denies being the lead
// while the WhatsApp profile name matches the lead's name. No reply was
// sent; operators decide what to do next.
type FakeMismatchDetected struct {
	BaseEvent
	CRMLeadID   int64  `json:"crmLeadId"`
	ContactName string `json:"contactName"`
	ProfileName string `json:"profileName"`
	Number      string `json:"number"`
}

func (e FakeMismatchDetected) EventName() string { return "lead.fake_mismatch" }

// LeadFinalized is published when the scheduler concludes a lead, either
// because every number was exhausted or the lead expired.
type LeadFinalized struct {
	BaseEvent
	CRMLeadID   int64  `json:"crmLeadId"`
	ContactName string `json:"contactName"`
	Reason      string `json:"reason"` // "exhausted" or "expired"
}

func (e LeadFinalized) EventName() string { return "lead.finalized" }
