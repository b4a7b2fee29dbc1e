package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TransitionAction identifies which button an operator can press on a
// confirmation message.
type TransitionAction string

const (
	// ActionKeep keeps the lead's current status.
	ActionKeep TransitionAction = "KEEP"
	// ActionChange applies the suggested status.
	ActionChange TransitionAction = "CHANGE"
	// ActionReversed applies the opposite terminal outcome.
	ActionReversed TransitionAction = "REVERSED"
)

// ParseTransitionAction validates a raw action string from a button payload.
func ParseTransitionAction(raw string) (TransitionAction, error) {
	switch TransitionAction(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionKeep:
		return ActionKeep, nil
	case ActionChange:
		return ActionChange, nil
	case ActionReversed:
		return ActionReversed, nil
	default:
		return "", fmt.Errorf("unknown transition action %q", raw)
	}
}

// ConfirmationContext is everything the webhook resolver needs to act on an
// operator's button press. It is validated before a transition record is
// written, so resolution never parses free-form metadata.
type ConfirmationContext struct {
	CurrentStatusID     uuid.UUID `json:"current_status_id"`
	CurrentStatusCode   string    `json:"current_status_code"`
	CurrentStatusName   string    `json:"current_status_name"`
	SuggestedStatusID   uuid.UUID `json:"suggested_status_id"`
	SuggestedStatusCode string    `json:"suggested_status_code"`
	SuggestedStatusName string    `json:"suggested_status_name"`
	LeadName            string    `json:"lead_name,omitempty"`
	ConversionValue     *float64  `json:"conversion_value,omitempty"`
	Confidence          float64   `json:"confidence"`
	Analysis            string    `json:"analysis,omitempty"`
}

// Validate checks the context is complete enough to resolve every action the
// confirmation message can offer.
func (c ConfirmationContext) Validate() error {
	if c.CurrentStatusID == uuid.Nil {
		return fmt.Errorf("confirmation context: current status id is required")
	}
	if c.SuggestedStatusID == uuid.Nil {
		return fmt.Errorf("confirmation context: suggested status id is required")
	}
	if c.SuggestedStatusID == c.CurrentStatusID {
		return fmt.Errorf("confirmation context: suggested status equals current status")
	}
	if c.SuggestedStatusName == "" {
		return fmt.Errorf("confirmation context: suggested status name is required")
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("confirmation context: confidence %v out of range", c.Confidence)
	}
	if c.ConversionValue != nil && *c.ConversionValue < 0 {
		return fmt.Errorf("confirmation context: conversion value must not be negative")
	}
	return nil
}

// OffersReversal reports whether the confirmation message should carry a
// REVERSED button, which only makes sense for terminal suggestions.
func (c ConfirmationContext) OffersReversal() bool {
	return IsTerminalStatus(c.SuggestedStatusCode)
}
