package models

import (
	"fmt"
	"strings"
	"time"
)

// Channel identifies one delivery mechanism.
type Channel string

const (
	ChannelInApp   Channel = "in_app"
	ChannelSound   Channel = "sound"
	ChannelWebhook Channel = "webhook"
)

// Channels returns all channels in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelInApp, ChannelSound, ChannelWebhook}
}

// Known reports whether c is one of the defined channels.
func (c Channel) Known() bool {
	switch c {
	case ChannelInApp, ChannelSound, ChannelWebhook:
		return true
	}
	return false
}

// ParseChannel converts user input to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_app", "inapp", "in-app":
		return ChannelInApp, nil
	case "sound":
		return ChannelSound, nil
	case "webhook":
		return ChannelWebhook, nil
	default:
		return "", fmt.Errorf("unknown channel: %q", s)
	}
}

// DeliveryStatus is the terminal state of one channel attempt.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Tone is the severity-like classification used for toast variants and webhook colors.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
	ToneInfo    Tone = "info"
)

// DeliveryOutcome records the result of one channel attempt within one dispatch.
type DeliveryOutcome struct {
	Channel   Channel        `json:"channel"`
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// Delivered builds a successful outcome.
func Delivered(ch Channel, at time.Time) DeliveryOutcome {
	return DeliveryOutcome{Channel: ch, Status: StatusDelivered, Timestamp: at}
}

// Failed builds a failed outcome. An empty reason is replaced so Error is always set.
func Failed(ch Channel, at time.Time, reason string) DeliveryOutcome {
	if reason == "" {
		reason = "unknown error"
	}
	return DeliveryOutcome{Channel: ch, Status: StatusFailed, Timestamp: at, Error: reason}
}

// OK reports whether the outcome was delivered.
func (o DeliveryOutcome) OK() bool {
	return o.Status == StatusDelivered
}

// DeliveryResult aggregates the outcomes of one dispatch.
type DeliveryResult struct {
	ID                 string            `json:"id"`
	AlertID            int64             `json:"alertId"`
	Outcomes           []DeliveryOutcome `json:"outcomes"`
	TotalChannels      int               `json:"totalChannels"`
	SuccessfulChannels int               `json:"successfulChannels"`
}

// NewDeliveryResult aggregates outcomes. The ID is derived from the alert id and dispatch start.
func NewDeliveryResult(alertID int64, startedAt time.Time, totalChannels int, outcomes []DeliveryOutcome) DeliveryResult {
	if outcomes == nil {
		outcomes = []DeliveryOutcome{}
	}
	successful := 0
	for _, o := range outcomes {
		if o.OK() {
			successful++
		}
	}
	return DeliveryResult{
		ID:                 fmt.Sprintf("%d-%d", alertID, startedAt.UnixMilli()),
		AlertID:            alertID,
		Outcomes:           outcomes,
		TotalChannels:      totalChannels,
		SuccessfulChannels: successful,
	}
}

// AllDelivered reports whether every attempted channel succeeded.
func (r DeliveryResult) AllDelivered() bool {
	return r.SuccessfulChannels == r.TotalChannels
}

// Failures returns the failed outcomes.
func (r DeliveryResult) Failures() []DeliveryOutcome {
	var failed []DeliveryOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Outcome returns the outcome for a channel, if it was attempted.
func (r DeliveryResult) Outcome(ch Channel) (DeliveryOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == ch {
			return o, true
		}
	}
	return DeliveryOutcome{}, false
}
