// Package models defines the alert, preference and delivery types shared by every component.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Condition is the comparison that caused an alert rule to fire.
type Condition string

const (
	ConditionAbove             Condition = "above"
	ConditionBelow             Condition = "below"
	ConditionCrossesAbove      Condition = "crosses_above"
	ConditionCrossesBelow      Condition = "crosses_below"
	ConditionPercentChangeUp   Condition = "percent_change_up"
	ConditionPercentChangeDown Condition = "percent_change_down"
	ConditionVolumeAbove       Condition = "volume_above"
	// ConditionError is raised by the rule engine itself, e.g. when a data feed fails.
	ConditionError Condition = "error"
)

// Conditions returns every defined condition.
func Conditions() []Condition {
	return []Condition{
		ConditionAbove,
		ConditionBelow,
		ConditionCrossesAbove,
		ConditionCrossesBelow,
		ConditionPercentChangeUp,
		ConditionPercentChangeDown,
		ConditionVolumeAbove,
		ConditionError,
	}
}

// Known reports whether c is one of the defined conditions.
func (c Condition) Known() bool {
	for _, known := range Conditions() {
		if c == known {
			return true
		}
	}
	return false
}

// FiredAlert is the event produced by the rule engine when an alert fires.
// It is passed by value and never modified after construction.
type FiredAlert struct {
	AlertID        int64     `json:"alertId"`
	RuleID         int64     `json:"ruleId"`
	InstrumentID   int64     `json:"instrumentId"`
	Symbol         string    `json:"symbol"`
	TriggerValue   float64   `json:"triggerValue"`
	ThresholdValue float64   `json:"thresholdValue"`
	Condition      Condition `json:"condition"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the fields an ingested event must carry.
func (a FiredAlert) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !a.Condition.Known() {
		return fmt.Errorf("unsupported condition: %q", a.Condition)
	}
	return nil
}
