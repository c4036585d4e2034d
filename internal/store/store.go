// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"alert-delivery/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Settings
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error

	// Delivery history
	RecordDelivery(ctx context.Context, alert models.FiredAlert, result models.DeliveryResult) error
	GetDeliveries(ctx context.Context, filter DeliveryFilter) ([]DeliveryRecord, error)
	GetDelivery(ctx context.Context, id string) (*DeliveryRecord, error)
	GetChannelStats(ctx context.Context, since time.Time) ([]ChannelStats, error)
	PruneDeliveries(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Close() error
}

// DeliveryFilter represents filters for querying delivery history.
type DeliveryFilter struct {
	Symbol     string
	FailedOnly bool
	Since      time.Time
	Limit      int
}

// DeliveryRecord is one stored dispatch with its outcomes.
type DeliveryRecord struct {
	Result       models.DeliveryResult `json:"result"`
	RuleID       int64                 `json:"ruleId"`
	Symbol       string                `json:"symbol"`
	Condition    models.Condition      `json:"condition"`
	DispatchedAt time.Time             `json:"dispatchedAt"`
}

// ChannelStats aggregates outcomes for one channel.
type ChannelStats struct {
	Channel   models.Channel `json:"channel"`
	Attempts  int            `json:"attempts"`
	Delivered int            `json:"delivered"`
	LastError string         `json:"lastError,omitempty"`
}

// SuccessRate returns the delivered share as a percentage.
func (c ChannelStats) SuccessRate() float64 {
	if c.Attempts == 0 {
		return 0
	}
	return float64(c.Delivered) / float64(c.Attempts) * 100
}
