package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Key/value settings such as notification preferences
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- One row per dispatch
	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		alert_id INTEGER NOT NULL,
		rule_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		condition TEXT NOT NULL,
		total_channels INTEGER NOT NULL,
		successful_channels INTEGER NOT NULL,
		dispatched_at DATETIME NOT NULL
	);

	-- Per-channel outcomes
	CREATE TABLE IF NOT EXISTS delivery_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		delivery_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (delivery_id) REFERENCES deliveries(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_symbol ON deliveries(symbol);
	CREATE INDEX IF NOT EXISTS idx_deliveries_dispatched ON deliveries(dispatched_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_delivery ON delivery_outcomes(delivery_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Settings Methods
// ============================================================================

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to read setting %s: %v", apperrors.ErrDatabaseError, key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to write setting %s: %v", apperrors.ErrDatabaseError, key, err)
	}
	return nil
}

// ============================================================================
// Delivery History Methods
// ============================================================================

// RecordDelivery stores a dispatch result and its outcomes in one transaction.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, alert models.FiredAlert, result models.DeliveryResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dispatchedAt := dispatchTime(result)

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO deliveries (id, alert_id, rule_id, symbol, condition, total_channels, successful_channels, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.ID, alert.AlertID, alert.RuleID, alert.Symbol, string(alert.Condition), result.TotalChannels, result.SuccessfulChannels, dispatchedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_outcomes WHERE delivery_id = ?`, result.ID); err != nil {
		return fmt.Errorf("failed to clear outcomes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delivery_outcomes (delivery_id, channel, status, error, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range result.Outcomes {
		var errText sql.NullString
		if o.Error != "" {
			errText = sql.NullString{String: o.Error, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, result.ID, string(o.Channel), string(o.Status), errText, o.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// dispatchTime recovers the dispatch start from the result ID, falling back
// to the earliest outcome or now.
func dispatchTime(result models.DeliveryResult) time.Time {
	if i := strings.LastIndexByte(result.ID, '-'); i >= 0 {
		var ms int64
		if _, err := fmt.Sscanf(result.ID[i+1:], "%d", &ms); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	}
	var earliest time.Time
	for _, o := range result.Outcomes {
		if earliest.IsZero() || o.Timestamp.Before(earliest) {
			earliest = o.Timestamp
		}
	}
	if earliest.IsZero() {
		return time.Now().UTC()
	}
	return earliest.UTC()
}

// GetDeliveries retrieves delivery history, newest first.
func (s *SQLiteStore) GetDeliveries(ctx context.Context, filter DeliveryFilter) ([]DeliveryRecord, error) {
	query := "SELECT id, alert_id, rule_id, symbol, condition, total_channels, successful_channels, dispatched_at FROM deliveries WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.FailedOnly {
		query += " AND successful_channels < total_channels"
	}
	if !filter.Since.IsZero() {
		query += " AND dispatched_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY dispatched_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}

	var records []DeliveryRecord
	for rows.Next() {
		r, err := scanDelivery(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}
	rows.Close()

	for i := range records {
		outcomes, err := s.getOutcomes(ctx, records[i].Result.ID)
		if err != nil {
			return nil, err
		}
		records[i].Result.Outcomes = outcomes
	}

	return records, nil
}

// GetDelivery retrieves a single dispatch by result ID.
func (s *SQLiteStore) GetDelivery(ctx context.Context, id string) (*DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, rule_id, symbol, condition, total_channels, successful_channels, dispatched_at
		FROM deliveries WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery: %w", err)
	}

	if !rows.Next() {
		err := rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to query delivery: %w", err)
		}
		return nil, fmt.Errorf("delivery %s: %w", id, apperrors.ErrNotFound)
	}
	r, err := scanDelivery(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	r.Result.Outcomes, err = s.getOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(rows rowScanner) (DeliveryRecord, error) {
	var r DeliveryRecord
	var condition string
	if err := rows.Scan(&r.Result.ID, &r.Result.AlertID, &r.RuleID, &r.Symbol, &condition,
		&r.Result.TotalChannels, &r.Result.SuccessfulChannels, &r.DispatchedAt); err != nil {
		return r, fmt.Errorf("failed to scan delivery: %w", err)
	}
	r.Condition = models.Condition(condition)
	return r, nil
}

func (s *SQLiteStore) getOutcomes(ctx context.Context, deliveryID string) ([]models.DeliveryOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, status, error, completed_at
		FROM delivery_outcomes
		WHERE delivery_id = ?
		ORDER BY id ASC
	`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.DeliveryOutcome{}
	for rows.Next() {
		var o models.DeliveryOutcome
		var channel, status string
		var errText sql.NullString
		if err := rows.Scan(&channel, &status, &errText, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Channel = models.Channel(channel)
		o.Status = models.DeliveryStatus(status)
		o.Error = errText.String
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// GetChannelStats aggregates outcomes per channel since the given time.
func (s *SQLiteStore) GetChannelStats(ctx context.Context, since time.Time) ([]ChannelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.channel,
			COUNT(*),
			SUM(CASE WHEN o.status = 'delivered' THEN 1 ELSE 0 END),
			COALESCE((
				SELECT e.error FROM delivery_outcomes e
				WHERE e.channel = o.channel AND e.status = 'failed' AND e.completed_at >= ?
				ORDER BY e.completed_at DESC, e.id DESC LIMIT 1
			), '')
		FROM delivery_outcomes o
		WHERE o.completed_at >= ?
		GROUP BY o.channel
		ORDER BY o.channel
	`, since.UTC(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query channel stats: %w", err)
	}
	defer rows.Close()

	var stats []ChannelStats
	for rows.Next() {
		var c ChannelStats
		var channel string
		if err := rows.Scan(&channel, &c.Attempts, &c.Delivered, &c.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan channel stats: %w", err)
		}
		c.Channel = models.Channel(channel)
		stats = append(stats, c)
	}

	return stats, rows.Err()
}

// PruneDeliveries deletes history dispatched before the given time.
func (s *SQLiteStore) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM delivery_outcomes
		WHERE delivery_id IN (SELECT id FROM deliveries WHERE dispatched_at < ?)
	`, before.UTC()); err != nil {
		return 0, fmt.Errorf("failed to prune outcomes: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE dispatched_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}
