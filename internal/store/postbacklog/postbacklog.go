// Package postbacklog records every accepted reward-network postback in a
// relational audit trail. The unique transaction id index doubles as the
// replay guard: recording a transaction twice reports ErrDuplicateTransaction
// without a second row.
package postbacklog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	emptyPayloadJSON      = "{}"
)

// ErrDuplicateTransaction marks a postback whose transaction id was already
// recorded.
var ErrDuplicateTransaction = errors.New("duplicate postback transaction")

// Event is one postback as received, before persistence.
type Event struct {
	TransactionID  string
	UserID         string
	CurrencyAmount string
	Payload        map[string]string
}

// Store implements the audit trail on a gorm.DB.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB. Migrate must run before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the postback_events table.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(&PostbackEvent{}); err != nil {
		return fmt.Errorf("migrate postback log: %w", err)
	}
	return nil
}

// Record inserts the event. A replayed transaction id yields
// ErrDuplicateTransaction and leaves the original row untouched.
func (store *Store) Record(ctx context.Context, event Event) error {
	if event.TransactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	row := PostbackEvent{
		TransactionID:  event.TransactionID,
		UserID:         event.UserID,
		CurrencyAmount: event.CurrencyAmount,
		Payload:        payloadJSON(event.Payload),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isTransactionConflict(err) {
		return ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("record postback: %w", err)
	}
	return nil
}

// MarkForwarded records that the transaction's message reached the
// downstream chat.
func (store *Store) MarkForwarded(ctx context.Context, transactionID string) error {
	result := store.db.WithContext(ctx).
		Model(&PostbackEvent{}).
		Where("transaction_id = ?", transactionID).
		Update("forwarded", true)
	if result.Error != nil {
		return fmt.Errorf("mark forwarded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mark forwarded: unknown transaction %s", transactionID)
	}
	return nil
}

// IsForwarded reports whether the transaction's message already reached the
// downstream chat.
func (store *Store) IsForwarded(ctx context.Context, transactionID string) (bool, error) {
	var row PostbackEvent
	err := store.db.WithContext(ctx).
		Select("forwarded").
		Where("transaction_id = ?", transactionID).
		Take(&row).Error
	if err != nil {
		return false, fmt.Errorf("lookup postback: %w", err)
	}
	return row.Forwarded, nil
}

// RecentByUser lists the newest events for one user, newest first.
func (store *Store) RecentByUser(ctx context.Context, userID string, limit int) ([]PostbackEvent, error) {
	var rows []PostbackEvent
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list postbacks: %w", err)
	}
	return rows, nil
}

func payloadJSON(payload map[string]string) datatypes.JSON {
	if len(payload) == 0 {
		return datatypes.JSON([]byte(emptyPayloadJSON))
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return datatypes.JSON([]byte(emptyPayloadJSON))
	}
	return datatypes.JSON(encoded)
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
