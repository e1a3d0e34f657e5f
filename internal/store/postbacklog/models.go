package postbacklog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostbackEvent mirrors the postback_events table. TransactionID carries the
// unique index that makes replayed postbacks detectable; Forwarded flips to
// true only once the event reached Telegram, so a replay of a row that never
// made it downstream is treated as a fresh delivery attempt.
type PostbackEvent struct {
	EventID        string         `gorm:"type:uuid;primaryKey"`
	TransactionID  string         `gorm:"not null;index:uniq_postback_transaction,unique"`
	UserID         string         `gorm:"not null;index:idx_postback_user"`
	CurrencyAmount string         `gorm:"not null"`
	Payload        datatypes.JSON `gorm:"not null"`
	Forwarded      bool           `gorm:"not null;default:false"`
	CreatedAt      time.Time      `gorm:"not null"`
}

func (PostbackEvent) TableName() string { return "postback_events" }

func (event *PostbackEvent) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}
