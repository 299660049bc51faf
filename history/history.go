// Package history records farm events into a relational store so operators
// can audit deposits, claims and recoveries after the fact.
package history

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stakefarm/farm"
)

// Record is one persisted farm event.
type Record struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Type       string    `gorm:"index;size:64"`
	Account    string    `gorm:"index;size:64"`
	DepositID  string    `gorm:"size:16"`
	Token      string    `gorm:"index;size:64"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// AutoMigrate performs the schema migration for the history store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Recorder implements farm.Sink, persisting each event as a row. Failures
// are logged and swallowed: event history is an audit aid, not part of the
// engine's transactional state.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRecorder wires a recorder to a migrated gorm database.
func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger}
}

// AppendEvent persists the event.
func (r *Recorder) AppendEvent(evt *farm.Event) {
	if evt == nil {
		return
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		r.logger.Error("history: encode event attributes", "type", evt.Type, "err", err)
		return
	}
	record := Record{
		ID:         uuid.NewString(),
		Type:       evt.Type,
		Account:    evt.Attributes["account"],
		DepositID:  evt.Attributes["depositId"],
		Token:      evt.Attributes["token"],
		Attributes: string(attrs),
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.Create(&record).Error; err != nil {
		r.logger.Error("history: persist event", "type", evt.Type, "err", err)
	}
}

// ByAccount returns the most recent events for an account, newest first.
func (r *Recorder) ByAccount(account string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := r.db.Where("account = ?", account).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ByType returns the most recent events of one type, newest first.
func (r *Recorder) ByType(eventType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := r.db.Where("type = ?", eventType).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
