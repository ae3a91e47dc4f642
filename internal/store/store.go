package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wjkim9/fantasy11-draft-backend/internal/engine"
)

// SessionRecord mirrors a session's lifecycle status.
type SessionRecord struct {
	Code      string `gorm:"primaryKey;size:12"`
	Status    string `gorm:"size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimRecord is one row of the append-only draft history.
type ClaimRecord struct {
	ID            uint   `gorm:"primaryKey"`
	SessionCode   string `gorm:"index:idx_session_seq,unique;size:12"`
	Seq           int    `gorm:"index:idx_session_seq,unique"`
	Round         int
	Seat          int
	ParticipantID string `gorm:"size:64"`
	EntryID       int
	Position      string `gorm:"size:8"`
	Auto          bool
	CreatedAt     time.Time
}

// Store journals committed claims and status changes to Postgres. It
// sits behind session.Recorder; the coordinator never reads it back.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}, &ClaimRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordClaim(ctx context.Context, code string, c engine.Claim) error {
	rec := ClaimRecord{
		SessionCode:   code,
		Seq:           c.Seq,
		Round:         c.Round,
		Seat:          c.Seat,
		ParticipantID: c.ParticipantID,
		EntryID:       c.EntryID,
		Position:      string(c.Position),
		Auto:          c.Auto,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record claim %d/%d: %w", c.Seq, c.EntryID, err)
	}
	return nil
}

func (s *Store) RecordStatus(ctx context.Context, code string, status engine.Status) error {
	rec := SessionRecord{Code: code, Status: string(status)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record status %s: %w", status, err)
	}
	return nil
}

// Claims returns a session's journal in commit order, for dashboards
// and post-draft views.
func (s *Store) Claims(ctx context.Context, code string) ([]ClaimRecord, error) {
	var recs []ClaimRecord
	err := s.db.WithContext(ctx).
		Where("session_code = ?", code).
		Order("seq asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load claims for %s: %w", code, err)
	}
	return recs, nil
}
