package permcore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DecisionStream is the Redis stream evaluated decisions are published to.
const DecisionStream = "permcore:decisions"

// DecisionLog is the persisted form of an evaluated authorization decision.
type DecisionLog struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    string `gorm:"index;not null"`
	UserID     uint   `gorm:"index;not null"`
	Permission string `gorm:"not null"`
	Granted    bool
	MatchType  string
	CreatedAt  time.Time
}

// Decision describes one evaluated check.
type Decision struct {
	UserID     uint
	Permission string
	Granted    bool
	MatchType  MatchType
}

// AuditTrail records evaluated decisions to the database and, best-effort,
// onto a Redis stream for operator tooling. Either sink may be nil.
type AuditTrail struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewAuditTrail builds a trail over the given sinks.
func NewAuditTrail(db *gorm.DB, redisClient *redis.Client) *AuditTrail {
	return &AuditTrail{db: db, redis: redisClient}
}

// Migrate creates the decision log table when a database sink is configured.
func (a *AuditTrail) Migrate() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.AutoMigrate(&DecisionLog{}); err != nil {
		return fmt.Errorf("failed to migrate decision logs: %w", err)
	}
	return nil
}

// Record persists a decision and publishes it to the stream. Stream
// publication is advisory; a failed XAdd does not fail the check.
func (a *AuditTrail) Record(ctx context.Context, d Decision) error {
	entry := DecisionLog{
		EventID:    uuid.NewString(),
		UserID:     d.UserID,
		Permission: d.Permission,
		Granted:    d.Granted,
		MatchType:  string(d.MatchType),
	}

	if a.db != nil {
		if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record decision log: %w", err)
		}
	}

	if a.redis != nil {
		a.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: DecisionStream,
			Values: map[string]interface{}{
				"event_id":   entry.EventID,
				"user_id":    d.UserID,
				"permission": d.Permission,
				"granted":    d.Granted,
				"match_type": string(d.MatchType),
			},
		})
	}
	return nil
}

// QueryDecisions retrieves decision logs with optional filters.
func (a *AuditTrail) QueryDecisions(ctx context.Context, userID *uint, granted *bool, since, until *time.Time) ([]DecisionLog, error) {
	if a.db == nil {
		return nil, nil
	}

	query := a.db.WithContext(ctx).Model(&DecisionLog{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if granted != nil {
		query = query.Where("granted = ?", *granted)
	}
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if until != nil {
		query = query.Where("created_at <= ?", *until)
	}

	var logs []DecisionLog
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch decision logs: %w", err)
	}
	return logs, nil
}
