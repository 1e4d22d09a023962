package history

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repository handles message persistence with GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save persists a message record.
func (r *Repository) Save(ctx context.Context, record *MessageRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Query returns the most recent messages for a scope, oldest first.
func (r *Repository) Query(ctx context.Context, scope string, limit int) ([]MessageRecord, error) {
	var records []MessageRecord
	err := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	reverse(records)
	return records, nil
}

// QueryChat is like Query but excludes system notices.
func (r *Repository) QueryChat(ctx context.Context, scope string, limit int) ([]MessageRecord, error) {
	var records []MessageRecord
	err := r.db.WithContext(ctx).
		Where("scope = ? AND kind <> ?", scope, "system").
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	reverse(records)
	return records, nil
}

// Count returns the number of stored messages.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func reverse(records []MessageRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
