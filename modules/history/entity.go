package history

import "time"

// MessageRecord is the persisted form of a routed message.
type MessageRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Scope     string    `gorm:"index;size:201;not null" json:"scope"`
	Sender    string    `gorm:"size:50;not null" json:"sender"`
	Body      string    `gorm:"size:5000;not null" json:"body"`
	Kind      string    `gorm:"size:16;not null" json:"kind"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (MessageRecord) TableName() string {
	return "messages"
}
