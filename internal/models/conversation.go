package models

// Conversation is the record of a finished session.
type Conversation struct {
	ID                uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title             string `gorm:"column:title;type:text" json:"title"`
	Timestamp         int64  `gorm:"column:timestamp;index" json:"timestamp"` // epoch millis
	DurationInMinutes int    `gorm:"column:duration_in_minutes" json:"duration_in_minutes"`
}

func (Conversation) TableName() string { return "conversations" }
