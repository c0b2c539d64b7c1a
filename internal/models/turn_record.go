package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TurnRecord is one completed listen/think/speak turn kept in the turn journal.
type TurnRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	TurnIndex int64              `bson:"turn_index" json:"turn_index"`

	UserText  string `bson:"user_text,omitempty" json:"user_text,omitempty"` // empty for the greeting
	ReplyText string `bson:"reply_text,omitempty" json:"reply_text,omitempty"`
	Searched  bool   `bson:"searched" json:"searched"`
	Status    string `bson:"status" json:"status"` // done|empty|failed

	ProcessingTimeMS int64     `bson:"processing_time_ms" json:"processing_time_ms"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
