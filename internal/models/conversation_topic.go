package models

type ConversationTopic struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Topic    string `gorm:"column:topic;type:text;not null" json:"topic"`
	Keywords string `gorm:"column:keywords;type:text" json:"keywords"`
}

func (ConversationTopic) TableName() string { return "conversation_topics" }
