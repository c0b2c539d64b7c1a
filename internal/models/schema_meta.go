package models

// SchemaVersion is bumped whenever a relational model changes shape.
// A mismatch against the stored version drops and recreates every table.
const SchemaVersion = 2

type SchemaMeta struct {
	ID      uint `gorm:"column:id;primaryKey"`
	Version int  `gorm:"column:version"`
}

func (SchemaMeta) TableName() string { return "schema_meta" }

// RelationalModels lists the tables owned by the relational store.
func RelationalModels() []any {
	return []any{&UserFact{}, &ConversationTopic{}, &Conversation{}}
}
