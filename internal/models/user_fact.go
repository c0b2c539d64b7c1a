package models

// UserFact is a learned attribute about the user ("name" -> "John").
// Key is not unique: restating a fact adds another row.
type UserFact struct {
	ID    uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Key   string `gorm:"column:key;type:text;not null" json:"key"`
	Value string `gorm:"column:value;type:text;not null" json:"value"`
}

func (UserFact) TableName() string { return "user_facts" }
