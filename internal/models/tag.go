package models

// Tag labels videos. External input refers to tags by Slug only.
type Tag struct {
	ID    string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Slug  string `json:"slug" gorm:"uniqueIndex;not null"`
	Title string `json:"title"`
}

func (Tag) TableName() string {
	return "tags"
}
