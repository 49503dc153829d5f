package models

import "time"

// Video defines a hosted video and the object storage keys of its media.
type Video struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	CommitURL       *string    `json:"commitUrl" gorm:"column:commit_url"`
	Tags            []Tag      `json:"tags" gorm:"many2many:video_tags;"`
	UploadBatchID   string     `json:"uploadBatchId" gorm:"index"`
	StorageKey      string     `json:"storageKey"`
	AudioStorageKey string     `json:"audioStorageKey"`
	ProcessedAt     *time.Time `json:"processedAt" gorm:"index"` // nil until the processing webhook has run
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Video) TableName() string {
	return "videos"
}

// IsProcessed reports whether the upload has already been moved to its batch keys.
func (v *Video) IsProcessed() bool {
	return v.ProcessedAt != nil
}

// TagSlugs returns the slugs of the loaded tags in stored order.
func (v *Video) TagSlugs() []string {
	slugs := make([]string, 0, len(v.Tags))
	for _, t := range v.Tags {
		slugs = append(slugs, t.Slug)
	}
	return slugs
}
