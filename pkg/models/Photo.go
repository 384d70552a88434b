package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var (
	ErrPhotoNotFound = fmt.Errorf("photo not found")
)

type Photo struct {
	ID         uint      `db:"id"`
	AlbumID    uint      `db:"album_id"`
	StorageKey string    `db:"storage_key"`
	Name       string    `db:"name"`
	RawTags    string    `db:"tags"`
	CreatedAt  time.Time `db:"created_at"`
}

// Tags decodes the stored tag list. Unreadable or missing tags read as empty.
func (p *Photo) Tags() []string {
	result := []string{}

	if p.RawTags == "" {
		return result
	}

	if err := json.Unmarshal([]byte(p.RawTags), &result); err != nil {
		return []string{}
	}

	return result
}

func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}

	b, _ := json.Marshal(tags)
	return string(b)
}
